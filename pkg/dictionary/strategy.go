package dictionary

import (
	"fmt"

	"github.com/bastiangx/keyserve/internal/mmap"
)

// LoadingStrategy selects how an index file is paged into memory. It is
// chosen at open time and fixed for the lifetime of a Dictionary. The key
// region (automaton states) and the value region are treated independently.
type LoadingStrategy int

const (
	// DefaultOS applies no hints; the OS pages both regions as it sees fit.
	DefaultOS LoadingStrategy = iota
	// Lazy pages both regions on demand with normal read-ahead.
	Lazy
	// Populate reads the whole file before Open returns.
	Populate
	// PopulateKeyPart reads the key region eagerly, values lazily.
	PopulateKeyPart
	// PopulateLazy asks the OS to read ahead in the background without blocking.
	PopulateLazy
	// LazyNoReadahead disables read-ahead for both regions, for indexes
	// much larger than main memory.
	LazyNoReadahead
	// LazyNoReadaheadValuePart disables read-ahead for the value region only.
	LazyNoReadaheadValuePart
	// PopulateKeyPartNoReadaheadValuePart reads the key region eagerly and
	// disables read-ahead for values.
	PopulateKeyPartNoReadaheadValuePart
)

var strategyNames = [...]string{
	DefaultOS:                           "default_os",
	Lazy:                                "lazy",
	Populate:                            "populate",
	PopulateKeyPart:                     "populate_key_part",
	PopulateLazy:                        "populate_lazy",
	LazyNoReadahead:                     "lazy_no_readahead",
	LazyNoReadaheadValuePart:            "lazy_no_readahead_value_part",
	PopulateKeyPartNoReadaheadValuePart: "populate_key_part_no_readahead_value_part",
}

// LoadingStrategies lists every strategy.
func LoadingStrategies() []LoadingStrategy {
	out := make([]LoadingStrategy, len(strategyNames))
	for i := range strategyNames {
		out[i] = LoadingStrategy(i)
	}
	return out
}

func (s LoadingStrategy) valid() bool {
	return s >= 0 && int(s) < len(strategyNames)
}

func (s LoadingStrategy) String() string {
	if !s.valid() {
		return fmt.Sprintf("LoadingStrategy(%d)", int(s))
	}
	return strategyNames[s]
}

// ParseLoadingStrategy parses the snake_case name of a strategy.
func ParseLoadingStrategy(name string) (LoadingStrategy, error) {
	for i, n := range strategyNames {
		if n == name {
			return LoadingStrategy(i), nil
		}
	}
	return DefaultOS, fmt.Errorf("%w: unknown loading strategy %q", ErrInvalidArgument, name)
}

// MarshalText implements encoding.TextMarshaler.
func (s LoadingStrategy) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("%w: loading strategy %d", ErrInvalidArgument, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *LoadingStrategy) UnmarshalText(text []byte) error {
	v, err := ParseLoadingStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

type paging struct {
	populateFile bool
	key          mmap.Policy
	value        mmap.Policy
}

func (s LoadingStrategy) paging() paging {
	switch s {
	case Lazy:
		return paging{key: mmap.Policy{Access: mmap.AccessNormal}, value: mmap.Policy{Access: mmap.AccessNormal}}
	case Populate:
		return paging{populateFile: true}
	case PopulateKeyPart:
		return paging{
			key:   mmap.Policy{Access: mmap.AccessNormal, Populate: true},
			value: mmap.Policy{Access: mmap.AccessNormal},
		}
	case PopulateLazy:
		return paging{key: mmap.Policy{Access: mmap.AccessWillNeed}, value: mmap.Policy{Access: mmap.AccessWillNeed}}
	case LazyNoReadahead:
		return paging{key: mmap.Policy{Access: mmap.AccessRandom}, value: mmap.Policy{Access: mmap.AccessRandom}}
	case LazyNoReadaheadValuePart:
		return paging{key: mmap.Policy{Access: mmap.AccessNormal}, value: mmap.Policy{Access: mmap.AccessRandom}}
	case PopulateKeyPartNoReadaheadValuePart:
		return paging{
			key:   mmap.Policy{Access: mmap.AccessNormal, Populate: true},
			value: mmap.Policy{Access: mmap.AccessRandom},
		}
	default:
		return paging{}
	}
}
