package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/keyserve/internal/logger"
	"github.com/bastiangx/keyserve/pkg/config"
	"github.com/bastiangx/keyserve/pkg/dictionary"
	"github.com/charmbracelet/log"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

// Server answers msgpack requests against one dictionary.
type Server struct {
	dict   *dictionary.Dictionary
	config *config.Config
	dec    *msgpack.Decoder
	enc    *msgpack.Encoder
	out    *bufio.Writer
	log    *log.Logger

	requests int
}

// requestError is reported to the client with its code.
type requestError struct {
	code int
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{code: 400, msg: fmt.Sprintf(format, args...)}
}

// NewServer creates a server reading requests from r and writing responses
// to w, usually stdin and stdout.
func NewServer(dict *dictionary.Dictionary, cfg *config.Config, r io.Reader, w io.Writer) *Server {
	out := bufio.NewWriter(w)
	return &Server{
		dict:   dict,
		config: cfg,
		dec:    msgpack.NewDecoder(bufio.NewReader(r)),
		enc:    msgpack.NewEncoder(out),
		out:    out,
		log:    logger.New("server"),
	}
}

// Start serves requests until the input ends.
func (s *Server) Start() error {
	s.log.Debug("Starting server", "entries", s.dict.Size())
	if err := s.send(StatusResponse{Status: "ready"}); err != nil {
		return err
	}

	for {
		var req Request
		if err := s.dec.Decode(&req); err != nil {
			if errors.Is(err, io.EOF) {
				s.log.Debug("Input closed", "requests", s.requests)
				return nil
			}
			s.log.Errorf("Decoding request: %v", err)
			if err := s.sendError("", fmt.Sprintf("invalid request: %v", err), 400); err != nil {
				return err
			}
			// The stream position is unknown after a decode error.
			return err
		}
		s.requests++
		if err := s.handle(req); err != nil {
			return err
		}
	}
}

func (s *Server) handle(req Request) error {
	start := time.Now()
	var (
		resp any
		err  error
	)
	switch req.Op {
	case "health":
		resp = StatusResponse{ID: req.ID, Status: "ok"}
	case "size":
		resp = &Response{ID: req.ID, Count: s.dict.Size()}
	case "stats":
		resp = &Response{ID: req.ID, Stats: s.dict.Statistics()}
	case "get":
		resp, err = s.handleGet(req)
	case "get_many":
		resp, err = s.handleGetMany(req)
	case "prefix", "multi", "fuzzy", "near", "items":
		resp, err = s.handleQuery(req)
	default:
		err = badRequest("unknown op: %q", req.Op)
	}

	if err != nil {
		code := 500
		var re *requestError
		if errors.As(err, &re) {
			code = re.code
		} else if errors.Is(err, dictionary.ErrInvalidArgument) {
			code = 400
		}
		s.log.Debug("Request failed", "id", req.ID, "op", req.Op, "error", err)
		return s.sendError(req.ID, err.Error(), code)
	}
	if r, ok := resp.(*Response); ok {
		r.Count = max(r.Count, len(r.Matches))
		if r.Matches == nil {
			r.Matches = []Match{}
		}
		r.TimeTaken = time.Since(start).Microseconds()
	}
	return s.send(resp)
}

func toMatch(m dictionary.Match) (Match, error) {
	v, err := m.ValueAsString()
	if err != nil {
		return Match{}, err
	}
	return Match{Key: m.Key(), Value: v, Score: m.Score()}, nil
}

func (s *Server) handleGet(req Request) (*Response, error) {
	m, err := s.dict.Lookup(req.Key)
	if err != nil {
		return nil, err
	}
	resp := &Response{ID: req.ID}
	if !m.IsEmpty() {
		out, err := toMatch(m)
		if err != nil {
			return nil, err
		}
		resp.Matches = append(resp.Matches, out)
	}
	return resp, nil
}

// handleGetMany looks keys up concurrently. Missing keys are left out;
// the order of the remaining ones is kept.
func (s *Server) handleGetMany(req Request) (*Response, error) {
	if len(req.Keys) > s.config.Server.MaxResults {
		return nil, badRequest("%d keys exceed the limit of %d", len(req.Keys), s.config.Server.MaxResults)
	}
	found := make([]*Match, len(req.Keys))
	var g errgroup.Group
	g.SetLimit(s.config.Server.Workers)
	for i, key := range req.Keys {
		g.Go(func() error {
			m, err := s.dict.Lookup(key)
			if err != nil || m.IsEmpty() {
				return err
			}
			out, err := toMatch(m)
			if err != nil {
				return err
			}
			found[i] = &out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	resp := &Response{ID: req.ID}
	for _, m := range found {
		if m != nil {
			resp.Matches = append(resp.Matches, *m)
		}
	}
	return resp, nil
}

func (s *Server) cutoff(req Request) (int, error) {
	limit := s.config.Server.MaxResults
	switch {
	case req.Cutoff < 0:
		return 0, badRequest("negative cutoff %d", req.Cutoff)
	case req.Op == "items":
		if req.Cutoff == 0 || req.Cutoff > limit {
			return limit, nil
		}
		return req.Cutoff, nil
	case req.Cutoff == 0:
		// A zero default means no query cutoff; responses stay bounded.
		if d := s.config.Query.DefaultCutoff; d > 0 {
			return min(d, limit), nil
		}
		return limit, nil
	case req.Cutoff > limit:
		return 0, badRequest("cutoff %d exceeds maximum of %d", req.Cutoff, limit)
	}
	return req.Cutoff, nil
}

func (s *Server) checkKey(key string) error {
	q := s.config.Query
	n := utf8.RuneCountInString(key)
	if n < q.MinPrefix {
		return badRequest("prefix must be at least %d characters", q.MinPrefix)
	}
	if n > q.MaxPrefix {
		return badRequest("prefix exceeds maximum length of %d characters", q.MaxPrefix)
	}
	return nil
}

func (s *Server) handleQuery(req Request) (*Response, error) {
	limit, err := s.cutoff(req)
	if err != nil {
		return nil, err
	}
	if req.Op != "items" {
		if err := s.checkKey(req.Key); err != nil {
			return nil, err
		}
	}

	var it *dictionary.Iterator
	switch req.Op {
	case "prefix":
		it, err = s.dict.GetPrefixCompletions(req.Key, limit)
	case "multi":
		it, err = s.dict.GetMultiWordCompletions(req.Key, limit)
	case "items":
		it = s.dict.GetAllItems()
	case "fuzzy":
		d := s.config.Query.MaxEditDistance
		if req.Distance != nil {
			d = *req.Distance
			if d > s.config.Query.MaxEditDistance {
				return nil, badRequest("distance %d exceeds maximum of %d", d, s.config.Query.MaxEditDistance)
			}
		}
		it, err = s.dict.GetFuzzyWithPrefix(req.Key, d, req.Exact)
	case "near":
		it, err = s.dict.GetNear(req.Key, req.Exact, req.Greedy)
	}
	if err != nil {
		return nil, err
	}
	defer it.Close()

	resp := &Response{ID: req.ID}
	for it.Next() {
		m, err := toMatch(it.Match())
		if err != nil {
			return nil, err
		}
		resp.Matches = append(resp.Matches, m)
		if limit > 0 && len(resp.Matches) >= limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Server) send(v any) error {
	if err := s.enc.Encode(v); err != nil {
		s.log.Errorf("Encoding response: %v", err)
		return err
	}
	return s.out.Flush()
}

func (s *Server) sendError(id, message string, code int) error {
	return s.send(ErrorResponse{ID: id, Error: message, Code: code})
}
