// Package cli is an interactive line-based query tool for keyserve indexes,
// used for debugging and exploring a dictionary.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bastiangx/keyserve/pkg/dictionary"
	"github.com/charmbracelet/log"
)

// Query syntax:
//
//	word      exact lookup
//	prefix*   prefix completion
//	~word     fuzzy match at the configured distance
//	>phrase   multi-word completion
const (
	prefixSuffix = "*"
	fuzzyMarker  = "~"
	phraseMarker = ">"
)

// InputHandler reads queries line by line and prints the matches.
type InputHandler struct {
	dict            *dictionary.Dictionary
	in              io.Reader
	out             io.Writer
	minPrefixLength int
	maxPrefixLength int
	limit           int
	distance        int
	requestCount    int
}

// NewInputHandler handles initialization of the InputHandler with basic parameters
func NewInputHandler(dict *dictionary.Dictionary, in io.Reader, out io.Writer, minLength, maxLength, limit, distance int) *InputHandler {
	return &InputHandler{
		dict:            dict,
		in:              in,
		out:             out,
		minPrefixLength: minLength,
		maxPrefixLength: maxLength,
		limit:           limit,
		distance:        distance,
	}
}

// Start runs the loop until the input ends.
func (h *InputHandler) Start() error {
	fmt.Fprintln(h.out, titleStyle.Render("keyserve CLI"))
	fmt.Fprintln(h.out, hintStyle.Render("word | prefix* | ~fuzzy | >multi word  (Ctrl+D to exit)"))
	reader := bufio.NewReader(h.in)

	for {
		fmt.Fprint(h.out, promptStyle.Render("> "))
		line, err := reader.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			h.handleInput(line)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(h.out)
				return nil
			}
			return err
		}
	}
}

type query struct {
	kind string
	text string
}

func parseQuery(line string) query {
	switch {
	case strings.HasPrefix(line, fuzzyMarker):
		return query{kind: "fuzzy", text: strings.TrimPrefix(line, fuzzyMarker)}
	case strings.HasPrefix(line, phraseMarker):
		return query{kind: "multi", text: strings.TrimLeft(strings.TrimPrefix(line, phraseMarker), " ")}
	case strings.HasSuffix(line, prefixSuffix):
		return query{kind: "prefix", text: strings.TrimSuffix(line, prefixSuffix)}
	}
	return query{kind: "get", text: line}
}

// handleInput runs one query and prints its matches.
func (h *InputHandler) handleInput(line string) {
	h.requestCount++
	q := parseQuery(line)

	n := utf8.RuneCountInString(q.text)
	if q.kind != "multi" && n < h.minPrefixLength {
		h.printError("Query too short: %q", q.text)
		return
	}
	if n > h.maxPrefixLength {
		h.printError("Query too long: %q", q.text)
		return
	}

	start := time.Now()
	var (
		matches []dictionary.Match
		err     error
	)
	switch q.kind {
	case "get":
		var m dictionary.Match
		if m, err = h.dict.Lookup(q.text); err == nil && !m.IsEmpty() {
			matches = append(matches, m)
		}
	case "prefix":
		matches, err = collect(h.dict.GetPrefixCompletions(q.text, h.limit))
	case "multi":
		matches, err = collect(h.dict.GetMultiWordCompletions(q.text, h.limit))
	case "fuzzy":
		var it *dictionary.Iterator
		if it, err = h.dict.GetFuzzy(q.text, h.distance); err == nil {
			matches, err = take(it, h.limit)
		}
	}
	elapsed := time.Since(start)
	log.Debugf("Took [ %v ] for %s query %q", elapsed, q.kind, q.text)

	if err != nil {
		h.printError("%s %q failed: %v", q.kind, q.text, err)
		return
	}
	if len(matches) == 0 {
		fmt.Fprintln(h.out, hintStyle.Render(fmt.Sprintf("No matches for %s %q", q.kind, q.text)))
		return
	}
	h.printMatches(q, matches, elapsed)
}

func collect(it *dictionary.Iterator, err error) ([]dictionary.Match, error) {
	if err != nil {
		return nil, err
	}
	return it.Collect()
}

// take reads at most limit matches, all of them when limit is zero.
func take(it *dictionary.Iterator, limit int) ([]dictionary.Match, error) {
	defer it.Close()
	var out []dictionary.Match
	for it.Next() {
		out = append(out, it.Match())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, it.Err()
}
