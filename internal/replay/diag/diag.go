// Package diag carries per-record anomalies out of the replay decoding and
// resolving passes. Nothing in those passes is global: callers hand in a Sink
// and decide what to do with what comes out of it.
package diag

import (
	"fmt"
	"log"
	"sort"
	"sync"
)

const (
	// Input tree.
	CodeTreeInvalid = "E_TREE_INVALID"
	CodeSchema      = "E_SCHEMA"

	// Record level; always absorbed.
	CodeStructAbsent     = "E_STRUCT_ABSENT"
	CodeMalformedRecord  = "E_MALFORMED_RECORD"
	CodeUnbound          = "E_UNBOUND"
	CodeUnknownAttribute = "E_UNKNOWN_ATTRIBUTE"
)

var knownCodes = map[string]struct{}{
	CodeTreeInvalid:      {},
	CodeSchema:           {},
	CodeStructAbsent:     {},
	CodeMalformedRecord:  {},
	CodeUnbound:          {},
	CodeUnknownAttribute: {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// Diagnostic describes one absorbed anomaly. Frame and Actor are -1 when they
// do not apply.
type Diagnostic struct {
	Code   string
	Frame  int
	Actor  int
	Detail string
}

func (d Diagnostic) String() string {
	switch {
	case d.Frame >= 0 && d.Actor >= 0:
		return fmt.Sprintf("%s frame=%d actor=%d: %s", d.Code, d.Frame, d.Actor, d.Detail)
	case d.Frame >= 0:
		return fmt.Sprintf("%s frame=%d: %s", d.Code, d.Frame, d.Detail)
	default:
		return fmt.Sprintf("%s: %s", d.Code, d.Detail)
	}
}

type Sink func(Diagnostic)

// Discard drops everything.
func Discard(Diagnostic) {}

// Emit calls s when it is non-nil.
func (s Sink) Emit(d Diagnostic) {
	if s != nil {
		s(d)
	}
}

// LogSink prints each diagnostic on logger.
func LogSink(logger *log.Logger) Sink {
	return func(d Diagnostic) {
		logger.Printf("diag %s", d)
	}
}

// Tee fans a diagnostic out to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	return func(d Diagnostic) {
		for _, s := range sinks {
			s.Emit(d)
		}
	}
}

// Collector keeps every diagnostic it receives. It is safe for concurrent use
// so a batch run can share one.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (c *Collector) Sink() Sink {
	return func(d Diagnostic) {
		c.mu.Lock()
		c.items = append(c.items, d)
		c.mu.Unlock()
	}
}

func (c *Collector) All() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Collector) Count(code string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Code == code {
			n++
		}
	}
	return n
}

// Summary returns "code=count" pairs sorted by code.
func (c *Collector) Summary() []string {
	c.mu.Lock()
	counts := map[string]int{}
	for _, d := range c.items {
		counts[d.Code]++
	}
	c.mu.Unlock()

	codes := make([]string, 0, len(counts))
	for code := range counts {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		out = append(out, fmt.Sprintf("%s=%d", code, counts[code]))
	}
	return out
}
