// Package expect holds declarative expectations about a span capture and the
// validators that evaluate them. Every configured check is evaluated on every
// run and its outcome recorded in a Report; assertion failures are data, not
// errors.
package expect

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
)

// ErrInvalidConfig is wrapped by every expectation configuration error.
var ErrInvalidConfig = errors.New("invalid expectation config")

// EdgePair names an ancestor and descendant span.
type EdgePair struct {
	Ancestor   string
	Descendant string
}

func (p EdgePair) String() string {
	return p.Ancestor + " -> " + p.Descendant
}

// GraphExpectation asserts ancestry between named spans.
type GraphExpectation struct {
	MustInclude    []EdgePair
	MustNotInclude []EdgePair
}

// CountExpectation bounds the total span count and per-name counts.
type CountExpectation struct {
	SpansTotal *Bound
	ByName     map[string]Bound
}

// WindowExpectation requires the named spans to start inside an Outer span.
type WindowExpectation struct {
	Outer    string
	Contains []string
}

// HermeticityExpectation asserts a capture shows no leakage out of the test.
type HermeticityExpectation struct {
	NoExternalServices     bool
	AllowedHosts           []string
	ResourceAttrsMustMatch map[string]string
	SpanAttrsForbidKeys    []string
}

// Expectations aggregates the optional expectation kinds of one scenario.
// Nil or empty kinds are not evaluated.
type Expectations struct {
	Graph       *GraphExpectation
	Counts      *CountExpectation
	Windows     []WindowExpectation
	Hermeticity *HermeticityExpectation
}

// Empty reports whether no expectation is configured.
func (e Expectations) Empty() bool {
	return e.Graph == nil && e.Counts == nil && len(e.Windows) == 0 && e.Hermeticity == nil
}

// Validate checks structural correctness: non-empty names everywhere.
func (e Expectations) Validate() error {
	if e.Graph != nil {
		for i, p := range e.Graph.MustInclude {
			if p.Ancestor == "" || p.Descendant == "" {
				return fmt.Errorf("%w: graph.must_include[%d]: ancestor and descendant must be non-empty", ErrInvalidConfig, i)
			}
		}
		for i, p := range e.Graph.MustNotInclude {
			if p.Ancestor == "" || p.Descendant == "" {
				return fmt.Errorf("%w: graph.must_not_include[%d]: ancestor and descendant must be non-empty", ErrInvalidConfig, i)
			}
		}
	}
	if e.Counts != nil {
		for name := range e.Counts.ByName {
			if name == "" {
				return fmt.Errorf("%w: counts.by_name: span name must be non-empty", ErrInvalidConfig)
			}
		}
	}
	for i, w := range e.Windows {
		if w.Outer == "" {
			return fmt.Errorf("%w: window[%d]: outer must be non-empty", ErrInvalidConfig, i)
		}
		if len(w.Contains) == 0 {
			return fmt.Errorf("%w: window[%d] (%s): contains must list at least one span name", ErrInvalidConfig, i, w.Outer)
		}
		for _, name := range w.Contains {
			if name == "" {
				return fmt.Errorf("%w: window[%d] (%s): contains has an empty span name", ErrInvalidConfig, i, w.Outer)
			}
		}
	}
	if e.Hermeticity != nil {
		for _, k := range e.Hermeticity.SpanAttrsForbidKeys {
			if k == "" {
				return fmt.Errorf("%w: hermeticity.span_attrs.forbid_keys has an empty key", ErrInvalidConfig)
			}
		}
		for _, h := range e.Hermeticity.AllowedHosts {
			if h == "" {
				return fmt.Errorf("%w: hermeticity.allowed_hosts has an empty host", ErrInvalidConfig)
			}
			if strings.Contains(h, "/") {
				if _, err := netip.ParsePrefix(strings.TrimSpace(h)); err != nil {
					return fmt.Errorf("%w: hermeticity.allowed_hosts entry %q is not a valid CIDR prefix", ErrInvalidConfig, h)
				}
			}
		}
	}
	return nil
}
