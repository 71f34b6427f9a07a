// YAML configuration for expectations
// Decodes the expect section and normalises it into validated Expectations
package expect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config is the YAML form of an expect section.
type Config struct {
	Graph       *GraphConfig       `yaml:"graph,omitempty"`
	Counts      *CountsConfig      `yaml:"counts,omitempty"`
	Window      []WindowConfig     `yaml:"window,omitempty"`
	Hermeticity *HermeticityConfig `yaml:"hermeticity,omitempty"`
}

// GraphConfig lists [ancestor, descendant] pairs.
type GraphConfig struct {
	MustInclude    [][]string `yaml:"must_include,omitempty"`
	MustNotInclude [][]string `yaml:"must_not_include,omitempty"`
}

// BoundConfig is a count bound. gte and lte combine into a range.
type BoundConfig struct {
	Eq  *int `yaml:"eq,omitempty"`
	Gte *int `yaml:"gte,omitempty"`
	Lte *int `yaml:"lte,omitempty"`
}

// CountsConfig bounds the total and per-name span counts.
type CountsConfig struct {
	SpansTotal *BoundConfig           `yaml:"spans_total,omitempty"`
	ByName     map[string]BoundConfig `yaml:"by_name,omitempty"`
}

// WindowConfig declares spans that must start inside an outer span.
type WindowConfig struct {
	Outer    string   `yaml:"outer"`
	Contains []string `yaml:"contains"`
}

// HermeticityConfig declares isolation requirements.
type HermeticityConfig struct {
	NoExternalServices bool     `yaml:"no_external_services,omitempty"`
	AllowedHosts       []string `yaml:"allowed_hosts,omitempty"`
	ResourceAttrs      struct {
		MustMatch map[string]string `yaml:"must_match,omitempty"`
	} `yaml:"resource_attrs,omitempty"`
	SpanAttrs struct {
		ForbidKeys []string `yaml:"forbid_keys,omitempty"`
	} `yaml:"span_attrs,omitempty"`
}

// LoadConfig reads an expectation file.
func LoadConfig(path string) (Expectations, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-supplied config path is expected
	if err != nil {
		return Expectations{}, fmt.Errorf("reading expectations: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes into Expectations. Unknown keys are errors.
// Empty input yields empty Expectations.
func ParseConfig(data []byte) (Expectations, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Expectations{}, fmt.Errorf("%w: parsing expectations: %w", ErrInvalidConfig, err)
	}
	return cfg.Build()
}

// Build converts the YAML form into validated Expectations.
func (c Config) Build() (Expectations, error) {
	var exp Expectations

	if c.Graph != nil {
		g := &GraphExpectation{}
		var err error
		if g.MustInclude, err = buildPairs("graph.must_include", c.Graph.MustInclude); err != nil {
			return Expectations{}, err
		}
		if g.MustNotInclude, err = buildPairs("graph.must_not_include", c.Graph.MustNotInclude); err != nil {
			return Expectations{}, err
		}
		if len(g.MustInclude) > 0 || len(g.MustNotInclude) > 0 {
			exp.Graph = g
		}
	}

	if c.Counts != nil {
		ce := &CountExpectation{}
		if c.Counts.SpansTotal != nil {
			b, err := c.Counts.SpansTotal.Build()
			if err != nil {
				return Expectations{}, fmt.Errorf("counts.spans_total: %w", err)
			}
			ce.SpansTotal = &b
		}
		if len(c.Counts.ByName) > 0 {
			ce.ByName = make(map[string]Bound, len(c.Counts.ByName))
			for name, bc := range c.Counts.ByName {
				b, err := bc.Build()
				if err != nil {
					return Expectations{}, fmt.Errorf("counts.by_name[%s]: %w", name, err)
				}
				ce.ByName[name] = b
			}
		}
		if ce.SpansTotal != nil || len(ce.ByName) > 0 {
			exp.Counts = ce
		}
	}

	for _, w := range c.Window {
		exp.Windows = append(exp.Windows, WindowExpectation{
			Outer:    w.Outer,
			Contains: slices.Clone(w.Contains),
		})
	}

	if h := c.Hermeticity; h != nil {
		exp.Hermeticity = &HermeticityExpectation{
			NoExternalServices:     h.NoExternalServices,
			AllowedHosts:           slices.Clone(h.AllowedHosts),
			ResourceAttrsMustMatch: h.ResourceAttrs.MustMatch,
			SpanAttrsForbidKeys:    slices.Clone(h.SpanAttrs.ForbidKeys),
		}
	}

	if err := exp.Validate(); err != nil {
		return Expectations{}, err
	}
	return exp, nil
}

func buildPairs(field string, raw [][]string) ([]EdgePair, error) {
	pairs := make([]EdgePair, 0, len(raw))
	for i, p := range raw {
		if len(p) != 2 {
			return nil, fmt.Errorf("%w: %s[%d]: expected [ancestor, descendant], got %d elements", ErrInvalidConfig, field, i, len(p))
		}
		pairs = append(pairs, EdgePair{Ancestor: p[0], Descendant: p[1]})
	}
	return pairs, nil
}

// Build converts a bound config. eq excludes gte/lte; gte with lte is a range.
func (b BoundConfig) Build() (Bound, error) {
	for _, v := range []*int{b.Eq, b.Gte, b.Lte} {
		if v != nil && *v < 0 {
			return Bound{}, fmt.Errorf("%w: count bounds must be non-negative, got %d", ErrInvalidConfig, *v)
		}
	}
	switch {
	case b.Eq != nil && (b.Gte != nil || b.Lte != nil):
		return Bound{}, fmt.Errorf("%w: eq cannot be combined with gte or lte", ErrInvalidConfig)
	case b.Eq != nil:
		return Eq(*b.Eq), nil
	case b.Gte != nil && b.Lte != nil:
		return NewRange(*b.Gte, *b.Lte)
	case b.Gte != nil:
		return Gte(*b.Gte), nil
	case b.Lte != nil:
		return Lte(*b.Lte), nil
	default:
		return Bound{}, fmt.Errorf("%w: bound needs one of eq, gte or lte", ErrInvalidConfig)
	}
}
