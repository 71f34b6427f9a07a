// Package determinism backfills missing span timing from a frozen clock and
// missing identifiers from a seed, so repeated runs of a scenario produce
// byte-identical captures. A Normalizer is built per scenario run and passed
// explicitly; there is no process-wide clock.
package determinism

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/andrewh/tracecheck/pkg/spans"
)

// SyntheticDuration is the duration given to spans that have a start but no
// end. It only guarantees end >= start and is not a measurement.
const SyntheticDuration = time.Millisecond

// ErrInvalidConfig is wrapped by every configuration error from New.
var ErrInvalidConfig = errors.New("invalid determinism config")

// Config is the determinism section of a scenario.
type Config struct {
	Seed        *uint64 `yaml:"seed,omitempty"`
	FreezeClock string  `yaml:"freeze_clock,omitempty"`
}

// IsConfigured reports whether either a seed or a frozen clock is set.
func (c Config) IsConfigured() bool {
	return c.Seed != nil || strings.TrimSpace(c.FreezeClock) != ""
}

// Normalizer fills gaps in span captures. Safe for concurrent use: Apply
// keeps its random source local to each call.
type Normalizer struct {
	seed      *uint64
	frozen    time.Time
	hasFrozen bool
	now       func() time.Time
}

// New validates cfg and returns a Normalizer.
func New(cfg Config) (*Normalizer, error) {
	n := &Normalizer{
		seed: cfg.Seed,
		now:  func() time.Time { return time.Now().UTC() },
	}
	if s := strings.TrimSpace(cfg.FreezeClock); s != "" {
		t, err := ParseTimestamp(s)
		if err != nil {
			return nil, fmt.Errorf("%w: freeze_clock: %w", ErrInvalidConfig, err)
		}
		n.frozen = t
		n.hasFrozen = true
	}
	return n, nil
}

// timestampLayouts are tried in order; the zone-less forms are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 timestamps, zone-less date-times and dates
// (as UTC), or a decimal count of Unix nanoseconds.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ns, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ns <= 0 {
			return time.Time{}, fmt.Errorf("timestamp %q must be positive", s)
		}
		return time.Unix(0, ns).UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Unix(0, t.UnixNano()).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q, expected RFC 3339 (e.g. 2025-01-01T00:00:00Z) or Unix nanoseconds", s)
}

// HasFrozenClock reports whether a frozen clock was configured.
func (n *Normalizer) HasFrozenClock() bool { return n.hasFrozen }

// Seed returns the configured seed, if any.
func (n *Normalizer) Seed() (uint64, bool) {
	if n.seed == nil {
		return 0, false
	}
	return *n.seed, true
}

// CurrentTimestamp returns the frozen time when configured, else the wall
// clock. It is only meant for filling gaps in captures.
func (n *Normalizer) CurrentTimestamp() time.Time {
	if n.hasFrozen {
		return n.frozen
	}
	return n.now()
}

// Apply backfills records in place. Missing start times become
// CurrentTimestamp, missing end times become start + SyntheticDuration.
// With a seed, empty span and trace ids are replaced by ids drawn from a
// PCG stream, so output depends only on the seed and record order.
// Explicit values are never changed.
func (n *Normalizer) Apply(records []spans.Record) {
	var rng *rand.Rand
	if n.seed != nil {
		rng = rand.New(rand.NewPCG(*n.seed, 0)) //nolint:gosec // deterministic ids, not security-sensitive
	}

	var fill time.Time
	for i := range records {
		r := &records[i]
		if !r.HasStart() {
			if fill.IsZero() {
				fill = n.CurrentTimestamp()
			}
			r.StartTime = fill
		}
		if !r.HasEnd() {
			r.EndTime = r.StartTime.Add(SyntheticDuration)
		}
		if rng != nil {
			if r.ID == "" {
				r.ID = fmt.Sprintf("%016x", rng.Uint64())
			}
			if r.TraceID == "" {
				r.TraceID = fmt.Sprintf("%016x%016x", rng.Uint64(), rng.Uint64())
			}
		}
	}
}
