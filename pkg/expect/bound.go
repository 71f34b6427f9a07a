// Count bounds for span-count expectations
// A bound is an exact value, a lower bound, an upper bound or an inclusive range
package expect

import (
	"fmt"
)

type boundOp int

const (
	opEq boundOp = iota
	opGte
	opLte
	opRange
)

// Bound is a constraint on a span count.
type Bound struct {
	op     boundOp
	lo, hi int
}

// Eq matches exactly n.
func Eq(n int) Bound { return Bound{op: opEq, lo: n, hi: n} }

// Gte matches n or more.
func Gte(n int) Bound { return Bound{op: opGte, lo: n} }

// Lte matches n or fewer.
func Lte(n int) Bound { return Bound{op: opLte, hi: n} }

// NewRange matches lo through hi inclusive. It fails when lo > hi.
func NewRange(lo, hi int) (Bound, error) {
	if lo > hi {
		return Bound{}, fmt.Errorf("%w: range lower bound %d exceeds upper bound %d", ErrInvalidConfig, lo, hi)
	}
	return Bound{op: opRange, lo: lo, hi: hi}, nil
}

// Contains reports whether actual satisfies the bound.
func (b Bound) Contains(actual int) bool {
	switch b.op {
	case opEq:
		return actual == b.lo
	case opGte:
		return actual >= b.lo
	case opLte:
		return actual <= b.hi
	case opRange:
		return actual >= b.lo && actual <= b.hi
	}
	return false
}

// String describes the expectation, e.g. "at least 2".
func (b Bound) String() string {
	switch b.op {
	case opEq:
		return fmt.Sprintf("%d", b.lo)
	case opGte:
		return fmt.Sprintf("at least %d", b.lo)
	case opLte:
		return fmt.Sprintf("at most %d", b.hi)
	case opRange:
		return fmt.Sprintf("between %d and %d", b.lo, b.hi)
	}
	return "?"
}

// mismatch formats a failed bound as "expected <bound>, got <actual>".
func (b Bound) mismatch(actual int) string {
	return fmt.Sprintf("expected %s, got %d", b, actual)
}
