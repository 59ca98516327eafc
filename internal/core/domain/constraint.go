package domain

import (
	"strings"

	"go.trai.ch/zerr"
)

// ComparatorOp is one of the known constraint operators.
type ComparatorOp string

const (
	OpEqual        ComparatorOp = "=="
	OpNotEqual     ComparatorOp = "!="
	OpGreater      ComparatorOp = ">"
	OpGreaterEqual ComparatorOp = ">="
	OpLess         ComparatorOp = "<"
	OpLessEqual    ComparatorOp = "<="
	// OpPessimistic is the "~>" operator: ~> 1.2 allows >= 1.2, < 2.0 and
	// ~> 1.2.3 allows >= 1.2.3, < 1.3.0.
	OpPessimistic ComparatorOp = "~>"
)

// Comparator is a single operator applied to a version.
type Comparator struct {
	Op      ComparatorOp
	Version Version
}

// Constraint is a conjunction of comparators over versions. The zero value
// accepts any version.
type Constraint struct {
	comparators []Comparator
}

// ordered longest-first so ">=" is not read as ">".
var constraintOps = []ComparatorOp{
	OpGreaterEqual, OpLessEqual, OpEqual, OpNotEqual, OpPessimistic, OpGreater, OpLess,
}

// ParseConstraint parses a comma-separated comparator list such as
// ">= 1.0, < 2.0". A bare version is shorthand for an exact match.
// An empty expression yields the any-version constraint.
func ParseConstraint(text string) (Constraint, error) {
	expr := strings.TrimSpace(text)
	if expr == "" || expr == "*" {
		return Constraint{}, nil
	}

	parts := strings.Split(expr, ",")
	comparators := make([]Comparator, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			return Constraint{}, zerr.With(ErrMalformedConstraint, "expression", text)
		}

		op := OpEqual
		rest := part
		for _, candidate := range constraintOps {
			if strings.HasPrefix(part, string(candidate)) {
				op = candidate
				rest = strings.TrimSpace(part[len(candidate):])
				break
			}
		}
		if rest == "" {
			return Constraint{}, zerr.With(ErrMalformedConstraint, "expression", text)
		}

		version, err := ParseVersion(rest)
		if err != nil {
			return Constraint{}, zerr.With(zerr.Wrap(err, ErrMalformedConstraint.Error()), "expression", text)
		}
		comparators = append(comparators, Comparator{Op: op, Version: version})
	}

	return Constraint{comparators: comparators}, nil
}

// MustParseConstraint parses a constraint expression and panics on failure.
func MustParseConstraint(text string) Constraint {
	c, err := ParseConstraint(text)
	if err != nil {
		panic(err)
	}
	return c
}

// Exact returns a constraint matching exactly the given version.
func Exact(v Version) Constraint {
	return Constraint{comparators: []Comparator{{Op: OpEqual, Version: v}}}
}

// IsAny reports whether the constraint accepts every version.
func (c Constraint) IsAny() bool {
	return len(c.comparators) == 0
}

// ExactVersion returns the pinned version and true if the constraint is a
// single exact-match comparator.
func (c Constraint) ExactVersion() (Version, bool) {
	if len(c.comparators) == 1 && c.comparators[0].Op == OpEqual {
		return c.comparators[0].Version, true
	}
	return Version{}, false
}

// Satisfies reports whether the version passes every comparator.
func (c Constraint) Satisfies(v Version) bool {
	for _, cmp := range c.comparators {
		if !satisfiesOne(v, cmp) {
			return false
		}
	}
	return true
}

func satisfiesOne(v Version, cmp Comparator) bool {
	switch cmp.Op {
	case OpEqual:
		return v.Compare(cmp.Version) == 0
	case OpNotEqual:
		return v.Compare(cmp.Version) != 0
	case OpGreater:
		return v.Compare(cmp.Version) > 0
	case OpGreaterEqual:
		return v.Compare(cmp.Version) >= 0
	case OpLess:
		return v.Compare(cmp.Version) < 0
	case OpLessEqual:
		return v.Compare(cmp.Version) <= 0
	case OpPessimistic:
		if v.Compare(cmp.Version) < 0 {
			return false
		}
		return v.Compare(pessimisticUpperBound(cmp.Version)) < 0
	}
	return false
}

// pessimisticUpperBound computes the exclusive upper bound of "~> v":
// the second-to-last component bumped by one, the rest dropped.
func pessimisticUpperBound(v Version) Version {
	components := v.Components()
	if len(components) < 2 {
		return Version{components: []int{components[0] + 1}}
	}
	bound := components[:len(components)-1]
	bound[len(bound)-1]++
	return Version{components: bound}
}

// Intersects reports whether the sets of versions accepted by c and other can
// overlap. It is conservative: it may report true for comparator pairs it
// cannot decide, but never false for two constraints with a common version.
// The resolver uses it to prune candidate branches early.
func (c Constraint) Intersects(other Constraint) bool {
	lo, loInc, hi, hiInc := mergeBounds(append(c.bounds(), other.bounds()...))
	if lo.IsZero() || hi.IsZero() {
		return true
	}
	cmp := lo.Compare(hi)
	if cmp > 0 {
		return false
	}
	if cmp == 0 && (!loInc || !hiInc) {
		return false
	}
	return true
}

type bound struct {
	lower     bool
	inclusive bool
	version   Version
}

func (c Constraint) bounds() []bound {
	var out []bound
	for _, cmp := range c.comparators {
		switch cmp.Op {
		case OpEqual:
			out = append(out,
				bound{lower: true, inclusive: true, version: cmp.Version},
				bound{lower: false, inclusive: true, version: cmp.Version})
		case OpGreater:
			out = append(out, bound{lower: true, version: cmp.Version})
		case OpGreaterEqual:
			out = append(out, bound{lower: true, inclusive: true, version: cmp.Version})
		case OpLess:
			out = append(out, bound{lower: false, version: cmp.Version})
		case OpLessEqual:
			out = append(out, bound{lower: false, inclusive: true, version: cmp.Version})
		case OpPessimistic:
			out = append(out,
				bound{lower: true, inclusive: true, version: cmp.Version},
				bound{lower: false, version: pessimisticUpperBound(cmp.Version)})
		case OpNotEqual:
			// A point exclusion does not constrain the range check.
		}
	}
	return out
}

// mergeBounds folds bounds into the tightest (lower, upper) pair. A zero
// Version means unbounded on that side.
func mergeBounds(bounds []bound) (lo Version, loInc bool, hi Version, hiInc bool) {
	for _, b := range bounds {
		if b.lower {
			if lo.IsZero() || b.version.Compare(lo) > 0 || (b.version.Compare(lo) == 0 && !b.inclusive) {
				lo, loInc = b.version, b.inclusive
			}
		} else {
			if hi.IsZero() || b.version.Compare(hi) < 0 || (b.version.Compare(hi) == 0 && !b.inclusive) {
				hi, hiInc = b.version, b.inclusive
			}
		}
	}
	return lo, loInc, hi, hiInc
}

// String renders the constraint in canonical form: comparators in declared
// order, single spaces, comma separated. The any-version constraint renders
// as "*".
func (c Constraint) String() string {
	if len(c.comparators) == 0 {
		return "*"
	}
	parts := make([]string, len(c.comparators))
	for i, cmp := range c.comparators {
		parts[i] = string(cmp.Op) + " " + cmp.Version.String()
	}
	return strings.Join(parts, ", ")
}

// MarshalText implements encoding.TextMarshaler.
func (c Constraint) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Constraint) UnmarshalText(text []byte) error {
	parsed, err := ParseConstraint(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
