package perm

import (
	"fmt"
	"strings"

	"github.com/forge-club/forge/internal/shared"
)

// Vector is a role's stored permission bit-string: exactly Size() characters
// of '0' and '1', where position i corresponds to catalog index i.
type Vector string

// ParseVector validates a raw bit-string against the catalog layout.
func ParseVector(raw string) (Vector, error) {
	if len(raw) != Size() {
		return "", fmt.Errorf("%w: permission vector must be %d characters, got %d", shared.ErrInvalidArgument, Size(), len(raw))
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] != '0' && raw[i] != '1' {
			return "", fmt.Errorf("%w: permission vector may only contain '0' and '1'", shared.ErrInvalidArgument)
		}
	}
	return Vector(raw), nil
}

// ZeroVector returns an all-false vector.
func ZeroVector() Vector {
	return Vector(strings.Repeat("0", Size()))
}

// Has reports whether bit i is set. Out-of-range indices are false.
func (v Vector) Has(i int) bool {
	if i < 0 || i >= len(v) {
		return false
	}
	return v[i] == '1'
}

// Names returns the display names of every set bit, in catalog order.
func (v Vector) Names() []string {
	var names []string
	for i := range catalog {
		if v.Has(i) {
			names = append(names, catalog[i].DisplayName)
		}
	}
	return names
}

// Set is a principal's effective permission set: the OR-aggregation of the
// vectors of every role granted to the principal. The zero value of a
// freshly constructed Set grants nothing.
type Set struct {
	bits []bool
}

// NewSet returns an all-false effective set sized to the catalog.
func NewSet() *Set {
	return &Set{bits: make([]bool, Size())}
}

// Or folds a role vector into the set. The operation is idempotent and
// order-independent.
func (s *Set) Or(v Vector) {
	for i := 0; i < len(s.bits) && i < len(v); i++ {
		if v[i] == '1' {
			s.bits[i] = true
		}
	}
}

// Has reports whether the named permission is granted. The name must come
// from the catalog; unknown names are a programming error.
func (s *Set) Has(name string) bool {
	i, ok := IndexOf(name)
	if !ok {
		panic(fmt.Sprintf("perm: unknown permission %q", name))
	}
	return s.bits[i]
}

// HasIndex reports whether bit i is granted.
func (s *Set) HasIndex(i int) bool {
	return i >= 0 && i < len(s.bits) && s.bits[i]
}
