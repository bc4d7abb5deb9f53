// Package identity normalizes phone-number-like identifiers and answers
// owner membership questions.
package identity

import "strings"

// Normalize strips everything but ASCII digits from raw. ok is false when no
// digit is present. Transport suffixes such as "@c.us" contain no digits and
// fall away with the rest.
func Normalize(raw string) (digits string, ok bool) {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

// Canonical returns the stored owner form "+<digits>".
func Canonical(raw string) (string, bool) {
	d, ok := Normalize(raw)
	if !ok {
		return "", false
	}
	return "+" + d, true
}

// ParseList splits a comma-separated list of numbers and returns the
// canonical form of every entry that contains at least one digit, in input
// order.
func ParseList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if c, ok := Canonical(part); ok {
			out = append(out, c)
		}
	}
	return out
}

// Resolver decides owner membership against a primary owner and an owner
// list. The zero value has no owners.
type Resolver struct {
	Primary string
	Owners  []string
}

// IsOwner reports whether identity matches the primary owner or any listed
// owner by digit equality.
func (r Resolver) IsOwner(identity string) bool {
	n, ok := Normalize(identity)
	if !ok {
		return false
	}
	if p, ok := Normalize(r.Primary); ok && p == n {
		return true
	}
	for _, o := range r.Owners {
		if d, ok := Normalize(o); ok && d == n {
			return true
		}
	}
	return false
}
