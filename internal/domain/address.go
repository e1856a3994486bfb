package domain

import "strings"

// NormalizeAddress returns the canonical comparison form of an address:
// trimmed and lower-cased.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// SameAddress reports whether two addresses are equal ignoring case.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
