package mediaparser

import (
	"slices"
	"strings"
)

// AutoplugPolicy decides which candidate decoders the engine may plug.
// A candidate is rejected when its name contains any of Substrings or
// equals any of Names.
type AutoplugPolicy struct {
	Substrings []string
	Names      []string
}

// DefaultAutoplugPolicy returns the built-in decoder blacklist.
func DefaultAutoplugPolicy() *AutoplugPolicy {
	return &AutoplugPolicy{
		Substrings: []string{"Player protection"},
		Names:      []string{"Fluendo Hardware Accelerated Video Decoder"},
	}
}

// Select returns the decision for the candidate named name.
func (a *AutoplugPolicy) Select(name string) AutoplugResult {
	if a == nil {
		return AutoplugTry
	}
	for _, sub := range a.Substrings {
		if sub != "" && strings.Contains(name, sub) {
			return AutoplugSkip
		}
	}
	if slices.Contains(a.Names, name) {
		return AutoplugSkip
	}
	return AutoplugTry
}
