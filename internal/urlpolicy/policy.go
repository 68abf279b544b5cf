// Package urlpolicy decides which discovered URLs may be explored.
// A policy is compiled once from a source's allow and deny patterns and is
// then a pure function of the URL string: no network access, no clock, no
// mutable state.
package urlpolicy

import (
	"fmt"
	"regexp"
)

// Policy evaluates URLs against compiled allow and deny patterns.
//
// Deny always wins: a URL matching any deny pattern is rejected even when
// an allow pattern also matches it. A URL matching no allow pattern is
// rejected; exploration is opt-in.
type Policy struct {
	allow []*regexp.Regexp
	deny  []*regexp.Regexp
}

// New compiles allow and deny patterns into a Policy. An invalid pattern is
// a configuration error reported with the offending pattern.
func New(allowPatterns, denyPatterns []string) (*Policy, error) {
	allow, err := compilePatterns(allowPatterns)
	if err != nil {
		return nil, fmt.Errorf("allow pattern: %w", err)
	}
	deny, err := compilePatterns(denyPatterns)
	if err != nil {
		return nil, fmt.Errorf("deny pattern: %w", err)
	}
	return &Policy{allow: allow, deny: deny}, nil
}

// MustNew is New for patterns known valid at compile time, such as test
// fixtures and built-in defaults.
func MustNew(allowPatterns, denyPatterns []string) *Policy {
	p, err := New(allowPatterns, denyPatterns)
	if err != nil {
		panic(err)
	}
	return p
}

// Allowed reports whether the URL passes the policy.
func (p *Policy) Allowed(url string) bool {
	for _, re := range p.deny {
		if re.MatchString(url) {
			return false
		}
	}
	for _, re := range p.allow {
		if re.MatchString(url) {
			return true
		}
	}
	return false
}

// AllowCount returns the number of compiled allow patterns.
func (p *Policy) AllowCount() int { return len(p.allow) }

// DenyCount returns the number of compiled deny patterns.
func (p *Policy) DenyCount() int { return len(p.deny) }

func compilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", pattern, err)
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}
