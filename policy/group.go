package policy

import (
	"regexp"

	"github.com/outguard/outguard/breaker"
)

// matchKind distinguishes the three matching strategies.
type matchKind int

const (
	kindExact  matchKind = iota // highest priority
	kindPrefix                  // medium priority
	kindRegex                   // lowest priority
)

// rule is a single matching rule inside a group.
type rule struct {
	kind    matchKind
	pattern string         // used for exact and prefix matches
	re      *regexp.Regexp // used for regex matches
}

// GroupBuilder constructs a service group with one or more matching
// rules and the breaker configuration its members share.
type GroupBuilder struct {
	name  string
	rules []rule
	cfg   *breaker.Config
}

// Group starts building a new service group with the given name.
func Group(name string) *GroupBuilder {
	return &GroupBuilder{name: name}
}

// Exact adds an exact-match rule for a service name.
func (g *GroupBuilder) Exact(service string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindExact, pattern: service})
	return g
}

// Prefix adds a prefix-match rule for service names.
func (g *GroupBuilder) Prefix(prefix string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindPrefix, pattern: prefix})
	return g
}

// Regex adds a regex-match rule for service names.
// The pattern is compiled immediately; an invalid regex will panic.
func (g *GroupBuilder) Regex(pattern string) *GroupBuilder {
	g.rules = append(g.rules, rule{kind: kindRegex, pattern: pattern, re: regexp.MustCompile(pattern)})
	return g
}

// Config attaches the breaker configuration to the group and returns the
// finished builder. The config is not validated here — the breaker
// manager validates at registration time. A group without a config never
// matches.
func (g *GroupBuilder) Config(cfg breaker.Config) *GroupBuilder {
	g.cfg = &cfg
	return g
}
