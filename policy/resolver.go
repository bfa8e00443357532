package policy

import "github.com/outguard/outguard/breaker"

// Resolver holds a set of service groups and resolves an upstream
// service name to the best-matching group's breaker configuration.
type Resolver struct {
	groups []*GroupBuilder
}

// NewResolver creates a Resolver from the supplied group builders.
func NewResolver(groups ...*GroupBuilder) *Resolver {
	return &Resolver{groups: groups}
}

// Resolve finds the best-matching group for a service name.
//
// Priority rules:
//   - Exact matches beat prefix matches, which beat regex matches.
//   - Among matches of the same kind the longer match wins.
//   - When two matches have equal kind and length the group that was
//     registered first (stable order) wins.
//
// If no group with a config matches, ok is false.
func (res *Resolver) Resolve(service string) (cfg breaker.Config, groupName string, ok bool) {
	bestKind := matchKind(-1)
	bestLen := -1

	for _, g := range res.groups {
		if g.cfg == nil {
			continue
		}
		for _, r := range g.rules {
			matched, mLen := r.match(service)
			if !matched {
				continue
			}
			// A lower kind value means higher priority.
			better := bestKind < 0 ||
				r.kind < bestKind ||
				(r.kind == bestKind && mLen > bestLen)
			if better {
				bestKind = r.kind
				bestLen = mLen
				cfg = *g.cfg
				groupName = g.name
				ok = true
			}
		}
	}
	return cfg, groupName, ok
}

// ConfigFor reports the configuration for a service when some group
// claims it. It makes the Resolver usable as the breaker manager's
// config source.
func (res *Resolver) ConfigFor(service string) (breaker.Config, bool) {
	cfg, _, ok := res.Resolve(service)
	return cfg, ok
}
