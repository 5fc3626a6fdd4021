// Package source loads the list of registry mirror endpoints to evaluate.
//
// A [Provider] yields raw endpoint identifiers (host[:port], no scheme).
// [Load] runs a provider and validates what it returns:
//
//	eps, err := source.Load(ctx, source.Multi(
//	    source.Markdown{Path: "mirrors.md"},
//	    source.Static{"mirror.ccs.tencentyun.com"},
//	))
//	if errors.Is(err, source.ErrNoEndpoints) {
//	    // nothing to probe
//	}
package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrNoEndpoints is returned by [Load] when the provider yields no endpoints.
var ErrNoEndpoints = errors.New("no valid mirror endpoints found")

// Provider yields endpoint identifiers in source order. Duplicates are
// preserved.
type Provider interface {
	Endpoints(ctx context.Context) ([]string, error)
}

// Static is a fixed list of endpoints.
type Static []string

// Endpoints returns a copy of s.
func (s Static) Endpoints(ctx context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// multi concatenates providers in order.
type multi []Provider

// Multi returns a [Provider] that concatenates the endpoints of providers in
// the order given. The first failing provider aborts the load.
func Multi(providers ...Provider) Provider {
	return multi(providers)
}

func (m multi) Endpoints(ctx context.Context) ([]string, error) {
	var all []string
	for _, p := range m {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		eps, err := p.Endpoints(ctx)
		if err != nil {
			return nil, err
		}
		all = append(all, eps...)
	}
	return all, nil
}

// Validate trims every entry and checks that it is a bare host[:port].
//
// An entry is invalid if it is empty, carries a scheme, contains whitespace
// or contains a '/'. The error names the index of the first invalid entry.
func Validate(endpoints []string) ([]string, error) {
	out := make([]string, 0, len(endpoints))
	for i, raw := range endpoints {
		ep := strings.TrimSpace(raw)
		switch {
		case ep == "":
			return nil, fmt.Errorf("endpoints[%d]: endpoint is empty", i)
		case strings.Contains(ep, "://"):
			return nil, fmt.Errorf("endpoints[%d] (%s): endpoint must not include a scheme", i, ep)
		case strings.IndexFunc(ep, unicode.IsSpace) >= 0:
			return nil, fmt.Errorf("endpoints[%d] (%s): endpoint must not contain whitespace", i, ep)
		case strings.Contains(ep, "/"):
			return nil, fmt.Errorf("endpoints[%d] (%s): endpoint must not contain a path", i, ep)
		}
		out = append(out, ep)
	}
	return out, nil
}

// Load runs p and validates the result.
//
// Returns [ErrNoEndpoints] if p yields nothing, so callers can report the
// precondition failure before any probing starts.
func Load(ctx context.Context, p Provider) ([]string, error) {
	raw, err := p.Endpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load endpoints: %w", err)
	}

	endpoints, err := Validate(raw)
	if err != nil {
		return nil, err
	}
	if len(endpoints) == 0 {
		return nil, ErrNoEndpoints
	}
	return endpoints, nil
}
