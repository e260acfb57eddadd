// Package agent connects decision makers to battle sessions. A Provider
// answers one request; the Driver collects answers for every pending request
// of a step and submits them until the phase completes.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"github.com/arrakis-sim/dune-server-go/internal/game/state"
)

// Provider answers a request on behalf of a faction.
type Provider interface {
	Decide(ctx context.Context, req rules.Request) (rules.Response, error)
}

// ProviderFunc adapts a function to a Provider.
type ProviderFunc func(ctx context.Context, req rules.Request) (rules.Response, error)

// Decide implements Provider.
func (f ProviderFunc) Decide(ctx context.Context, req rules.Request) (rules.Response, error) {
	return f(ctx, req)
}

// PassProvider passes on every request.
type PassProvider struct{}

// Decide implements Provider.
func (PassProvider) Decide(_ context.Context, req rules.Request) (rules.Response, error) {
	return rules.Pass(req.FactionID), nil
}

// ScriptedProvider replays queued responses per request type and passes once
// a queue runs dry.
type ScriptedProvider struct {
	mu      sync.Mutex
	scripts map[rules.RequestType][]rules.Response
	seen    []rules.Request
}

// NewScriptedProvider creates an empty script.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{scripts: make(map[rules.RequestType][]rules.Response)}
}

// On queues responses for a request type.
func (p *ScriptedProvider) On(rt rules.RequestType, responses ...rules.Response) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[rt] = append(p.scripts[rt], responses...)
	return p
}

// Decide implements Provider.
func (p *ScriptedProvider) Decide(_ context.Context, req rules.Request) (rules.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seen = append(p.seen, req)
	queue := p.scripts[req.RequestType]
	if len(queue) == 0 {
		return rules.Pass(req.FactionID), nil
	}
	resp := queue[0]
	p.scripts[req.RequestType] = queue[1:]
	resp.FactionID = req.FactionID
	return resp, nil
}

// Seen returns every request the provider was asked.
func (p *ScriptedProvider) Seen() []rules.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]rules.Request(nil), p.seen...)
}

// Roster maps factions to their providers, falling back to a default.
type Roster struct {
	providers map[state.Faction]Provider
	fallback  Provider
}

// NewRoster creates a roster whose unassigned factions use fallback, or pass
// when fallback is nil.
func NewRoster(fallback Provider) *Roster {
	if fallback == nil {
		fallback = PassProvider{}
	}
	return &Roster{providers: make(map[state.Faction]Provider), fallback: fallback}
}

// Assign sets the provider for a faction.
func (r *Roster) Assign(f state.Faction, p Provider) *Roster {
	r.providers[f] = p
	return r
}

// For returns the provider answering for a faction.
func (r *Roster) For(f state.Faction) Provider {
	if p, ok := r.providers[f]; ok {
		return p
	}
	return r.fallback
}

// Decide routes the request to the faction's provider.
func (r *Roster) Decide(ctx context.Context, req rules.Request) (rules.Response, error) {
	resp, err := r.For(req.FactionID).Decide(ctx, req)
	if err != nil {
		return rules.Response{}, fmt.Errorf("%s %s: %w", req.FactionID, req.RequestType, err)
	}
	return resp, nil
}
