package agent

import (
	"context"
	"errors"
	"fmt"

	"github.com/arrakis-sim/dune-server-go/internal/game"
	"github.com/arrakis-sim/dune-server-go/internal/game/rules"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxSteps bounds Run so a provider that never converges cannot loop forever.
const DefaultMaxSteps = 200

// ErrStepLimit is returned when a session is still open after MaxSteps submissions.
var ErrStepLimit = errors.New("step limit reached")

// Submitter is the part of the battle engine the driver needs.
type Submitter interface {
	Submit(ctx context.Context, sessionID string, responses []rules.Response) (*game.SessionView, error)
}

// Driver asks providers for answers and feeds them to a session.
type Driver struct {
	engine   Submitter
	provider Provider
	logger   *zap.Logger
	MaxSteps int
}

// NewDriver creates a driver. A nil provider passes on everything.
func NewDriver(engine Submitter, provider Provider, logger *zap.Logger) *Driver {
	if provider == nil {
		provider = PassProvider{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{engine: engine, provider: provider, logger: logger, MaxSteps: DefaultMaxSteps}
}

// Collect asks for every request concurrently and returns the answers in
// request order. A provider that fails passes instead; only a cancelled
// context fails the collection.
func (d *Driver) Collect(ctx context.Context, requests []rules.Request) ([]rules.Response, error) {
	responses := make([]rules.Response, len(requests))
	g, gctx := errgroup.WithContext(ctx)
	for i, req := range requests {
		g.Go(func() error {
			resp, err := d.provider.Decide(gctx, req)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				d.logger.Warn("provider failed, passing",
					zap.String("faction", string(req.FactionID)),
					zap.String("request_type", string(req.RequestType)),
					zap.Error(err),
				)
				resp = rules.Pass(req.FactionID)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("collect responses: %w", err)
	}
	return responses, nil
}

// Run drives the session from view until its phase completes.
func (d *Driver) Run(ctx context.Context, view *game.SessionView) (*game.SessionView, error) {
	limit := d.MaxSteps
	if limit <= 0 {
		limit = DefaultMaxSteps
	}
	for steps := 0; !view.Complete; steps++ {
		if steps >= limit {
			return view, fmt.Errorf("session %s: %w after %d steps", view.SessionID, ErrStepLimit, steps)
		}
		responses, err := d.Collect(ctx, view.Pending)
		if err != nil {
			return view, err
		}
		next, err := d.engine.Submit(ctx, view.SessionID, responses)
		if err != nil {
			return view, err
		}
		d.logger.Debug("driver step",
			zap.String("session_id", next.SessionID),
			zap.Int("sequence", next.Sequence),
			zap.Int("pending", len(next.Pending)),
		)
		view = next
	}
	return view, nil
}
