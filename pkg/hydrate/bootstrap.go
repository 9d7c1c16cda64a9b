package hydrate

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"statehydrate/pkg/replay"
)

// Bootstrap stages, in order. Terminal outcomes are "done" and "failed".
type stage string

const (
	stageDiscover stage = "discover"
	stageBarrier  stage = "barrier"
	stageHydrate  stage = "hydrate"
	stagePublish  stage = "publish"
)

// Bootstrapper drives one orchestration run:
// DISCOVER -> BARRIER -> HYDRATE(xN) -> PUBLISH.
type Bootstrapper struct {
	Registry Registry
	Context  *BootstrapContext

	// Guard skips tokens a prior successful run already applied. Nil
	// disables replay protection.
	Guard replay.Guard

	// ExplicitToken short-circuits discovery: it is used exclusively,
	// ahead of the queue and the location query parameter.
	ExplicitToken string

	// QueryKey overrides the query parameter name. Empty means QueryKey.
	QueryKey string

	Barrier BarrierOptions

	// Hydrate overrides the hydration options. Nil means DefaultOptions,
	// i.e. strict mode.
	Hydrate *HydrateOptions

	Logger *zap.Logger
}

// Run executes the orchestration. Outcomes:
//   - nothing discovered: (nil, nil), nothing published;
//   - payloads applied (even with failed sections): aggregate result
//     published and returned, nil error;
//   - barrier or unexpected failure: a synthetic result failing every
//     registry section is published, and the wrapped error is returned
//     alongside it.
func (b *Bootstrapper) Run(ctx context.Context) (*Result, error) {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("run", uuid.New().String()))

	entries := b.discover(logger)
	if len(entries) == 0 {
		logger.Debug("no payload discovered, nothing to do")
		return nil, nil
	}

	if err := WaitPersisted(ctx, b.Registry, b.Barrier); err != nil {
		return b.fail(logger, stageBarrier, err)
	}
	logger.Debug("persisted cells ready")

	aggregate := newResult()
	for _, entry := range entries {
		key := entry.ReplayKey
		if key == "" {
			key = replay.Key(entry.Token)
		}

		if b.Guard != nil {
			seen, err := b.Guard.Seen(ctx, key)
			if err != nil {
				return b.fail(logger, stageHydrate, err)
			}
			if seen {
				logger.Debug("token already applied, skipping", zap.String("key", key))
				continue
			}
		}

		res := ApplyToken(entry.Token, b.Registry, b.hydrateOptions(logger))
		aggregate.merge(res)
		logger.Debug("token hydrated",
			zap.String("key", key),
			zap.Bool("success", res.OverallSuccess),
			zap.Int("sections", len(res.Sections)))

		if res.OverallSuccess && b.Guard != nil {
			if err := b.Guard.Record(ctx, key); err != nil {
				return b.fail(logger, stageHydrate, err)
			}
		}
	}

	if err := b.Context.Publish(aggregate); err != nil {
		return b.fail(logger, stagePublish, err)
	}
	logger.Info("hydration complete",
		zap.Bool("success", aggregate.OverallSuccess),
		zap.Int("sections", len(aggregate.Sections)))
	return aggregate, nil
}

// discover resolves payload tokens; the first matching source wins
// exclusively. Precedence: explicit token, then the staged queue, then the
// location query parameter.
func (b *Bootstrapper) discover(logger *zap.Logger) []QueueEntry {
	if b.ExplicitToken != "" {
		logger.Debug("using explicit token")
		return []QueueEntry{{Token: b.ExplicitToken}}
	}
	if queued := b.Context.DrainQueue(); len(queued) > 0 {
		logger.Debug("using staged tokens", zap.Int("count", len(queued)))
		return queued
	}
	key := b.QueryKey
	if key == "" {
		key = QueryKey
	}
	if token, ok := b.Context.QueryToken(key); ok {
		logger.Debug("using query parameter token", zap.String("key", key))
		return []QueueEntry{{Token: token}}
	}
	return nil
}

func (b *Bootstrapper) hydrateOptions(logger *zap.Logger) HydrateOptions {
	opts := DefaultOptions()
	if b.Hydrate != nil {
		opts = *b.Hydrate
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return opts
}

// fail publishes a synthetic result failing every registry section, then
// returns it with the wrapped orchestration error.
func (b *Bootstrapper) fail(logger *zap.Logger, at stage, cause error) (*Result, error) {
	wrapped := &OrchestrationError{Stage: string(at), Err: cause}
	synthetic := failAll(b.Registry, fmt.Sprintf("bootstrap failed: %v", cause))
	if err := b.Context.Publish(synthetic); err != nil {
		logger.Error("failed to publish failure result", zap.Error(err))
	}
	logger.Error("bootstrap failed", zap.String("stage", string(at)), zap.Error(cause))
	return synthetic, wrapped
}
