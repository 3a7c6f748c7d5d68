package checkout

import (
	"context"
	"log/slog"
)

// step is a single unit of work in the checkout pipeline. Each step has a
// compensating action that undoes its effects when a later step fails.
type step interface {
	name() string
	execute(ctx context.Context) error
	compensate(ctx context.Context) error
}

// orchestrator runs steps sequentially. If a step fails it compensates all
// previously successful steps in LIFO order, then returns the failure.
type orchestrator struct {
	steps []step
}

func (o *orchestrator) run(ctx context.Context) error {
	var done []step

	for _, st := range o.steps {
		slog.DebugContext(ctx, "executing checkout step", slog.String("step", st.name()))
		if err := st.execute(ctx); err != nil {
			slog.WarnContext(ctx, "checkout step failed, rolling back",
				slog.String("step", st.name()), slog.Any("error", err))
			o.rollback(ctx, done)
			return err
		}
		done = append(done, st)
	}
	return nil
}

func (o *orchestrator) rollback(ctx context.Context, done []step) {
	for i := len(done) - 1; i >= 0; i-- {
		st := done[i]
		if err := st.compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "failed to compensate checkout step",
				slog.String("step", st.name()), slog.Any("error", err))
		}
	}
}
