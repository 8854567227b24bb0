package soccer

import (
	"context"
	"fmt"
	"time"

	"github.com/pingcap/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Harness spawns the whole population of a world and waits for it.
type Harness struct {
	w           *World
	refereeLast bool
}

type HarnessOption func(*Harness)

// WithRefereeLast starts the referee after every player and goalie.
func WithRefereeLast() HarnessOption {
	return func(h *Harness) { h.refereeLast = true }
}

func NewHarness(w *World, opts ...HarnessOption) *Harness {
	h := &Harness{w: w}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Harness) World() *World {
	return h.w
}

// Run starts one referee and every player and goalie, and returns once all of
// them have finished. A failing actor does not stop the others; the run then
// ends when ctx does, with ErrStalled as the cause.
func (h *Harness) Run(ctx context.Context) (Snapshot, error) {
	cfg := h.w.cfg
	logger := h.w.logger
	if !cfg.Feasible() {
		logger.Warn("population cannot form every team, the run will not finish",
			zap.Int("players", cfg.Players), zap.Int("goalies", cfg.Goalies))
	}

	actors := make([]*FieldActor, 0, cfg.Players+cfg.Goalies)
	for _, r := range roles {
		for id := 0; id < cfg.Population(r); id++ {
			a, err := newFieldActor(h.w, r, id)
			if err != nil {
				return Snapshot{}, err
			}
			actors = append(actors, a)
		}
	}
	referee := NewReferee(h.w)

	var g errgroup.Group
	spawn := func(name string, run func(context.Context) error) {
		g.Go(func() error {
			if err := run(ctx); err != nil {
				logger.Error("actor failed", zap.String("actor", name), zap.Error(err))
				return errors.Annotate(err, name)
			}
			return nil
		})
	}

	begin := time.Now()
	if !h.refereeLast {
		spawn("referee", referee.Run)
	}
	for _, a := range actors {
		spawn(fmt.Sprintf("%s %d", a.role, a.id), a.Run)
	}
	if h.refereeLast {
		spawn("referee", referee.Run)
	}

	err := g.Wait()
	final := h.w.Snapshot()
	if err != nil {
		if ctx.Err() != nil {
			return final, errors.Annotatef(ErrStalled, "%v", err)
		}
		return final, err
	}
	logger.Info("simulation finished",
		zap.Duration("elapsed", time.Since(begin)),
		zap.Int("teams", final.TeamsFormed()))
	return final, nil
}
