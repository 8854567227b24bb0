package soccer

import (
	"context"
	"fmt"

	"github.com/pingcap/errors"
)

// Referee drives the start and end of the match. There is one per world.
type Referee struct {
	w *World
}

func NewReferee(w *World) *Referee {
	return &Referee{w: w}
}

// Run goes through the referee's whole life cycle.
func (r *Referee) Run(ctx context.Context) error {
	steps := []func(context.Context) error{
		r.Arrive,
		r.WaitForTeams,
		r.StartGame,
		r.Play,
		r.EndGame,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Referee) Arrive(ctx context.Context) error {
	if err := r.publish(RefereeArriving); err != nil {
		return err
	}
	return r.w.pacer.Sleep(ctx, r.w.timing.RefereeArrival)
}

// WaitForTeams blocks until both teams have formed and every follower has
// registered with its leader.
func (r *Referee) WaitForTeams(ctx context.Context) error {
	if err := r.publish(RefereeWaiting); err != nil {
		return err
	}
	if err := r.w.teamsReady.Wait(ctx, 1); err != nil {
		return errors.Annotate(err, "referee waiting for teams")
	}

	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	if next := r.w.snap.NextTeamID; next != NumTeams+1 {
		panic(fmt.Sprintf("soccer: teams ready with next team id %d", next))
	}
	return nil
}

// StartGame releases every teammate waiting for the start.
func (r *Referee) StartGame(ctx context.Context) error {
	if err := r.publish(RefereeStarting); err != nil {
		return err
	}
	r.w.start.Post(r.w.cfg.Teammates())
	return nil
}

// Play lets the match run for a while.
func (r *Referee) Play(ctx context.Context) error {
	if err := r.publish(RefereeRefereeing); err != nil {
		return err
	}
	return r.w.pacer.Sleep(ctx, r.w.timing.Match)
}

// EndGame waits until every teammate is playing and then releases them all.
func (r *Referee) EndGame(ctx context.Context) error {
	if err := r.w.allPlaying.Wait(ctx, 1); err != nil {
		return errors.Annotate(err, "referee waiting for teammates to play")
	}
	if err := r.publish(RefereeEnding); err != nil {
		return err
	}
	r.w.end.Post(r.w.cfg.Teammates())
	return nil
}

func (r *Referee) publish(s RefereeState) error {
	r.w.mu.Lock()
	defer r.w.mu.Unlock()
	r.w.snap.Referee = s
	return r.w.saveLocked()
}
