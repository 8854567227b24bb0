package soccer

import (
	"context"

	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// FieldActor runs the life cycle of one player or goalie.
type FieldActor struct {
	w    *World
	role Role
	id   int
}

func NewPlayer(w *World, id int) (*FieldActor, error) {
	return newFieldActor(w, RolePlayer, id)
}

func NewGoalie(w *World, id int) (*FieldActor, error) {
	return newFieldActor(w, RoleGoalie, id)
}

func newFieldActor(w *World, r Role, id int) (*FieldActor, error) {
	if err := w.cfg.checkID(r, id); err != nil {
		return nil, err
	}
	return &FieldActor{w: w, role: r, id: id}, nil
}

func (a *FieldActor) Role() Role {
	return a.role
}

func (a *FieldActor) ID() int {
	return a.id
}

// Run goes through the whole life cycle. Late actors return after
// ConstituteTeam.
func (a *FieldActor) Run(ctx context.Context) error {
	if err := a.Arrive(ctx); err != nil {
		return err
	}
	team, err := a.ConstituteTeam(ctx)
	if err != nil {
		return err
	}
	if team == 0 {
		return nil
	}
	if err := a.WaitReferee(ctx, team); err != nil {
		return err
	}
	return a.PlayUntilEnd(ctx, team)
}

// Arrive publishes Arriving and then takes some time to walk to the stadium.
func (a *FieldActor) Arrive(ctx context.Context) error {
	if err := a.publish(Arriving, 0); err != nil {
		return err
	}
	return a.w.pacer.Sleep(ctx, a.w.timing.arrival(a.role))
}

// ConstituteTeam joins a team. It returns the team id, or 0 when the actor is
// late.
//
// The first actor to find enough free players and goalies for another team
// leads it: it reserves the team, calls the missing teammates and waits until
// each of them has registered. Any other actor that can still be part of a
// team parks until a leader calls it, then registers with the leader's team.
func (a *FieldActor) ConstituteTeam(ctx context.Context) (int, error) {
	w := a.w
	w.mu.Lock()

	if w.canFormLocked() {
		team, err := w.formTeamLocked(a.role, a.id)
		w.mu.Unlock()
		if err != nil {
			return 0, err
		}
		w.logger.Debug("team formed", zap.Stringer("role", a.role), zap.Int("id", a.id), zap.Int("team", team))
		if err := w.registration[team-1].Wait(ctx, w.cfg.TeamSize()-1); err != nil {
			return 0, errors.Annotatef(err, "%s %d leading team %d", a.role, a.id, team)
		}
		w.mu.Lock()
		w.teamRegisteredLocked()
		w.mu.Unlock()
		return team, nil
	}

	switch {
	case w.reserved[a.role] > 0:
		w.reserved[a.role]--
	case w.snap.NextTeamID <= NumTeams:
		// Free counts only go down, so no leader can appear after this
		// point. Only an infeasible population parks here; it waits until
		// ctx is done.
	default:
		err := a.setLocked(Late, 0)
		w.mu.Unlock()
		return 0, err
	}
	if err := a.setLocked(WaitingTeam, 0); err != nil {
		w.mu.Unlock()
		return 0, err
	}
	w.mu.Unlock()

	if err := w.called[a.role].Wait(ctx, 1); err != nil {
		return 0, errors.Annotatef(err, "%s %d waiting for a team", a.role, a.id)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	team := w.takeInviteLocked(a.role)
	if err := a.setLocked(WaitingTeam, team); err != nil {
		return 0, err
	}
	w.registration[team-1].Post(1)
	return team, nil
}

// WaitReferee waits for the referee to start the match and then plays.
func (a *FieldActor) WaitReferee(ctx context.Context, team int) error {
	w := a.w
	if err := w.start.Wait(ctx, 1); err != nil {
		return errors.Annotatef(err, "%s %d waiting for the start", a.role, a.id)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := a.setLocked(Playing, team); err != nil {
		return err
	}
	w.playing++
	if w.playing == w.cfg.Teammates() {
		w.allPlaying.Post(1)
	}
	return nil
}

// PlayUntilEnd waits for the referee to end the match.
func (a *FieldActor) PlayUntilEnd(ctx context.Context, team int) error {
	if err := a.w.end.Wait(ctx, 1); err != nil {
		return errors.Annotatef(err, "%s %d waiting for the end", a.role, a.id)
	}
	return a.publish(EndingGame, team)
}

func (a *FieldActor) publish(s State, team int) error {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	return a.setLocked(s, team)
}

func (a *FieldActor) setLocked(s State, team int) error {
	a.w.snap.Slots(a.role)[a.id] = Slot{State: s, Team: team}
	return a.w.saveLocked()
}
