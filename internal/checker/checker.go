// Package checker verifies that a state log describes a correct run.
package checker

import (
	"fmt"
	"strings"

	"github.com/pingcap/errors"
	"go.uber.org/multierr"

	"github.com/theadell/soccergame/internal/soccer"
	"github.com/theadell/soccergame/internal/statelog"
)

// Property is a named check over a whole log.
type Property struct {
	Name  string
	Check func(*statelog.Log) error
}

// Properties returns every property a completed run must satisfy.
func Properties() []Property {
	return []Property{
		{Name: "counters", Check: checkCounters},
		{Name: "single-transition", Check: checkSingleTransition},
		{Name: "lifecycle", Check: checkLifecycles},
		{Name: "referee", Check: checkReferee},
		{Name: "final", Check: checkFinal},
		{Name: "ordering", Check: checkOrdering},
	}
}

// Violation is a failed property.
type Violation struct {
	Property string
	Err      error
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s: %v", v.Property, v.Err)
}

// Verify evaluates every property and returns all violations combined, or nil.
func Verify(l *statelog.Log) error {
	var err error
	for _, p := range Properties() {
		if perr := p.Check(l); perr != nil {
			err = multierr.Append(err, &Violation{Property: p.Name, Err: perr})
		}
	}
	return err
}

// Started reports whether the referee ever whistled the start. A run that
// deadlocked during team formation never does.
func Started(l *statelog.Log) bool {
	for _, rec := range l.Records {
		if rec.Snapshot.Referee >= soccer.RefereeStarting {
			return true
		}
	}
	return false
}

// Violations splits the error returned by Verify.
func Violations(err error) []error {
	return multierr.Errors(err)
}

func checkCounters(l *statelog.Log) error {
	cfg := l.Config
	prev := soccer.NewSnapshot(cfg)
	var errs error
	for _, rec := range l.Records {
		s := rec.Snapshot
		if s.NextTeamID < 1 || s.NextTeamID > soccer.NumTeams+1 {
			errs = multierr.Append(errs, errors.Errorf("record %d: next team id %d", rec.Seq, s.NextTeamID))
			continue
		}
		if want := cfg.Players - cfg.PlayersPerTeam*s.TeamsFormed(); s.PlayersFree != want {
			errs = multierr.Append(errs, errors.Errorf("record %d: %d free players after %d teams, want %d",
				rec.Seq, s.PlayersFree, s.TeamsFormed(), want))
		}
		if want := cfg.Goalies - cfg.GoaliesPerTeam*s.TeamsFormed(); s.GoaliesFree != want {
			errs = multierr.Append(errs, errors.Errorf("record %d: %d free goalies after %d teams, want %d",
				rec.Seq, s.GoaliesFree, s.TeamsFormed(), want))
		}
		if s.PlayersFree > prev.PlayersFree || s.GoaliesFree > prev.GoaliesFree || s.NextTeamID < prev.NextTeamID {
			errs = multierr.Append(errs, errors.Errorf("record %d: counters went backwards", rec.Seq))
		}
		prev = s
	}
	return errs
}

func checkSingleTransition(l *statelog.Log) error {
	var errs error
	for i := 1; i < len(l.Records); i++ {
		prev, cur := l.Records[i-1].Snapshot, l.Records[i].Snapshot
		changed := 0
		if prev.Referee != cur.Referee {
			changed++
		}
		for _, pair := range [][2][]soccer.Slot{{prev.Players, cur.Players}, {prev.Goalies, cur.Goalies}} {
			for j := range pair[0] {
				if pair[0][j] != pair[1][j] {
					changed++
				}
			}
		}
		if changed > 1 {
			errs = multierr.Append(errs, errors.Errorf("record %d changes %d actors at once", l.Records[i].Seq, changed))
		}
	}
	return errs
}

// legal lists the states a field actor may move to from each state.
var legal = map[soccer.State][]soccer.State{
	soccer.StateNone:   {soccer.Arriving},
	soccer.Arriving:    {soccer.Late, soccer.FormingTeam, soccer.WaitingTeam},
	soccer.FormingTeam: {soccer.Playing},
	soccer.WaitingTeam: {soccer.WaitingTeam, soccer.Playing},
	soccer.Playing:     {soccer.EndingGame},
}

func checkLifecycles(l *statelog.Log) error {
	var errs error
	for _, tr := range traces(l) {
		if err := tr.check(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func checkReferee(l *statelog.Log) error {
	want := []soccer.RefereeState{
		soccer.RefereeArriving,
		soccer.RefereeWaiting,
		soccer.RefereeStarting,
		soccer.RefereeRefereeing,
		soccer.RefereeEnding,
	}
	var got []soccer.RefereeState
	last := soccer.RefereeNone
	for _, rec := range l.Records {
		if s := rec.Snapshot.Referee; s != last {
			got = append(got, s)
			last = s
		}
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		return errors.Errorf("referee went through %v, want %v", got, want)
	}
	return nil
}

func checkFinal(l *statelog.Log) error {
	if len(l.Records) == 0 {
		return errors.New("log has no records")
	}
	cfg := l.Config
	final := l.Last()
	var errs error
	if final.NextTeamID != soccer.NumTeams+1 {
		errs = multierr.Append(errs, errors.Errorf("run ended with next team id %d", final.NextTeamID))
	}
	if final.Referee != soccer.RefereeEnding {
		errs = multierr.Append(errs, errors.Errorf("referee ended in %s", final.Referee))
	}

	type count struct{ players, goalies, leaders int }
	teams := make(map[int]*count, soccer.NumTeams)
	for t := 1; t <= soccer.NumTeams; t++ {
		teams[t] = &count{}
	}
	for _, tr := range traces(l) {
		last := tr.slots[len(tr.slots)-1]
		switch last.State {
		case soccer.Late, soccer.EndingGame:
		default:
			errs = multierr.Append(errs, errors.Errorf("%s ended in %s", tr.name, last.State))
			continue
		}
		if last.State == soccer.Late {
			continue
		}
		c, ok := teams[last.Team]
		if !ok {
			errs = multierr.Append(errs, errors.Errorf("%s ended with team %d", tr.name, last.Team))
			continue
		}
		if tr.role == soccer.RoleGoalie {
			c.goalies++
		} else {
			c.players++
		}
		if tr.led() {
			c.leaders++
		}
	}
	for t := 1; t <= soccer.NumTeams; t++ {
		c := teams[t]
		if c.players != cfg.PlayersPerTeam || c.goalies != cfg.GoaliesPerTeam {
			errs = multierr.Append(errs, errors.Errorf("team %d has %d players and %d goalies, want %d and %d",
				t, c.players, c.goalies, cfg.PlayersPerTeam, cfg.GoaliesPerTeam))
		}
		if c.leaders != 1 {
			errs = multierr.Append(errs, errors.Errorf("team %d has %d leaders", t, c.leaders))
		}
	}
	return errs
}

func checkOrdering(l *statelog.Log) error {
	var (
		errs      error
		formed    = map[int]int{}
		started   = -1
		ended     = -1
		firstPlay = -1
		firstEnd  = -1
	)
	prev := soccer.NewSnapshot(l.Config)
	for i, rec := range l.Records {
		s := rec.Snapshot
		if s.Referee == soccer.RefereeStarting && started < 0 {
			started = i
		}
		if s.Referee == soccer.RefereeEnding && ended < 0 {
			ended = i
		}
		for _, r := range []soccer.Role{soccer.RolePlayer, soccer.RoleGoalie} {
			before, after := prev.Slots(r), s.Slots(r)
			for id := range after {
				if before[id] == after[id] {
					continue
				}
				slot := after[id]
				switch slot.State {
				case soccer.FormingTeam:
					formed[slot.Team] = i
				case soccer.WaitingTeam:
					if slot.Team == 0 {
						break
					}
					if at, ok := formed[slot.Team]; !ok || at > i {
						errs = multierr.Append(errs, errors.Errorf("record %d: %s %d joined team %d before its leader formed it",
							rec.Seq, r, id, slot.Team))
					}
				case soccer.Playing:
					if firstPlay < 0 {
						firstPlay = i
					}
				case soccer.EndingGame:
					if firstEnd < 0 {
						firstEnd = i
					}
				}
			}
		}
		prev = s
	}
	if firstPlay >= 0 && (started < 0 || started > firstPlay) {
		errs = multierr.Append(errs, errors.New("a teammate played before the referee started the match"))
	}
	if firstEnd >= 0 && (ended < 0 || ended > firstEnd) {
		errs = multierr.Append(errs, errors.New("a teammate ended before the referee ended the match"))
	}
	return errs
}

// trace is the sequence of distinct slots one field actor went through.
type trace struct {
	name  string
	role  soccer.Role
	slots []soccer.Slot
}

func traces(l *statelog.Log) []*trace {
	var out []*trace
	for _, r := range []soccer.Role{soccer.RolePlayer, soccer.RoleGoalie} {
		for id := 0; id < l.Config.Population(r); id++ {
			tr := &trace{name: fmt.Sprintf("%s %d", r, id), role: r, slots: []soccer.Slot{{}}}
			for _, rec := range l.Records {
				snap := rec.Snapshot
				slot := snap.Slots(r)[id]
				if slot != tr.slots[len(tr.slots)-1] {
					tr.slots = append(tr.slots, slot)
				}
			}
			out = append(out, tr)
		}
	}
	return out
}

func (tr *trace) led() bool {
	for _, s := range tr.slots {
		if s.State == soccer.FormingTeam {
			return true
		}
	}
	return false
}

func (tr *trace) check() error {
	team := 0
	for i := 1; i < len(tr.slots); i++ {
		from, to := tr.slots[i-1], tr.slots[i]
		ok := false
		for _, next := range legal[from.State] {
			if next == to.State {
				ok = true
				break
			}
		}
		if !ok {
			return errors.Errorf("%s moved from %s to %s (trace %s)", tr.name, from.State, to.State, tr)
		}
		if to.Team != 0 {
			if team != 0 && to.Team != team {
				return errors.Errorf("%s changed team from %d to %d", tr.name, team, to.Team)
			}
			team = to.Team
		} else if team != 0 {
			return errors.Errorf("%s lost its team in %s", tr.name, to.State)
		}
		if (to.State == soccer.Playing || to.State == soccer.EndingGame) && team == 0 {
			return errors.Errorf("%s reached %s without a team", tr.name, to.State)
		}
	}
	return nil
}

func (tr *trace) String() string {
	parts := make([]string, 0, len(tr.slots))
	for _, s := range tr.slots {
		if s.Team == 0 {
			parts = append(parts, s.State.Code())
		} else {
			parts = append(parts, fmt.Sprintf("%s%d", s.State.Code(), s.Team))
		}
	}
	return strings.Join(parts, ">")
}
