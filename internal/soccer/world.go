package soccer

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"go.uber.org/zap"

	"github.com/theadell/soccergame/internal/rendezvous"
)

// Recorder persists snapshots. The world calls Save with its mutex held, so
// records arrive one at a time and in the order the mutex is released.
type Recorder interface {
	Save(s Snapshot) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(s Snapshot) error

func (f RecorderFunc) Save(s Snapshot) error {
	return f(s)
}

// World is the state shared by every actor of a run. All reads and writes of
// the snapshot and the bookkeeping below happen under mu, and every visible
// change is saved to the recorder before mu is released.
type World struct {
	cfg    Config
	timing Timing
	pacer  *Pacer
	logger *zap.Logger

	mu       sync.Mutex
	snap     Snapshot
	recorder Recorder

	// invites holds, per role, the team of every invitation a leader posted
	// that no woken follower has taken yet.
	invites [len(roles)][]int
	// reserved counts, per role, invitations no entrant has claimed.
	reserved [len(roles)]int
	// registered counts teams whose followers have all acknowledged.
	registered int
	// playing counts teammates that reached Playing.
	playing int

	called       [len(roles)]*rendezvous.Semaphore
	registration [NumTeams]*rendezvous.Semaphore
	teamsReady   *rendezvous.Semaphore
	start        *rendezvous.Semaphore
	allPlaying   *rendezvous.Semaphore
	end          *rendezvous.Semaphore
}

type Option func(*World)

// WithTiming sets the sleep intervals. The default is DefaultTiming.
func WithTiming(t Timing) Option {
	return func(w *World) { w.timing = t }
}

// WithPacer sets the source of random sleeps.
func WithPacer(p *Pacer) Option {
	return func(w *World) { w.pacer = p }
}

func WithLogger(l *zap.Logger) Option {
	return func(w *World) { w.logger = l }
}

// NewWorld creates the shared state for cfg and saves the initial snapshot.
func NewWorld(cfg Config, rec Recorder, opts ...Option) (*World, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("soccer: nil recorder")
	}
	w := &World{
		cfg:      cfg,
		timing:   DefaultTiming(),
		logger:   zap.NewNop(),
		snap:     NewSnapshot(cfg),
		recorder: rec,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.pacer == nil {
		w.pacer = NewPacer(clock.New(), time.Now().UnixNano())
	}

	for _, r := range roles {
		w.called[r] = rendezvous.NewSemaphore(fmt.Sprintf("%s-called", r), cfg.Population(r))
	}
	for t := range w.registration {
		w.registration[t] = rendezvous.NewSemaphore(fmt.Sprintf("team-%d-registration", t+1), cfg.TeamSize()-1)
	}
	w.teamsReady = rendezvous.NewSemaphore("teams-ready", 1)
	w.start = rendezvous.NewSemaphore("start", cfg.Teammates())
	w.allPlaying = rendezvous.NewSemaphore("all-playing", 1)
	w.end = rendezvous.NewSemaphore("end", cfg.Teammates())

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.saveLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *World) Config() Config {
	return w.cfg
}

// Snapshot returns a copy of the current state.
func (w *World) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snap.Clone()
}

// saveLocked checks the counter invariants and records the snapshot.
func (w *World) saveLocked() error {
	w.assertLocked()
	if err := w.recorder.Save(w.snap); err != nil {
		return errors.Annotate(err, "save state")
	}
	return nil
}

// assertLocked panics when the counters contradict each other. None of these
// can fail unless the formation protocol itself is broken.
func (w *World) assertLocked() {
	s := &w.snap
	if s.NextTeamID < 1 || s.NextTeamID > NumTeams+1 {
		panic(fmt.Sprintf("soccer: next team id %d out of range", s.NextTeamID))
	}
	for _, r := range roles {
		want := w.cfg.Population(r) - w.cfg.PerTeam(r)*s.TeamsFormed()
		if got := s.Free(r); got != want || got < 0 {
			panic(fmt.Sprintf("soccer: %d free %ss after %d teams, want %d", got, r, s.TeamsFormed(), want))
		}
	}
}

// canFormLocked is the formation predicate.
func (w *World) canFormLocked() bool {
	s := &w.snap
	return s.NextTeamID <= NumTeams &&
		s.PlayersFree >= w.cfg.PlayersPerTeam &&
		s.GoaliesFree >= w.cfg.GoaliesPerTeam
}

// formTeamLocked makes the actor (r, id) the leader of the next team, reserves
// the rest of the team and posts one tagged invitation per missing teammate.
func (w *World) formTeamLocked(r Role, id int) (int, error) {
	s := &w.snap
	team := s.NextTeamID
	s.NextTeamID++
	for _, role := range roles {
		s.reserve(role, w.cfg.PerTeam(role))
	}
	s.Slots(r)[id] = Slot{State: FormingTeam, Team: team}
	if err := w.saveLocked(); err != nil {
		return 0, err
	}

	for _, role := range roles {
		n := w.cfg.PerTeam(role)
		if role == r {
			n--
		}
		w.inviteLocked(role, team, n)
	}
	return team, nil
}

func (w *World) inviteLocked(r Role, team, n int) {
	if n == 0 {
		return
	}
	for i := 0; i < n; i++ {
		w.invites[r] = append(w.invites[r], team)
	}
	w.reserved[r] += n
	w.called[r].Post(n)
}

// takeInviteLocked pops the team of the oldest pending invitation of role r.
func (w *World) takeInviteLocked(r Role) int {
	if len(w.invites[r]) == 0 {
		panic(fmt.Sprintf("soccer: %s woken without an invitation", r))
	}
	team := w.invites[r][0]
	w.invites[r] = w.invites[r][1:]
	return team
}

// teamRegisteredLocked is called by a leader once all its followers have
// acknowledged. The last one lets the referee start.
func (w *World) teamRegisteredLocked() {
	w.registered++
	if w.registered == NumTeams {
		w.teamsReady.Post(1)
	}
}
