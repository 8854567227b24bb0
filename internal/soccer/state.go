package soccer

import (
	"slices"

	"github.com/pingcap/errors"
)

// State is the life-cycle state of a player or goalie.
type State int

const (
	StateNone   State = iota // not arrived yet
	Arriving                 // walking to the stadium
	Late                     // both teams were complete on arrival
	FormingTeam              // leader reserving its teammates
	WaitingTeam              // follower parked, or registered with a team
	Playing                  // match in progress
	EndingGame               // match over
)

var stateCodes = map[State]string{
	StateNone:   "----",
	Arriving:    "ARRV",
	Late:        "LATE",
	FormingTeam: "FORM",
	WaitingTeam: "WAIT",
	Playing:     "PLAY",
	EndingGame:  "END_",
}

// Code returns the four character symbol used in the state log.
func (s State) Code() string {
	if c, ok := stateCodes[s]; ok {
		return c
	}
	return "????"
}

func (s State) String() string {
	return s.Code()
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.Code()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	v, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseState is the inverse of State.Code.
func ParseState(code string) (State, error) {
	for s, c := range stateCodes {
		if c == code {
			return s, nil
		}
	}
	return StateNone, errors.Errorf("unknown field actor state %q", code)
}

// RefereeState is the life-cycle state of the referee.
type RefereeState int

const (
	RefereeNone       RefereeState = iota // not arrived yet
	RefereeArriving                       // walking to the stadium
	RefereeWaiting                        // waiting for both teams
	RefereeStarting                       // whistling the start
	RefereeRefereeing                     // match in progress
	RefereeEnding                         // whistling the end
)

var refereeCodes = map[RefereeState]string{
	RefereeNone:       "----",
	RefereeArriving:   "ARRV",
	RefereeWaiting:    "WTEA",
	RefereeStarting:   "STRT",
	RefereeRefereeing: "REFE",
	RefereeEnding:     "END_",
}

func (s RefereeState) Code() string {
	if c, ok := refereeCodes[s]; ok {
		return c
	}
	return "????"
}

func (s RefereeState) String() string {
	return s.Code()
}

func (s RefereeState) MarshalText() ([]byte, error) {
	return []byte(s.Code()), nil
}

func (s *RefereeState) UnmarshalText(text []byte) error {
	v, err := ParseRefereeState(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseRefereeState(code string) (RefereeState, error) {
	for s, c := range refereeCodes {
		if c == code {
			return s, nil
		}
	}
	return RefereeNone, errors.Errorf("unknown referee state %q", code)
}

// Slot is what the snapshot shows for one player or goalie. Team 0 means the
// actor belongs to no team (yet).
type Slot struct {
	State State `json:"state"`
	Team  int   `json:"team"`
}

// Snapshot is a copy of the shared world state.
type Snapshot struct {
	Referee     RefereeState `json:"referee"`
	Players     []Slot       `json:"players"`
	Goalies     []Slot       `json:"goalies"`
	PlayersFree int          `json:"playersFree"`
	GoaliesFree int          `json:"goaliesFree"`
	NextTeamID  int          `json:"nextTeamId"`
}

// NewSnapshot returns the state of a world before any actor arrived.
func NewSnapshot(cfg Config) Snapshot {
	return Snapshot{
		Referee:     RefereeNone,
		Players:     make([]Slot, cfg.Players),
		Goalies:     make([]Slot, cfg.Goalies),
		PlayersFree: cfg.Players,
		GoaliesFree: cfg.Goalies,
		NextTeamID:  1,
	}
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	s.Players = slices.Clone(s.Players)
	s.Goalies = slices.Clone(s.Goalies)
	return s
}

// Slots returns the slot slice of role r. It aliases the snapshot.
func (s *Snapshot) Slots(r Role) []Slot {
	if r == RoleGoalie {
		return s.Goalies
	}
	return s.Players
}

// Free returns the free counter of role r.
func (s *Snapshot) Free(r Role) int {
	if r == RoleGoalie {
		return s.GoaliesFree
	}
	return s.PlayersFree
}

func (s *Snapshot) reserve(r Role, n int) {
	if r == RoleGoalie {
		s.GoaliesFree -= n
	} else {
		s.PlayersFree -= n
	}
}

// TeamsFormed is the number of teams a leader has reserved.
func (s *Snapshot) TeamsFormed() int {
	return s.NextTeamID - 1
}
