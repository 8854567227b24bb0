package soccer

import (
	"github.com/pingcap/errors"
)

// NumTeams is the number of teams that play a match.
const NumTeams = 2

var (
	// ErrInvalidConfig is the cause of every configuration error.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrStalled is returned by Harness.Run when the context ends before every actor finished.
	ErrStalled = errors.New("simulation stalled before completion")
)

type Role int

const (
	RolePlayer Role = iota // field player
	RoleGoalie             // goalkeeper
)

// roles lists every field role, in the order their slots appear in a snapshot.
var roles = [...]Role{RolePlayer, RoleGoalie}

func (r Role) String() string {
	switch r {
	case RolePlayer:
		return "player"
	case RoleGoalie:
		return "goalie"
	default:
		return "unknown"
	}
}

// Config holds the population constants of a run.
type Config struct {
	PlayersPerTeam int `toml:"players-per-team" json:"playersPerTeam"`
	GoaliesPerTeam int `toml:"goalies-per-team" json:"goaliesPerTeam"`
	Players        int `toml:"players" json:"players"`
	Goalies        int `toml:"goalies" json:"goalies"`
}

func DefaultConfig() Config {
	return Config{
		PlayersPerTeam: 4,
		GoaliesPerTeam: 1,
		Players:        10,
		Goalies:        3,
	}
}

// Validate checks that the constants describe a population the world can be
// built for. It does not check feasibility: an undersized population is legal
// and deadlocks, see Feasible.
func (c Config) Validate() error {
	switch {
	case c.PlayersPerTeam < 1:
		return errors.Annotatef(ErrInvalidConfig, "players per team must be positive, got %d", c.PlayersPerTeam)
	case c.GoaliesPerTeam < 1:
		return errors.Annotatef(ErrInvalidConfig, "goalies per team must be positive, got %d", c.GoaliesPerTeam)
	case c.Players < 0:
		return errors.Annotatef(ErrInvalidConfig, "number of players must not be negative, got %d", c.Players)
	case c.Goalies < 0:
		return errors.Annotatef(ErrInvalidConfig, "number of goalies must not be negative, got %d", c.Goalies)
	}
	return nil
}

// Feasible reports whether the population is large enough to form every team.
func (c Config) Feasible() bool {
	return c.Players >= NumTeams*c.PlayersPerTeam && c.Goalies >= NumTeams*c.GoaliesPerTeam
}

// PerTeam returns how many actors of role r a team needs.
func (c Config) PerTeam(r Role) int {
	if r == RoleGoalie {
		return c.GoaliesPerTeam
	}
	return c.PlayersPerTeam
}

// Population returns the number of actors of role r.
func (c Config) Population(r Role) int {
	if r == RoleGoalie {
		return c.Goalies
	}
	return c.Players
}

// TeamSize is the number of actors in one team.
func (c Config) TeamSize() int {
	return c.PlayersPerTeam + c.GoaliesPerTeam
}

// Teammates is the number of actors that play the match.
func (c Config) Teammates() int {
	return NumTeams * c.TeamSize()
}

// Late is the number of actors of role r that arrive too late in a feasible run.
func (c Config) Late(r Role) int {
	return c.Population(r) - NumTeams*c.PerTeam(r)
}

func (c Config) checkID(r Role, id int) error {
	if id < 0 || id >= c.Population(r) {
		return errors.Annotatef(ErrInvalidConfig, "%s id %d out of range [0, %d)", r, id, c.Population(r))
	}
	return nil
}
