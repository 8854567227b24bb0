package soccer_test

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/theadell/soccergame/internal/checker"
	"github.com/theadell/soccergame/internal/soccer"
	"github.com/theadell/soccergame/internal/statelog"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type runResult struct {
	final soccer.Snapshot
	log   *statelog.Log
	err   error
}

func simulate(t *testing.T, cfg soccer.Config, timeout time.Duration, seed int64, opts ...soccer.HarnessOption) runResult {
	t.Helper()
	var buf bytes.Buffer
	w, err := statelog.NewWriter(&buf, cfg)
	require.NoError(t, err)
	world, err := soccer.NewWorld(cfg, w, soccer.WithPacer(soccer.NewPacer(clock.New(), seed)))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	final, runErr := soccer.NewHarness(world, opts...).Run(ctx)

	l, err := statelog.Read(&buf)
	require.NoError(t, err)
	return runResult{final: final, log: l, err: runErr}
}

func countStates(slots []soccer.Slot) map[soccer.State]int {
	out := map[soccer.State]int{}
	for _, s := range slots {
		out[s.State]++
	}
	return out
}

func TestCompletedRuns(t *testing.T) {
	testCases := []struct {
		name        string
		cfg         soccer.Config
		opts        []soccer.HarnessOption
		latePlayers int
		lateGoalies int
	}{
		{
			name:        "exact fit",
			cfg:         soccer.Config{PlayersPerTeam: 4, GoaliesPerTeam: 1, Players: 8, Goalies: 2},
			latePlayers: 0,
			lateGoalies: 0,
		},
		{
			name:        "surplus",
			cfg:         soccer.Config{PlayersPerTeam: 4, GoaliesPerTeam: 1, Players: 10, Goalies: 3},
			latePlayers: 2,
			lateGoalies: 1,
		},
		{
			name:        "referee started last",
			cfg:         soccer.Config{PlayersPerTeam: 4, GoaliesPerTeam: 1, Players: 8, Goalies: 2},
			opts:        []soccer.HarnessOption{soccer.WithRefereeLast()},
			latePlayers: 0,
			lateGoalies: 0,
		},
		{
			name:        "minimal",
			cfg:         soccer.Config{PlayersPerTeam: 1, GoaliesPerTeam: 1, Players: 2, Goalies: 2},
			latePlayers: 0,
			lateGoalies: 0,
		},
		{
			name:        "enough left for a third team",
			cfg:         soccer.Config{PlayersPerTeam: 2, GoaliesPerTeam: 1, Players: 9, Goalies: 5},
			latePlayers: 5,
			lateGoalies: 3,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := simulate(t, tc.cfg, 10*time.Second, 1, tc.opts...)
			require.NoError(t, res.err)
			require.NoError(t, checker.Verify(res.log))

			players := countStates(res.final.Players)
			goalies := countStates(res.final.Goalies)
			require.Equal(t, tc.latePlayers, players[soccer.Late])
			require.Equal(t, tc.lateGoalies, goalies[soccer.Late])
			require.Equal(t, soccer.NumTeams*tc.cfg.PlayersPerTeam, players[soccer.EndingGame])
			require.Equal(t, soccer.NumTeams*tc.cfg.GoaliesPerTeam, goalies[soccer.EndingGame])
			require.Equal(t, soccer.NumTeams+1, res.final.NextTeamID)
			require.Equal(t, soccer.RefereeEnding, res.final.Referee)
			require.Equal(t, res.final, res.log.Last())
		})
	}
}

func TestInfeasiblePopulationStalls(t *testing.T) {
	cfg := soccer.Config{PlayersPerTeam: 4, GoaliesPerTeam: 1, Players: 8, Goalies: 1}
	res := simulate(t, cfg, 200*time.Millisecond, 1)

	require.Error(t, res.err)
	require.Equal(t, soccer.ErrStalled, errors.Cause(res.err))
	require.False(t, checker.Started(res.log))
	require.Equal(t, 2, res.final.NextTeamID)
	require.Equal(t, soccer.RefereeWaiting, res.final.Referee)
}

// TestRepeatedRunsAgree runs the exact-fit population many times with
// different seeds. Interleavings differ; totals must not.
func TestRepeatedRunsAgree(t *testing.T) {
	cfg := soccer.Config{PlayersPerTeam: 4, GoaliesPerTeam: 1, Players: 8, Goalies: 2}
	const runs = 100

	for i := 0; i < runs; i++ {
		t.Run(fmt.Sprintf("run %d", i), func(t *testing.T) {
			res := simulate(t, cfg, 10*time.Second, int64(i))
			require.NoError(t, res.err)
			require.NoError(t, checker.Verify(res.log))
			require.Equal(t, 8, countStates(res.final.Players)[soccer.EndingGame])
			require.Equal(t, 2, countStates(res.final.Goalies)[soccer.EndingGame])
		})
	}
}

func TestSnapshotDuringRun(t *testing.T) {
	cfg := soccer.DefaultConfig()
	world, err := soccer.NewWorld(cfg, soccer.RecorderFunc(func(soccer.Snapshot) error { return nil }))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := soccer.NewHarness(world).Run(ctx)
		done <- err
	}()

	// concurrent readers must always see consistent counters
	for {
		s := world.Snapshot()
		require.Equal(t, cfg.Players-cfg.PlayersPerTeam*s.TeamsFormed(), s.PlayersFree)
		require.Equal(t, cfg.Goalies-cfg.GoaliesPerTeam*s.TeamsFormed(), s.GoaliesFree)
		select {
		case err := <-done:
			require.NoError(t, err)
			return
		default:
		}
	}
}

func TestRecorderFailureStallsRun(t *testing.T) {
	cfg := soccer.Config{PlayersPerTeam: 1, GoaliesPerTeam: 1, Players: 2, Goalies: 2}
	saves := 0
	rec := soccer.RecorderFunc(func(soccer.Snapshot) error {
		saves++
		if saves > 3 {
			return errors.New("disk full")
		}
		return nil
	})
	world, err := soccer.NewWorld(cfg, rec)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_, err = soccer.NewHarness(world).Run(ctx)
	require.Error(t, err)
	require.ErrorContains(t, err, "disk full")
}
