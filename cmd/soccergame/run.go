package main

import (
	"context"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pingcap/errors"
	"github.com/slack-go/slack"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/theadell/soccergame/internal/soccer"
	"github.com/theadell/soccergame/internal/statelog"
)

// runFlags holds the raw flag values of `run`.
type runFlags struct {
	configFile     string
	players        int
	goalies        int
	playersPerTeam int
	goaliesPerTeam int
	refereeLast    bool
	timeout        time.Duration
	seed           int64
	listen         string
	logLevel       string
}

// runOptions defines flags for the `run` command.
type runOptions struct {
	flags runFlags

	logFile   string
	errorFile string

	// newSlackClient is replaced in tests.
	newSlackClient func(token string) SlackClient
}

func newRunOptions() *runOptions {
	return &runOptions{
		newSlackClient: func(token string) SlackClient { return slack.New(token) },
	}
}

// addFlags binds the run flags to cmd.
func (o *runOptions) addFlags(cmd *cobra.Command) {
	if o == nil {
		return
	}
	def := defaultSettings()
	f := cmd.Flags()
	f.StringVar(&o.flags.configFile, "config", "", "path of a TOML config file")
	f.IntVar(&o.flags.players, "players", def.Population.Players, "number of players")
	f.IntVar(&o.flags.goalies, "goalies", def.Population.Goalies, "number of goalies")
	f.IntVar(&o.flags.playersPerTeam, "players-per-team", def.Population.PlayersPerTeam, "players in each team")
	f.IntVar(&o.flags.goaliesPerTeam, "goalies-per-team", def.Population.GoaliesPerTeam, "goalies in each team")
	f.BoolVar(&o.flags.refereeLast, "referee-last", false, "start the referee after every player and goalie")
	f.DurationVar(&o.flags.timeout, "timeout", def.Timeout.Duration, "give up on a run that has not finished after this long (0 waits forever)")
	f.Int64Var(&o.flags.seed, "seed", 0, "seed for the arrival and match durations (default: time based)")
	f.StringVar(&o.flags.listen, "listen", "", "serve the live state on this address, e.g. :4000")
	f.StringVar(&o.flags.logLevel, "log-level", def.LogLevel, "diagnostic log level")
}

// run the `run` command.
func (o *runOptions) run(ctx context.Context, cmd *cobra.Command) (err error) {
	logger, level, err := initLogger(o.errorFile)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() {
		if err != nil {
			logger.Error("run failed", zap.Error(err))
		}
	}()

	s, err := resolve(o.flags.configFile, cmd.Flags(), &o.flags)
	if err != nil {
		return err
	}
	lvl, _ := s.level()
	level.SetLevel(lvl)

	out, err := os.Create(o.logFile)
	if err != nil {
		return errors.Annotatef(err, "create log file %s", o.logFile)
	}
	defer func() {
		err = multierr.Append(err, errors.Annotate(out.Close(), "close log file"))
	}()

	w, err := statelog.NewWriter(out, s.Population)
	if err != nil {
		return err
	}
	tracker := newLeaderTracker(w)
	world, err := soccer.NewWorld(s.Population, tracker,
		soccer.WithLogger(logger),
		soccer.WithPacer(soccer.NewPacer(clock.New(), s.Seed)))
	if err != nil {
		return err
	}
	logger.Info("simulation starting",
		zap.Any("population", s.Population),
		zap.Int64("seed", s.Seed),
		zap.Duration("timeout", s.Timeout.Duration))

	if s.Listen != "" {
		srv, serr := startStatusServer(s.Listen, world, logger)
		if serr != nil {
			return serr
		}
		defer func() {
			err = multierr.Append(err, srv.Shutdown())
		}()
	}

	if s.Timeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout.Duration)
		defer cancel()
	}

	var opts []soccer.HarnessOption
	if s.RefereeLast {
		opts = append(opts, soccer.WithRefereeLast())
	}
	final, err := soccer.NewHarness(world, opts...).Run(ctx)
	if err != nil {
		return err
	}

	if s.SlackToken != "" && s.SlackChannel != "" {
		// the run is complete, a failed report does not change that
		_ = newAnnouncer(o.newSlackClient(s.SlackToken), s.SlackChannel, logger).
			Announce(context.WithoutCancel(ctx), final, tracker.Leaders())
	}
	return nil
}

// newCmdRun creates the `run` command.
func newCmdRun(o *runOptions) *cobra.Command {
	command := &cobra.Command{
		Use:   "run <log-file> <error-file>",
		Short: "Play one match and write its state log",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.logFile, o.errorFile = args[0], args[1]
			return o.run(cmd.Context(), cmd)
		},
	}

	o.addFlags(command)

	return command
}
