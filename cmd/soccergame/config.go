package main

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
	"github.com/spf13/pflag"
	"go.uber.org/zap/zapcore"

	"github.com/theadell/soccergame/internal/soccer"
)

const (
	envListen       = "SOCCERGAME_LISTEN"
	envSlackToken   = "SOCCERGAME_SLACK_TOKEN"
	envSlackChannel = "SOCCERGAME_SLACK_CHANNEL"

	defaultTimeout = 30 * time.Second
)

// settings is everything `run` needs. Values come from the defaults, then the
// TOML file, then explicitly set flags, then the environment.
type settings struct {
	Population  soccer.Config `toml:"population"`
	RefereeLast bool          `toml:"referee-last"`
	Timeout     duration      `toml:"timeout"`
	Seed        int64         `toml:"seed"`
	Listen      string        `toml:"listen"`
	LogLevel    string        `toml:"log-level"`

	SlackToken   string `toml:"-"`
	SlackChannel string `toml:"-"`
}

// duration reads "1m30s" style strings from TOML.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Annotatef(soccer.ErrInvalidConfig, "bad duration %q", text)
	}
	d.Duration = v
	return nil
}

func defaultSettings() settings {
	return settings{
		Population: soccer.DefaultConfig(),
		Timeout:    duration{defaultTimeout},
		Seed:       time.Now().UnixNano(),
		LogLevel:   "info",
	}
}

// loadFile overlays the TOML file at path. Unknown keys are rejected.
func (s *settings) loadFile(path string) error {
	md, err := toml.DecodeFile(path, s)
	if err != nil {
		return errors.Annotatef(soccer.ErrInvalidConfig, "config file %s: %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return errors.Annotatef(soccer.ErrInvalidConfig, "config file %s: unknown keys %v", path, undecoded)
	}
	return nil
}

// applyFlags copies only the flags the user set, so that unset flags never
// override the file.
func (s *settings) applyFlags(flags *pflag.FlagSet, f *runFlags) {
	if flags.Changed("players") {
		s.Population.Players = f.players
	}
	if flags.Changed("goalies") {
		s.Population.Goalies = f.goalies
	}
	if flags.Changed("players-per-team") {
		s.Population.PlayersPerTeam = f.playersPerTeam
	}
	if flags.Changed("goalies-per-team") {
		s.Population.GoaliesPerTeam = f.goaliesPerTeam
	}
	if flags.Changed("referee-last") {
		s.RefereeLast = f.refereeLast
	}
	if flags.Changed("timeout") {
		s.Timeout = duration{f.timeout}
	}
	if flags.Changed("seed") {
		s.Seed = f.seed
	}
	if flags.Changed("listen") {
		s.Listen = f.listen
	}
	if flags.Changed("log-level") {
		s.LogLevel = f.logLevel
	}
}

func (s *settings) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(envListen); ok && v != "" {
		s.Listen = v
	}
	if v, ok := lookup(envSlackToken); ok {
		s.SlackToken = v
	}
	if v, ok := lookup(envSlackChannel); ok {
		s.SlackChannel = v
	}
}

// level parses LogLevel.
func (s *settings) level() (zapcore.Level, error) {
	lvl, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return lvl, errors.Annotatef(soccer.ErrInvalidConfig, "log level %q", s.LogLevel)
	}
	return lvl, nil
}

func (s *settings) validate() error {
	if err := s.Population.Validate(); err != nil {
		return err
	}
	if _, err := s.level(); err != nil {
		return err
	}
	if s.Timeout.Duration < 0 {
		return errors.Annotatef(soccer.ErrInvalidConfig, "timeout must not be negative, got %s", s.Timeout)
	}
	return nil
}

// resolve builds the settings for one invocation.
func resolve(configFile string, flags *pflag.FlagSet, f *runFlags) (settings, error) {
	s := defaultSettings()
	if configFile != "" {
		if err := s.loadFile(configFile); err != nil {
			return s, err
		}
	}
	s.applyFlags(flags, f)
	s.applyEnv(os.LookupEnv)
	return s, s.validate()
}
