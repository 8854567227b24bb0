package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"

	pkgerrors "github.com/pingcap/errors"
	"github.com/spf13/cobra"
	gomock "go.uber.org/mock/gomock"

	"github.com/theadell/soccergame/internal/soccer"
)

func TestExitCode(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		code int
	}{
		{name: "success", err: nil, code: 0},
		{name: "stalled", err: pkgerrors.Annotate(soccer.ErrStalled, "run"), code: 2},
		{name: "invalid config", err: pkgerrors.Annotate(soccer.ErrInvalidConfig, "flags"), code: 1},
		{name: "io", err: errors.New("disk full"), code: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := exitCode(tc.err); got != tc.code {
				t.Errorf("Expected exit code %d, got %d", tc.code, got)
			}
		})
	}
}

func execute(t *testing.T, root *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunThenCheck(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "state.log")
	errFile := filepath.Join(dir, "error.log")

	_, err := execute(t, newRootCmd(), "run", logFile, errFile,
		"--players", "5", "--goalies", "3", "--players-per-team", "2", "--goalies-per-team", "1",
		"--seed", "3", "--timeout", "10s", "--listen", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Expected the run to complete, got %v", err)
	}

	diag, err := os.ReadFile(errFile)
	if err != nil {
		t.Fatalf("Failed to read error file: %v", err)
	}
	if !strings.Contains(string(diag), "simulation finished") {
		t.Errorf("Expected the error file to hold the diagnostics, got %s", diag)
	}

	out, err := execute(t, newRootCmd(), "check", logFile)
	if err != nil {
		t.Fatalf("Expected the log to verify, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "properties hold") {
		t.Errorf("Unexpected check output %q", out)
	}
}

func TestRunStallsOnInfeasiblePopulation(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "state.log")

	_, err := execute(t, newRootCmd(), "run", logFile, filepath.Join(dir, "error.log"),
		"--players", "8", "--goalies", "1", "--timeout", "200ms")
	if code := exitCode(err); code != 2 {
		t.Fatalf("Expected exit code 2, got %d (%v)", code, err)
	}

	out, err := execute(t, newRootCmd(), "check", logFile)
	if err == nil {
		t.Fatal("Expected a stalled log to fail the check")
	}
	if !strings.Contains(out, "never started") {
		t.Errorf("Expected the deadlock to be reported, got %q", out)
	}
}

func TestRunRejectsBadArguments(t *testing.T) {
	dir := t.TempDir()
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to occupy a port: %v", err)
	}
	defer busy.Close()

	testCases := []struct {
		name    string
		args    []string
		errFile string
		logged  string
	}{
		{name: "missing error file", args: []string{"run", filepath.Join(dir, "state.log")}},
		{name: "non numeric players", args: []string{"run", "a", "b", "--players", "many"}},
		{name: "zero players per team", errFile: "ppt.log", logged: "players per team must be positive",
			args: []string{"--players-per-team", "0"}},
		{name: "negative timeout", errFile: "timeout.log", logged: "timeout must not be negative",
			args: []string{"--timeout", "-1s"}},
		{name: "unknown log level", errFile: "level.log", logged: "log level",
			args: []string{"--log-level", "loud"}},
		{name: "missing config file", errFile: "config.log", logged: "config file",
			args: []string{"--config", filepath.Join(dir, "nope.toml")}},
		{name: "log file in missing directory", errFile: "dir.log", logged: "create log file",
			args: []string{}},
		{name: "status address in use", errFile: "listen.log", logged: "listen on",
			args: []string{"--listen", busy.Addr().String()}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			args := tc.args
			if tc.errFile != "" {
				logFile := filepath.Join(dir, "s.log")
				if tc.name == "log file in missing directory" {
					logFile = filepath.Join(dir, "nope", "s.log")
				}
				args = append([]string{"run", logFile, filepath.Join(dir, tc.errFile)}, tc.args...)
			}
			if _, err := execute(t, newRootCmd(), args...); exitCode(err) != 1 {
				t.Errorf("Expected exit code 1, got %d (%v)", exitCode(err), err)
			}
			if tc.errFile == "" {
				return
			}
			diag, err := os.ReadFile(filepath.Join(dir, tc.errFile))
			if err != nil {
				t.Fatalf("Expected the error file to exist, got %v", err)
			}
			if !strings.Contains(string(diag), tc.logged) {
				t.Errorf("Expected %q in the error file, got %s", tc.logged, diag)
			}
		})
	}
}

func TestRunPostsMatchReport(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSlackClient := NewMockSlackClient(ctrl)
	mockSlackClient.EXPECT().
		PostMessageContext(gomock.Any(), "C-match", gomock.Any()).
		Return("C-match", "ts", nil).
		Times(1)

	t.Setenv(envSlackToken, "xoxb-test")
	t.Setenv(envSlackChannel, "C-match")

	o := newRunOptions()
	o.newSlackClient = func(token string) SlackClient {
		if token != "xoxb-test" {
			t.Errorf("Expected the token from the environment, got %q", token)
		}
		return mockSlackClient
	}
	root := &cobra.Command{Use: "soccergame", SilenceUsage: true}
	root.AddCommand(newCmdRun(o))

	dir := t.TempDir()
	_, err := execute(t, root, "run", filepath.Join(dir, "state.log"), filepath.Join(dir, "error.log"),
		"--players", "2", "--goalies", "2", "--players-per-team", "1", "--goalies-per-team", "1")
	if err != nil {
		t.Fatalf("Expected the run to complete, got %v", err)
	}
}

func TestFailedReportKeepsSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSlackClient := NewMockSlackClient(ctrl)
	mockSlackClient.EXPECT().
		PostMessageContext(gomock.Any(), gomock.Any(), gomock.Any()).
		Return("", "", errors.New("invalid_auth")).
		Times(1)

	t.Setenv(envSlackToken, "xoxb-revoked")
	t.Setenv(envSlackChannel, "C-match")

	o := newRunOptions()
	o.newSlackClient = func(string) SlackClient { return mockSlackClient }
	root := &cobra.Command{Use: "soccergame", SilenceUsage: true}
	root.AddCommand(newCmdRun(o))

	dir := t.TempDir()
	_, err := execute(t, root, "run", filepath.Join(dir, "state.log"), filepath.Join(dir, "error.log"),
		"--players", "2", "--goalies", "2", "--players-per-team", "1", "--goalies-per-team", "1")
	if exitCode(err) != 0 {
		t.Errorf("Expected a failed report not to fail the run, got %v", err)
	}
}
