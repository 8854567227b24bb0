package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"github.com/theadell/soccergame/internal/soccer"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "soccergame",
		Short:        "Simulate players, goalies and a referee meeting for a match",
		SilenceUsage: true,
	}
	cmd.AddCommand(newCmdRun(newRunOptions()), newCmdCheck())
	return cmd
}

// exitCode is 0 on success, 2 for a run that was cut short and 1 otherwise.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Cause(err) == soccer.ErrStalled:
		return 2
	default:
		return 1
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err))
}
