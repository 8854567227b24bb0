package main

import (
	"fmt"
	"os"

	"github.com/pingcap/errors"
	"github.com/spf13/cobra"

	"github.com/theadell/soccergame/internal/checker"
	"github.com/theadell/soccergame/internal/statelog"
)

var errViolations = errors.New("state log violates the match rules")

// checkOptions defines the arguments of the `check` command.
type checkOptions struct {
	logFile string
}

// run the `check` command.
func (o *checkOptions) run(cmd *cobra.Command) error {
	f, err := os.Open(o.logFile)
	if err != nil {
		return errors.Annotatef(err, "open log file %s", o.logFile)
	}
	defer f.Close()

	l, err := statelog.Read(f)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !checker.Started(l) {
		fmt.Fprintln(out, "the match never started: team formation deadlocked")
	}
	err = checker.Verify(l)
	if err == nil {
		fmt.Fprintf(out, "%s: %d records, all %d properties hold\n", o.logFile, len(l.Records), len(checker.Properties()))
		return nil
	}
	violations := checker.Violations(err)
	for _, v := range violations {
		fmt.Fprintln(out, v)
	}
	return errors.Annotatef(errViolations, "%d violations", len(violations))
}

// newCmdCheck creates the `check` command.
func newCmdCheck() *cobra.Command {
	o := &checkOptions{}

	return &cobra.Command{
		Use:   "check <log-file>",
		Short: "Verify a state log written by run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o.logFile = args[0]
			return o.run(cmd)
		},
	}
}
