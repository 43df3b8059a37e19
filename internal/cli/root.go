// Package cli implements the acs-loadtest command line.
package cli

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var version = "0.1.0"

// errTestFailed signals a completed run that missed a threshold. The
// summary already says why, so nothing more is printed.
var errTestFailed = errors.New("load test failed")

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	var logLevel string

	cmd := &cobra.Command{
		Use:     "acs-loadtest",
		Short:   "Load test the ACS fleet manager API",
		Version: version,
		Long: `acs-loadtest drives simulated users against the ACS fleet manager.

The list-centrals user repeatedly lists the caller's centrals, authenticating
with the static bearer token in STATIC_TOKEN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logrus.ParseLevel(logLevel)
			if err != nil {
				return errors.Wrap(err, "invalid --log-level")
			}
			logrus.SetLevel(level)
			logrus.SetOutput(cmd.ErrOrStderr())
			logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newScenariosCmd())

	return cmd
}

// Execute runs the command line and returns the error that ended it.
func Execute() error {
	cmd := NewRootCmd()
	err := cmd.Execute()
	if err != nil && !errors.Is(err, errTestFailed) {
		cmd.PrintErrln("Error:", err)
	}
	return err
}
