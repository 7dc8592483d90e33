// Package cli implements the opsgrid-cli commands, which run the scheduler
// against request files without the API server.
package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ExitCodeInvalidInput is returned when a request fails boundary validation.
const ExitCodeInvalidInput = 2

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return 1
}

type options struct {
	file        string
	inputFormat string
	output      string
	pretty      bool
	verbose     bool
}

// NewRootCommand builds the command tree writing results to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "opsgrid-cli",
		Short:         "Run the OpsGrid scheduler against a request file",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", "-", "request file in YAML or JSON, - for stdin")
	flags.StringVar(&opts.inputFormat, "input-format", "", "force input format (json|yaml); detected from the file extension by default")
	flags.StringVarP(&opts.output, "output", "o", "json", "output format (json|yaml)")
	flags.BoolVar(&opts.pretty, "pretty", false, "indent JSON output")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(newScheduleCommand(opts), newValidateCommand(opts))
	return root
}

// Execute runs the CLI with args.
func Execute(args []string, out io.Writer) error {
	root := NewRootCommand(out)
	root.SetArgs(args)
	return root.Execute()
}

func (o *options) logger(cmd *cobra.Command) *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	l, err := cfg.Build()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "logger init failed: %v\n", err)
		return zap.NewNop()
	}
	return l
}
