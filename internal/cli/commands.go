package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/opsgrid-api/internal/scheduler"
)

type validateReport struct {
	Valid          bool   `json:"valid" yaml:"valid"`
	Field          string `json:"field,omitempty" yaml:"field,omitempty"`
	Reason         string `json:"reason,omitempty" yaml:"reason,omitempty"`
	TotalRequired  int    `json:"totalRequired" yaml:"totalRequired"`
	TotalAvailable int    `json:"totalAvailable" yaml:"totalAvailable"`
	CapacityOK     bool   `json:"capacityOk" yaml:"capacityOk"`
	Message        string `json:"message,omitempty" yaml:"message,omitempty"`
}

func newScheduleCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Place every task occurrence and print the schedule with diagnostics",
		Long: "Reads a scheduling request, runs the scheduler and writes the result.\n" +
			"Infeasible requests are reported in diagnostics and still exit 0; invalid requests exit 2.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := opts.logger(cmd)
			defer log.Sync() //nolint:errcheck

			req, err := readRequest(opts.file, opts.inputFormat, cmd.InOrStdin())
			if err != nil {
				return err
			}
			start := time.Now()
			result, err := scheduler.Schedule(req)
			if err != nil {
				return invalidInput(err)
			}
			log.Info("schedule finished",
				zap.String("outcome", string(result.Outcome)),
				zap.Int("placed", result.Stats.TotalPlaced),
				zap.Int("required", result.Stats.TotalRequired),
				zap.Duration("elapsed", time.Since(start)),
			)
			return writeResult(cmd.OutOrStdout(), opts.output, opts.pretty, result)
		},
	}
}

func newValidateCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a request and print the capacity pre-check",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(opts.file, opts.inputFormat, cmd.InOrStdin())
			if err != nil {
				return err
			}
			report := validateReport{Valid: true}
			if err := scheduler.Validate(req); err != nil {
				var fieldErr *scheduler.InvalidInputError
				if errors.As(err, &fieldErr) {
					report.Valid = false
					report.Field = fieldErr.Field
					report.Reason = fieldErr.Reason
				}
				if writeErr := writeResult(cmd.OutOrStdout(), opts.output, opts.pretty, report); writeErr != nil {
					return writeErr
				}
				return invalidInput(err)
			}
			capacity := scheduler.PreCheck(req)
			report.TotalRequired = capacity.TotalRequired
			report.TotalAvailable = capacity.TotalAvailable
			report.CapacityOK = !capacity.Exceeded()
			if capacity.Exceeded() {
				report.Message = capacity.Message()
			}
			return writeResult(cmd.OutOrStdout(), opts.output, opts.pretty, report)
		},
	}
}

func invalidInput(err error) error {
	return &ExitError{Code: ExitCodeInvalidInput, Err: err}
}
