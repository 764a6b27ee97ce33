package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/matchstick/internal/config"
)

// BalanceReport is the result of validating a balance file.
type BalanceReport struct {
	Path         string `json:"path"`
	AutoClickers int    `json:"auto_clickers"`
	Facilities   int    `json:"facilities"`
	Phases       int    `json:"phases"`
	Achievements int    `json:"achievements"`
}

func (r BalanceReport) String() string {
	return fmt.Sprintf("✓ %s: %d auto-clickers, %d facilities, %d phases, %d achievements",
		r.Path, r.AutoClickers, r.Facilities, r.Phases, r.Achievements)
}

// NewBalanceCommand creates the balance command group.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Inspect and validate balance files",
		Long: `Balance files define prices, costs, rates, phases and achievements.

Examples:
  matchstick balance show > balance.yaml
  matchstick balance validate balance.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "show",
		Short:         "Print the built-in balance document",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := cmd.OutOrStdout().Write(config.DefaultYAML())
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a balance file",
		Long: `Check a balance file against the schema and its cross references.
Without an argument the --balance file (or the built-in default) is checked.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rootOpts.Balance
			if len(args) == 1 {
				path = args[0]
			}
			return runBalanceValidate(rootOpts, path, cmd)
		},
	})

	return cmd
}

func runBalanceValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	b, err := config.LoadFile(path)
	if err != nil {
		var ve *config.ValidationError
		if errors.As(err, &ve) {
			f := opts.formatter(cmd)
			if outErr := f.Error(ErrCodeBalance, fmt.Sprintf("%d problem(s) in %s", len(ve.Problems), displayPath(path)), ve.Problems); outErr != nil {
				return outErr
			}
			if f.Format != "json" {
				for _, p := range ve.Problems {
					fmt.Fprintf(f.Writer, "  %s\n", p)
				}
			}
			return WrapExitError(ExitFailure, "invalid balance", err)
		}
		return WrapExitError(ExitCommandError, "failed to load balance", err)
	}

	return opts.formatter(cmd).Success(BalanceReport{
		Path:         displayPath(path),
		AutoClickers: len(b.Automation.AutoClickers),
		Facilities:   len(b.Automation.Facilities),
		Phases:       len(b.Phases),
		Achievements: len(b.Achievements),
	})
}

func displayPath(path string) string {
	if path == "" {
		return "built-in"
	}
	return path
}
