package cli

import (
	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the state of the latest save",
		Long: `Load the latest save and print a summary: resources, market price and
condition, automation and achievements. Nothing is written.

Example:
  matchstick status
  matchstick status --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := rootOpts.openSession(cmd, sessionOptions{})
			if err != nil {
				return err
			}
			defer s.close()
			return rootOpts.formatter(cmd).Success(statusView(s.game.Summary()))
		},
	}
}
