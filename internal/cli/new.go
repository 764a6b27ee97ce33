package cli

import (
	"github.com/spf13/cobra"
)

// NewOptions holds flags for the new command.
type NewOptions struct {
	*RootOptions
	Name string
}

// NewNewCommand creates the new command.
func NewNewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NewOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new game",
		Long: `Reset the game to the starting state and store it as a manual save.

Existing saves are kept; the new save becomes the latest one.

Example:
  matchstick new --name "Second run"`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "save name (default derived from the time)")

	return cmd
}

func runNew(opts *NewOptions, cmd *cobra.Command) error {
	s, err := opts.openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.close()

	s.game.NewGame()
	info, err := s.game.Save(cmd.Context(), opts.Name)
	if err != nil {
		return opts.formatter(cmd).Fail(ExitFailure, "failed to save new game", err)
	}
	return opts.formatter(cmd).Success(saveView(info))
}
