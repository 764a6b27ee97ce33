package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/matchstick/internal/persistence"
	"github.com/roach88/matchstick/internal/state"
)

// saveView renders one save's metadata.
type saveView persistence.Info

// WriteText implements TextWriter.
func (v saveView) WriteText(w io.Writer) {
	kind := "manual"
	if v.IsAutoSave {
		kind = "auto"
	}
	fmt.Fprintf(w, "%s  %-6s  %s  %s\n", v.ID, kind, v.CreatedAt.UTC().Format(time.DateTime), v.Name)
}

// saveList renders a save listing, newest first.
type saveList []persistence.Info

// WriteText implements TextWriter.
func (l saveList) WriteText(w io.Writer) {
	if len(l) == 0 {
		fmt.Fprintln(w, "No saves.")
		return
	}
	for _, info := range l {
		saveView(info).WriteText(w)
	}
}

// SaveDetail is a stored save with its decoded state.
type SaveDetail struct {
	Info  persistence.Info `json:"info"`
	State state.GameState  `json:"state"`
}

// WriteText implements TextWriter.
func (d SaveDetail) WriteText(w io.Writer) {
	saveView(d.Info).WriteText(w)
	fmt.Fprintf(w, "  checksum:    %s\n", d.Info.Checksum)
	fmt.Fprintf(w, "  phase:       %d\n", d.State.Phase)
	fmt.Fprintf(w, "  matchsticks: %s\n", d.State.Resources.Matchsticks)
	fmt.Fprintf(w, "  money:       $%.2f\n", d.State.Resources.Money)
	fmt.Fprintf(w, "  unlocked:    %d achievements\n", len(d.State.Achievements.Unlocked))
}

// NewSavesCommand creates the saves command group.
func NewSavesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saves",
		Short: "Inspect and manage stored saves",
		Long: `List, show and delete saves in the save database.

Examples:
  matchstick saves list
  matchstick saves show save-3f2a...
  matchstick saves delete save-3f2a...`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List saves, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			saves, err := rootOpts.openStore(rootOpts.newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer saves.Close()

			list, err := saves.List(cmd.Context())
			if err != nil {
				return rootOpts.formatter(cmd).Fail(ExitFailure, "failed to list saves", err)
			}
			if list == nil {
				list = []persistence.Info{}
			}
			return rootOpts.formatter(cmd).Success(saveList(list))
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "show <id>",
		Short:         "Verify and show one save",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			saves, err := rootOpts.openStore(rootOpts.newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer saves.Close()

			snap, err := saves.Load(cmd.Context(), args[0])
			if err != nil {
				return rootOpts.formatter(cmd).Fail(ExitFailure, "failed to load save", err)
			}
			return rootOpts.formatter(cmd).Success(SaveDetail{Info: snap.Info, State: snap.State})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "delete <id>",
		Short:         "Delete one save",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			saves, err := rootOpts.openStore(rootOpts.newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer saves.Close()

			if err := saves.Delete(cmd.Context(), args[0]); err != nil {
				return rootOpts.formatter(cmd).Fail(ExitFailure, "failed to delete save", err)
			}
			return rootOpts.formatter(cmd).Success(map[string]string{"deleted": args[0]})
		},
	})

	return cmd
}
