package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/matchstick/internal/harness"
)

// InvokeOptions holds flags for the invoke command.
type InvokeOptions struct {
	*RootOptions
	Args string // JSON object of action arguments
}

// InvokeResult is the outcome of one invoked action.
type InvokeResult struct {
	Action        string         `json:"action"`
	Result        map[string]any `json:"result,omitempty"`
	Notifications []string       `json:"notifications,omitempty"`
	SaveID        string         `json:"save_id,omitempty"`
}

// WriteText implements TextWriter.
func (r InvokeResult) WriteText(w io.Writer) {
	fmt.Fprintf(w, "✓ %s\n", r.Action)
	keys := make([]string, 0, len(r.Result))
	for k := range r.Result {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %s: %v\n", k, r.Result[k])
	}
	for _, n := range r.Notifications {
		fmt.Fprintf(w, "  ! %s\n", n)
	}
	if r.SaveID != "" {
		fmt.Fprintf(w, "  saved as %s\n", r.SaveID)
	}
}

// NewInvokeCommand creates the invoke command.
func NewInvokeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InvokeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "invoke <action>",
		Short: "Apply one player action to the latest save",
		Long: `Load the latest save, apply one action and autosave the result.

Actions:
  produce            {"clicks": N}
  sell               {"amount": N}
  buy_auto_clicker   {"id": "basic"}
  buy_facility       {"id": "workshop"}
  set_auto_sell      {"enabled": true, "threshold": 100, ...}
  tick               {"name": "automation.production"}
  check_achievements
  save               {"name": "..."}
  load_latest
  new_game

A rejected action exits with status 1 and leaves the saves untouched.

Examples:
  matchstick invoke produce --args '{"clicks": 10}'
  matchstick invoke sell --args '{"amount": 25}' --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInvoke(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "{}", "action arguments as a JSON object")

	return cmd
}

func runInvoke(opts *InvokeOptions, action string, cmd *cobra.Command) error {
	var params map[string]any
	if err := json.Unmarshal([]byte(opts.Args), &params); err != nil {
		return WrapExitError(ExitCommandError, "invalid --args JSON", err)
	}

	s, err := opts.openSession(cmd, sessionOptions{})
	if err != nil {
		return err
	}
	defer s.close()

	skip := len(s.recorded.All())
	out, err := harness.Perform(cmd.Context(), s.game, action, params)
	if harness.IsArgError(err) {
		return WrapExitError(ExitCommandError, "invalid invocation", err)
	}
	if err != nil {
		return opts.formatter(cmd).Fail(ExitFailure, action+" rejected", err)
	}

	res := InvokeResult{
		Action:        action,
		Result:        out,
		Notifications: s.recorded.Titles()[skip:],
	}
	if persistsAfter(action) {
		info, err := s.persist(cmd.Context())
		if err != nil {
			return opts.formatter(cmd).Fail(ExitFailure, "failed to save", err)
		}
		res.SaveID = info.ID
	}
	return opts.formatter(cmd).Success(res)
}

// persistsAfter reports whether a successful action leaves unsaved changes.
func persistsAfter(action string) bool {
	switch action {
	case harness.ActionSave, harness.ActionLoadLatest, harness.ActionWait:
		return false
	}
	return true
}
