package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/matchstick/internal/persistence"
)

// TransferResult reports an export or import.
type TransferResult struct {
	Path  string `json:"path"`
	Saves int    `json:"saves"`
}

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Compress bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export <file|->",
		Short: "Export every save to a checksummed bundle",
		Long: `Write every save and metadata entry to a bundle file.

Use "-" to write to stdout. With --compress the bundle is zstd-compressed;
import detects compression automatically.

Examples:
  matchstick export backup.json
  matchstick export backup.json.zst --compress`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Compress, "compress", false, "zstd-compress the bundle")

	return cmd
}

func runExport(opts *ExportOptions, path string, cmd *cobra.Command) error {
	saves, err := opts.openStore(opts.newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer saves.Close()

	b, err := saves.Export(cmd.Context())
	if err != nil {
		return opts.formatter(cmd).Fail(ExitFailure, "failed to export saves", err)
	}

	if path == "-" {
		return persistence.WriteBundle(cmd.OutOrStdout(), b, opts.Compress)
	}
	f, err := os.Create(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create export file", err)
	}
	if err := persistence.WriteBundle(f, b, opts.Compress); err != nil {
		f.Close()
		return WrapExitError(ExitFailure, "failed to write bundle", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitFailure, "failed to write bundle", err)
	}
	return opts.formatter(cmd).Success(TransferResult{Path: path, Saves: len(b.Saves)})
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Replace every save with the contents of a bundle",
		Long: `Read a bundle written by export and replace the save database contents.

Every checksum is verified before anything is written. A bundle that fails
verification leaves the existing saves untouched.

Example:
  matchstick import backup.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], cmd)
		},
	}
}

func runImport(opts *RootOptions, path string, cmd *cobra.Command) error {
	var r io.Reader = cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("bundle not found: %s", path), err)
		}
		defer f.Close()
		r = f
	}

	b, err := persistence.ReadBundle(r)
	if err != nil {
		return opts.formatter(cmd).Fail(ExitFailure, "failed to read bundle", err)
	}

	saves, err := opts.openStore(opts.newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer saves.Close()

	n, err := saves.Import(cmd.Context(), b)
	if err != nil {
		return opts.formatter(cmd).Fail(ExitFailure, "failed to import bundle", err)
	}
	return opts.formatter(cmd).Success(TransferResult{Path: path, Saves: n})
}
