package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/acorn/internal/ledger"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	From   string
	Bundle string
	Export string
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replicate revisions from another ledger",
		Long: `Offer every path, revision and link of another ledger to the local one.

Each revision is validated locally. Revisions whose dependencies are not yet
present are held and retried as later ones arrive.

Example:
  acorn sync --from ./bob.db
  acorn sync --bundle ./bob.json
  acorn sync --export ./alice.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.From, "from", "", "path to another SQLite ledger")
	cmd.Flags().StringVar(&opts.Bundle, "bundle", "", "path to an exported JSON bundle")
	cmd.Flags().StringVar(&opts.Export, "export", "", "write the local ledger as a JSON bundle instead")
	cmd.MarkFlagsMutuallyExclusive("from", "bundle", "export")
	cmd.MarkFlagsOneRequired("from", "bundle", "export")

	return cmd
}

func runSync(opts *SyncOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	n, err := openNode(opts.RootOptions, cmd, nodeDeps{})
	if err != nil {
		return err
	}
	defer closeNode(n)

	if opts.Export != "" {
		b, err := n.ledger.Export(ctx)
		if err != nil {
			return commandError("failed to export ledger", err)
		}
		data, err := json.MarshalIndent(b, "", "  ")
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to encode bundle", err)
		}
		if err := os.WriteFile(opts.Export, data, 0o644); err != nil {
			return WrapExitError(ExitCommandError, "failed to write bundle", err)
		}
		text := fmt.Sprintf("exported %d records, %d links", len(b.Records), len(b.Links))
		return opts.formatter(cmd).Result(text, map[string]int{"records": len(b.Records), "links": len(b.Links)})
	}

	b, err := loadBundle(opts, cmd)
	if err != nil {
		return err
	}
	f := opts.formatter(cmd)
	f.VerboseLog("Offering %d paths, %d records, %d links", len(b.Paths), len(b.Records), len(b.Links))
	report, err := n.ledger.Ingest(ctx, b)
	if err != nil {
		return commandError("failed to ingest", err)
	}
	n.logger.Info("sync complete",
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"deferred", report.Deferred,
	)
	text := fmt.Sprintf("accepted %d, rejected %d, deferred %d, links %d (skipped %d), paths %d",
		report.Accepted, report.Rejected, report.Deferred, report.Links, report.Skipped, report.Paths)
	return f.Result(text, report)
}

// loadBundle reads the source named by --from or --bundle.
func loadBundle(opts *SyncOptions, cmd *cobra.Command) (ledger.Bundle, error) {
	if opts.Bundle != "" {
		data, err := os.ReadFile(opts.Bundle)
		if err != nil {
			return ledger.Bundle{}, WrapExitError(ExitCommandError, "failed to read bundle", err)
		}
		var b ledger.Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return ledger.Bundle{}, WrapExitError(ExitCommandError, "failed to parse bundle", err)
		}
		return b, nil
	}

	// sqlite would create a missing file
	if _, err := os.Stat(opts.From); err != nil {
		return ledger.Bundle{}, WrapExitError(ExitCommandError, "source ledger not found", err)
	}
	src, err := ledger.Open(opts.From, nil)
	if err != nil {
		return ledger.Bundle{}, WrapExitError(ExitCommandError, "failed to open source ledger", err)
	}
	defer src.Close()

	b, err := src.Export(cmd.Context())
	if err != nil {
		return ledger.Bundle{}, WrapExitError(ExitCommandError, "failed to export source ledger", err)
	}
	return b, nil
}
