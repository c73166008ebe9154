package cli

import (
	"crypto/ed25519"

	"github.com/spf13/cobra"

	"github.com/roach88/acorn/internal/ledger"
	"github.com/roach88/acorn/internal/revision"
)

// KeygenResult is the output of keygen.
type KeygenResult struct {
	KeyFile string           `json:"key_file"`
	Agent   revision.AgentID `json:"agent"`
}

// NewKeygenCommand creates the keygen command.
func NewKeygenCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Create the agent key if missing and print the agent id",
		Long: `Create the local agent's ed25519 key file if it does not exist and print
the agent id derived from it. An existing key is never overwritten.

Example:
  acorn keygen --key ./alice.key`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			key, err := ledger.LoadOrCreateKey(cfg.KeyFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load key", err)
			}
			res := KeygenResult{
				KeyFile: cfg.KeyFile,
				Agent:   revision.NewAgentID(key.Public().(ed25519.PublicKey)),
			}
			return rootOpts.formatter(cmd).Result(res.Agent.String(), res)
		},
	}
}
