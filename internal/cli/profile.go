package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/acorn/internal/profiles"
)

// ProfileOptions holds flags for profile set.
type ProfileOptions struct {
	*RootOptions
	FirstName string
	LastName  string
	Handle    string
	Status    string
	AvatarURL string
}

// NewProfileCommand creates the profile command group.
func NewProfileCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage agent profiles",
	}
	cmd.AddCommand(newProfileSetCommand(rootOpts))
	cmd.AddCommand(newProfileListCommand(rootOpts))
	return cmd
}

func newProfileSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProfileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Create or update the local agent's profile",
		Long: `Create the local agent's profile, or update it if one exists.

Example:
  acorn profile set --handle ada --first Ada --last Oak --status Online`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(opts.RootOptions, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			p := profiles.Profile{
				FirstName: opts.FirstName,
				LastName:  opts.LastName,
				Handle:    opts.Handle,
				Status:    profiles.Status(opts.Status),
				AvatarURL: opts.AvatarURL,
				Address:   n.ledger.AgentID(),
			}

			ctx := cmd.Context()
			current, ok, err := n.profiles.Whoami(ctx)
			if err != nil {
				return commandError("failed to read profile", err)
			}
			if !ok {
				res, err := n.profiles.CreateWhoami(ctx, p, nil)
				if err != nil {
					return commandError("failed to create profile", err)
				}
				return opts.formatter(cmd).Result("created "+res.Element.HeaderHash.String(), res.Element)
			}
			res, err := n.profiles.UpdateWhoami(ctx, current.HeaderHash, p, nil)
			if err != nil {
				return commandError("failed to update profile", err)
			}
			return opts.formatter(cmd).Result("updated "+res.Element.HeaderHash.String(), res.Element)
		},
	}

	cmd.Flags().StringVar(&opts.FirstName, "first", "", "first name")
	cmd.Flags().StringVar(&opts.LastName, "last", "", "last name")
	cmd.Flags().StringVar(&opts.Handle, "handle", "", "handle (required)")
	cmd.Flags().StringVar(&opts.Status, "status", string(profiles.StatusOnline), "Online|Away|Offline")
	cmd.Flags().StringVar(&opts.AvatarURL, "avatar", "", "avatar URL")
	_ = cmd.MarkFlagRequired("handle")

	return cmd
}

func newProfileListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List known profiles",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(rootOpts, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			agents, err := n.profiles.FetchAgents(cmd.Context())
			if err != nil {
				return commandError("failed to list profiles", err)
			}
			var b strings.Builder
			for _, a := range agents {
				fmt.Fprintf(&b, "%s\t%s\t%s\n", a.Entry.Address, a.Entry.Handle, a.Entry.Status)
			}
			return rootOpts.formatter(cmd).Result(strings.TrimSuffix(b.String(), "\n"), agents)
		},
	}
}
