package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/acorn/internal/project"
)

// ProjectOptions holds flags for project create.
type ProjectOptions struct {
	*RootOptions
	Passphrase   string
	Image        string
	PriorityMode string
}

// NewProjectCommand creates the project command group.
func NewProjectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage project metadata",
	}
	cmd.AddCommand(newProjectCreateCommand(rootOpts))
	cmd.AddCommand(newProjectShowCommand(rootOpts))
	return cmd
}

func newProjectCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProjectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create the project metadata",
		Long: `Create the project's metadata record. A project has exactly one; creating
a second fails once the first is known locally.

Example:
  acorn project create "Community garden" --passphrase acorn-oak-14`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(opts.RootOptions, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			meta := project.ProjectMeta{
				CreatorAddress: n.ledger.AgentID(),
				CreatedAt:      time.Now().Unix(),
				Name:           args[0],
				Passphrase:     opts.Passphrase,
				PriorityMode:   project.PriorityMode(opts.PriorityMode),
			}
			if opts.Image != "" {
				meta.Image = &opts.Image
			}
			res, err := n.project.CreateProjectMeta(cmd.Context(), meta, nil)
			if err != nil {
				return commandError("failed to create project", err)
			}
			return opts.formatter(cmd).Result("created "+res.Element.HeaderHash.String(), res.Element)
		},
	}

	cmd.Flags().StringVar(&opts.Passphrase, "passphrase", "", "join passphrase")
	cmd.Flags().StringVar(&opts.Image, "image", "", "project image URL")
	cmd.Flags().StringVar(&opts.PriorityMode, "priority-mode", string(project.PriorityUniversal), "Universal|Vote")

	return cmd
}

func newProjectShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show",
		Short:         "Show the project metadata",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(rootOpts, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			el, err := n.project.FetchProjectMeta(cmd.Context())
			if err != nil {
				return commandError("failed to read project", err)
			}
			text := fmt.Sprintf("%s\t%s\t%s", el.HeaderHash, el.Entry.Name, el.Entry.PriorityMode)
			return rootOpts.formatter(cmd).Result(text, el)
		},
	}
}

// NewMemberCommand creates the member command group.
func NewMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "member",
		Short: "Manage project membership",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "join",
		Short:         "Join the project as the local agent",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(rootOpts, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			el, err := n.project.JoinProject(cmd.Context())
			if err != nil {
				return commandError("failed to join project", err)
			}
			return rootOpts.formatter(cmd).Result("joined as "+el.Entry.Address.String(), el)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "list",
		Short:         "List project members",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(rootOpts, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			members, err := n.project.FetchMembers(cmd.Context())
			if err != nil {
				return commandError("failed to list members", err)
			}
			lines := make([]string, 0, len(members))
			for _, m := range members {
				lines = append(lines, m.Entry.Address.String())
			}
			return rootOpts.formatter(cmd).Result(strings.Join(lines, "\n"), members)
		},
	})

	return cmd
}
