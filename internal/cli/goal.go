package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/acorn/internal/crud"
	"github.com/roach88/acorn/internal/project"
	"github.com/roach88/acorn/internal/revision"
)

// GoalOptions holds flags for goal create.
type GoalOptions struct {
	*RootOptions
	Hierarchy   string
	Status      string
	Tags        []string
	Description string
}

// NewGoalCommand creates the goal command group.
func NewGoalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal",
		Short: "Manage goals",
	}
	cmd.AddCommand(newGoalCreateCommand(rootOpts))
	cmd.AddCommand(newGoalListCommand(rootOpts))
	cmd.AddCommand(newGoalArchiveCommand(rootOpts))
	return cmd
}

func newGoalCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GoalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <content>",
		Short: "Create a goal",
		Long: `Create a goal authored by the local agent.

Example:
  acorn goal create "Plant the oaks" --hierarchy Leaf --tag spring`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(opts.RootOptions, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			tags := opts.Tags
			if tags == nil {
				tags = []string{}
			}
			g := project.Goal{
				Content:          args[0],
				UserHash:         n.ledger.AgentID(),
				TimestampCreated: time.Now().Unix(),
				Hierarchy:        project.Hierarchy(opts.Hierarchy),
				Status:           project.Status(opts.Status),
				Tags:             tags,
				Description:      opts.Description,
			}
			res, err := n.project.Goals.Create(cmd.Context(), g, nil)
			if err != nil {
				return commandError("failed to create goal", err)
			}
			return opts.formatter(cmd).Result("created "+res.Element.HeaderHash.String(), res.Element)
		},
	}

	cmd.Flags().StringVar(&opts.Hierarchy, "hierarchy", string(project.HierarchyNoHierarchy), "Root|Trunk|Branch|Leaf|NoHierarchy")
	cmd.Flags().StringVar(&opts.Status, "status", string(project.StatusUncertain), "Uncertain|Incomplete|InProcess|Complete|InReview")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "goal description")

	return cmd
}

func newGoalListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List current goals",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := openNode(rootOpts, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			goals, err := n.project.Goals.Fetch(cmd.Context(), crud.All())
			if err != nil {
				return commandError("failed to list goals", err)
			}
			lines := make([]string, 0, len(goals))
			for _, g := range goals {
				lines = append(lines, fmt.Sprintf("%s\t%s\t%s", g.HeaderHash, g.Entry.Status, g.Entry.Content))
			}
			return rootOpts.formatter(cmd).Result(strings.Join(lines, "\n"), goals)
		},
	}
}

func newGoalArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "archive <goal-header>",
		Short:         "Archive a goal with its members and comments",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := revision.ParseHash(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid goal header", err)
			}
			n, err := openNode(rootOpts, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			out, err := n.project.ArchiveGoal(cmd.Context(), goal, nil)
			if err != nil {
				return commandError("failed to archive goal", err)
			}
			text := fmt.Sprintf("archived goal %s (%d members, %d comments)", goal, len(out.GoalMembers), len(out.GoalComments))
			return rootOpts.formatter(cmd).Result(text, out)
		},
	}
}

// NewGoalMemberCommand creates the goal-member command group.
func NewGoalMemberCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goal-member",
		Short: "Assign agents to goals",
	}

	cmd.AddCommand(&cobra.Command{
		Use:           "add <goal-header> <agent>",
		Short:         "Assign an agent to a goal",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := revision.ParseHash(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid goal header", err)
			}
			agent := revision.AgentID(args[1])
			if _, err := agent.PublicKey(); err != nil {
				return WrapExitError(ExitCommandError, "invalid agent", err)
			}
			n, err := openNode(rootOpts, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			res, err := n.project.GoalMembers.Create(cmd.Context(), project.GoalMember{
				GoalAddress:   goal,
				AgentAddress:  agent,
				UserEditHash:  n.ledger.AgentID(),
				UnixTimestamp: time.Now().Unix(),
			}, nil)
			if err != nil {
				return commandError("failed to add goal member", err)
			}
			return rootOpts.formatter(cmd).Result("assigned "+res.Element.HeaderHash.String(), res.Element)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:           "archive <goal-header>",
		Short:         "Remove every agent assigned to a goal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			goal, err := revision.ParseHash(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid goal header", err)
			}
			n, err := openNode(rootOpts, cmd, nodeDeps{})
			if err != nil {
				return err
			}
			defer closeNode(n)

			archived, err := n.project.ArchiveGoalMembers(cmd.Context(), goal, nil)
			if err != nil {
				return commandError("failed to archive goal members", err)
			}
			return rootOpts.formatter(cmd).Result(fmt.Sprintf("archived %d goal members", len(archived)), archived)
		},
	})

	return cmd
}
