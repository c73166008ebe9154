package project

import (
	_ "embed"
	"fmt"

	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/schema"
	"github.com/roach88/acorn/internal/validate"
)

//go:embed schema.cue
var schemaCUE string

var contentSchema = schema.MustCompile(schemaCUE)

// Policies returns the validation policy of every project record type,
// keyed by entry type.
func Policies() map[string]validate.Validator {
	return map[string]validate.Validator{
		TypeProjectMeta: validate.Policy[ProjectMeta]{
			EntryType:   TypeProjectMeta,
			Schema:      contentSchema,
			Definition:  "#ProjectMeta",
			Author:      func(m ProjectMeta) (revision.AgentID, bool) { return m.CreatorAddress, m.IsImported },
			AllowUpdate: true,
			Immutable:   []string{"creator_address", "created_at", "passphrase"},
		},
		TypeGoal: validate.Policy[Goal]{
			EntryType:   TypeGoal,
			Schema:      contentSchema,
			Definition:  "#Goal",
			Author:      func(g Goal) (revision.AgentID, bool) { return g.UserHash, g.IsImported },
			AllowUpdate: true,
			Immutable:   []string{"user_hash", "timestamp_created"},
			AllowDelete: true,
		},
		TypeGoalMember: validate.Policy[GoalMember]{
			EntryType:   TypeGoalMember,
			Schema:      contentSchema,
			Definition:  "#GoalMember",
			ForeignKeys: func(m GoalMember) []revision.Hash { return []revision.Hash{m.GoalAddress} },
			Author:      func(m GoalMember) (revision.AgentID, bool) { return m.UserEditHash, m.IsImported },
			AllowDelete: true,
		},
		TypeGoalComment: validate.Policy[GoalComment]{
			EntryType:   TypeGoalComment,
			Schema:      contentSchema,
			Definition:  "#GoalComment",
			ForeignKeys: func(c GoalComment) []revision.Hash { return []revision.Hash{c.GoalAddress} },
			Author:      func(c GoalComment) (revision.AgentID, bool) { return c.AgentAddress, c.IsImported },
			AllowUpdate: true,
			Immutable:   []string{"goal_address", "agent_address"},
			AllowDelete: true,
		},
		TypeMember: validate.Policy[Member]{
			EntryType:  TypeMember,
			Schema:     contentSchema,
			Definition: "#Member",
			Author:     func(m Member) (revision.AgentID, bool) { return m.Address, false },
		},
	}
}

// Register adds the project policies to reg.
func Register(reg *validate.Registry) error {
	for entryType, v := range Policies() {
		if err := reg.Register(entryType, v); err != nil {
			return fmt.Errorf("register project types: %w", err)
		}
	}
	return nil
}
