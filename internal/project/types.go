// Package project defines the record types of a shared project: its
// metadata, goals, goal assignments, comments and members.
package project

import (
	"github.com/roach88/acorn/internal/anchor"
	"github.com/roach88/acorn/internal/crud"
	"github.com/roach88/acorn/internal/revision"
)

// Entry type names.
const (
	TypeProjectMeta = "project_meta"
	TypeGoal        = "goal"
	TypeGoalMember  = "goal_member"
	TypeGoalComment = "goal_comment"
	TypeMember      = "member"
)

// PriorityMode controls how goal priority is decided.
type PriorityMode string

const (
	PriorityUniversal PriorityMode = "Universal"
	PriorityVote      PriorityMode = "Vote"
)

// ProjectMeta is the singleton project description.
type ProjectMeta struct {
	CreatorAddress   revision.AgentID `json:"creator_address"`
	CreatedAt        int64            `json:"created_at"`
	Name             string           `json:"name"`
	Image            *string          `json:"image"`
	Passphrase       string           `json:"passphrase"`
	IsImported       bool             `json:"is_imported"`
	PriorityMode     PriorityMode     `json:"priority_mode"`
	TopPriorityGoals []revision.Hash  `json:"top_priority_goals"`
}

// Hierarchy is a goal's position in the tree.
type Hierarchy string

const (
	HierarchyRoot        Hierarchy = "Root"
	HierarchyTrunk       Hierarchy = "Trunk"
	HierarchyBranch      Hierarchy = "Branch"
	HierarchyLeaf        Hierarchy = "Leaf"
	HierarchyNoHierarchy Hierarchy = "NoHierarchy"
)

// Status is a goal's progress.
type Status string

const (
	StatusUncertain  Status = "Uncertain"
	StatusIncomplete Status = "Incomplete"
	StatusInProcess  Status = "InProcess"
	StatusComplete   Status = "Complete"
	StatusInReview   Status = "InReview"
)

// Goal is one node of the project's goal tree.
type Goal struct {
	Content          string            `json:"content"`
	UserHash         revision.AgentID  `json:"user_hash"`
	UserEditHash     *revision.AgentID `json:"user_edit_hash"`
	TimestampCreated int64             `json:"timestamp_created"`
	TimestampUpdated *int64            `json:"timestamp_updated"`
	Hierarchy        Hierarchy         `json:"hierarchy"`
	Status           Status            `json:"status"`
	Tags             []string          `json:"tags"`
	Description      string            `json:"description"`
	IsImported       bool              `json:"is_imported"`
}

// GoalMember assigns an agent to a goal.
type GoalMember struct {
	GoalAddress   revision.Hash    `json:"goal_address"`
	AgentAddress  revision.AgentID `json:"agent_address"`
	UserEditHash  revision.AgentID `json:"user_edit_hash"`
	UnixTimestamp int64            `json:"unix_timestamp"`
	IsImported    bool             `json:"is_imported"`
}

// GoalComment is a comment on a goal.
type GoalComment struct {
	GoalAddress   revision.Hash    `json:"goal_address"`
	Content       string           `json:"content"`
	AgentAddress  revision.AgentID `json:"agent_address"`
	UnixTimestamp int64            `json:"unix_timestamp"`
	IsImported    bool             `json:"is_imported"`
}

// Member records that an agent joined the project.
type Member struct {
	Address revision.AgentID `json:"address"`
}

var (
	ProjectMetaType = crud.Type[ProjectMeta]{Name: TypeProjectMeta, Path: anchor.ProjectMeta, Singleton: true}
	GoalType        = crud.Type[Goal]{Name: TypeGoal, Path: anchor.Goals, Deletable: true}
	GoalMemberType  = crud.Type[GoalMember]{Name: TypeGoalMember, Path: anchor.GoalMembers, Deletable: true}
	GoalCommentType = crud.Type[GoalComment]{Name: TypeGoalComment, Path: anchor.GoalComment, Deletable: true}
	MemberType      = crud.Type[Member]{Name: TypeMember, Path: anchor.Members}
)
