package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/acorn/internal/crud"
	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/signal"
)

// ErrNoProjectMeta is returned by FetchProjectMeta before the project
// metadata is known locally.
var ErrNoProjectMeta = errors.New("no project meta exists")

// Project bundles the engines of every project record type over one ledger.
type Project struct {
	l        crud.Ledger
	notifier *signal.Notifier
	logger   *slog.Logger

	Meta         *crud.Engine[ProjectMeta]
	Goals        *crud.Engine[Goal]
	GoalMembers  *crud.Engine[GoalMember]
	GoalComments *crud.Engine[GoalComment]
	Members      *crud.Engine[Member]
}

// New creates the project facade. notifier may be nil.
func New(l crud.Ledger, notifier *signal.Notifier, logger *slog.Logger) *Project {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []crud.Option{crud.WithNotifier(notifier), crud.WithLogger(logger)}
	return &Project{
		l:            l,
		notifier:     notifier,
		logger:       logger,
		Meta:         crud.New(l, ProjectMetaType, opts...),
		Goals:        crud.New(l, GoalType, opts...),
		GoalMembers:  crud.New(l, GoalMemberType, opts...),
		GoalComments: crud.New(l, GoalCommentType, opts...),
		Members:      crud.New(l, MemberType, opts...),
	}
}

// CreateProjectMeta writes the project metadata. Fails with
// crud.ErrSingletonViolation if metadata is already discoverable.
func (p *Project) CreateProjectMeta(ctx context.Context, meta ProjectMeta, peers signal.PeerSource) (crud.Result[ProjectMeta], error) {
	return p.Meta.Create(ctx, meta, peers)
}

// FetchProjectMeta returns the current project metadata.
func (p *Project) FetchProjectMeta(ctx context.Context) (revision.WireElement[ProjectMeta], error) {
	els, err := p.Meta.Fetch(ctx, crud.All())
	if err != nil {
		return revision.WireElement[ProjectMeta]{}, err
	}
	if len(els) == 0 {
		return revision.WireElement[ProjectMeta]{}, ErrNoProjectMeta
	}
	return els[0], nil
}

// UpdateProjectMeta supersedes the metadata revision at original.
func (p *Project) UpdateProjectMeta(ctx context.Context, original revision.Hash, meta ProjectMeta, peers signal.PeerSource) (crud.Result[ProjectMeta], error) {
	return p.Meta.Update(ctx, original, meta, peers)
}

// ProjectMetaExists reports whether the metadata anchor has reached this
// ledger. Used while joining a project, before the metadata itself is
// readable.
func (p *Project) ProjectMetaExists(ctx context.Context) (bool, error) {
	return p.Meta.Exists(ctx)
}

// ArchiveGoalMembers deletes every goal member assigned to goal and returns
// the archived member headers. Members of other goals are untouched. A
// failure on one member does not stop the others.
func (p *Project) ArchiveGoalMembers(ctx context.Context, goal revision.Hash, peers signal.PeerSource) ([]revision.Hash, error) {
	members, err := p.GoalMembers.Fetch(ctx, crud.All())
	if err != nil {
		return nil, fmt.Errorf("archive goal members: %w", err)
	}

	archived := []revision.Hash{}
	var errs []error
	for _, m := range members {
		if m.Entry.GoalAddress != goal {
			continue
		}
		if _, err := p.GoalMembers.Delete(ctx, m.HeaderHash, peers); err != nil {
			errs = append(errs, err)
			continue
		}
		archived = append(archived, m.HeaderHash)
	}
	return archived, errors.Join(errs...)
}

// ArchivedGoal lists what ArchiveGoal removed.
type ArchivedGoal struct {
	Goal         revision.Hash   `json:"goal"`
	GoalMembers  []revision.Hash `json:"goal_members"`
	GoalComments []revision.Hash `json:"goal_comments"`
}

// ArchiveGoal deletes a goal with its members and comments.
func (p *Project) ArchiveGoal(ctx context.Context, goal revision.Hash, peers signal.PeerSource) (ArchivedGoal, error) {
	if _, err := p.Goals.Delete(ctx, goal, peers); err != nil {
		return ArchivedGoal{}, err
	}
	out := ArchivedGoal{Goal: goal, GoalComments: []revision.Hash{}}

	members, err := p.ArchiveGoalMembers(ctx, goal, peers)
	out.GoalMembers = members
	if err != nil {
		return out, err
	}

	comments, err := p.GoalComments.Fetch(ctx, crud.All())
	if err != nil {
		return out, fmt.Errorf("archive goal comments: %w", err)
	}
	var errs []error
	for _, c := range comments {
		if c.Entry.GoalAddress != goal {
			continue
		}
		if _, err := p.GoalComments.Delete(ctx, c.HeaderHash, peers); err != nil {
			errs = append(errs, err)
			continue
		}
		out.GoalComments = append(out.GoalComments, c.HeaderHash)
	}
	return out, errors.Join(errs...)
}

// JoinProject records the local agent as a member. Joining twice returns
// the existing membership. No signal is sent; see InitSignal.
func (p *Project) JoinProject(ctx context.Context) (revision.WireElement[Member], error) {
	self := p.l.AgentID()
	members, err := p.FetchMembers(ctx)
	if err != nil {
		return revision.WireElement[Member]{}, err
	}
	for _, m := range members {
		if m.Entry.Address == self {
			return m, nil
		}
	}
	res, err := p.Members.Create(ctx, Member{Address: self}, nil)
	if err != nil {
		return revision.WireElement[Member]{}, err
	}
	return res.Element, nil
}

// FetchMembers lists the project's members.
func (p *Project) FetchMembers(ctx context.Context) ([]revision.WireElement[Member], error) {
	return p.Members.Fetch(ctx, crud.All())
}

// InitSignal announces the local agent's membership to peers, typically
// the online ones. It is kept out of JoinProject because peer discovery can
// be slow and must not block joining.
func (p *Project) InitSignal(ctx context.Context, peers signal.PeerSource) signal.Delivery {
	s, err := signal.New(TypeMember, signal.ActionCreate, Member{Address: p.l.AgentID()})
	if err != nil {
		return signal.Delivery{Attempted: true, Err: err}
	}
	return p.notifier.Notify(ctx, peers, s)
}

// InterestedPeers is the "peers who care about this content" policy:
// every project member except the local agent.
func (p *Project) InterestedPeers(ctx context.Context) ([]revision.AgentID, error) {
	members, err := p.FetchMembers(ctx)
	if err != nil {
		return nil, fmt.Errorf("interested peers: %w", err)
	}
	self := p.l.AgentID()
	seen := make(map[revision.AgentID]bool)
	peers := []revision.AgentID{}
	for _, m := range members {
		a := m.Entry.Address
		if a == self || seen[a] {
			continue
		}
		seen[a] = true
		peers = append(peers, a)
	}
	sort.Slice(peers, func(i, j int) bool { return peers[i] < peers[j] })
	return peers, nil
}
