// Package profiles stores one agent profile per participant, indexed both
// under the shared agents path and from the agent's own identity.
package profiles

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/roach88/acorn/internal/anchor"
	"github.com/roach88/acorn/internal/crud"
	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/schema"
	"github.com/roach88/acorn/internal/signal"
	"github.com/roach88/acorn/internal/validate"
)

// TypeProfile is the profile entry type name.
const TypeProfile = "profile"

// Status is an agent's presence.
type Status string

const (
	StatusOnline  Status = "Online"
	StatusAway    Status = "Away"
	StatusOffline Status = "Offline"
)

// Profile describes one agent.
type Profile struct {
	FirstName  string           `json:"first_name"`
	LastName   string           `json:"last_name"`
	Handle     string           `json:"handle"`
	Status     Status           `json:"status"`
	AvatarURL  string           `json:"avatar_url"`
	Address    revision.AgentID `json:"address"`
	IsImported bool             `json:"is_imported"`
}

// ProfileType indexes profiles under the agents path and links each from
// its author.
var ProfileType = crud.Type[Profile]{Name: TypeProfile, Path: anchor.Agents, TrackAuthor: true}

//go:embed schema.cue
var schemaCUE string

var profileSchema = schema.MustCompile(schemaCUE)

// Policy returns the profile validation policy.
func Policy() validate.Policy[Profile] {
	return validate.Policy[Profile]{
		EntryType:   TypeProfile,
		Schema:      profileSchema,
		Definition:  "#Profile",
		Author:      func(p Profile) (revision.AgentID, bool) { return p.Address, p.IsImported },
		AllowUpdate: true,
		Immutable:   []string{"address"},
	}
}

// Register adds the profile policy to reg.
func Register(reg *validate.Registry) error {
	if err := reg.Register(TypeProfile, Policy()); err != nil {
		return fmt.Errorf("register profiles: %w", err)
	}
	return nil
}

// Store reads and writes profiles on one ledger.
type Store struct {
	l      crud.Ledger
	engine *crud.Engine[Profile]
}

// New creates a profile store. notifier may be nil.
func New(l crud.Ledger, notifier *signal.Notifier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		l:      l,
		engine: crud.New(l, ProfileType, crud.WithNotifier(notifier), crud.WithLogger(logger)),
	}
}

// Engine exposes the underlying profile engine.
func (s *Store) Engine() *crud.Engine[Profile] { return s.engine }

// CreateWhoami writes the local agent's profile and signals peers.
func (s *Store) CreateWhoami(ctx context.Context, p Profile, peers signal.PeerSource) (crud.Result[Profile], error) {
	return s.engine.Create(ctx, p, peers)
}

// CreateImportedProfile writes a profile migrated from elsewhere. It is
// linked from the agents path only and is not signalled.
func (s *Store) CreateImportedProfile(ctx context.Context, p Profile) (revision.WireElement[Profile], error) {
	return s.engine.Import(ctx, p)
}

// UpdateWhoami supersedes the profile revision at original.
func (s *Store) UpdateWhoami(ctx context.Context, original revision.Hash, p Profile, peers signal.PeerSource) (crud.Result[Profile], error) {
	return s.engine.Update(ctx, original, p, peers)
}

// Whoami returns the local agent's current profile, if it has one. When
// the agent has written several, the most recently created wins.
func (s *Store) Whoami(ctx context.Context) (revision.WireElement[Profile], bool, error) {
	els, err := s.engine.Fetch(ctx, crud.ByAuthor(s.l.AgentID()))
	if err != nil {
		return revision.WireElement[Profile]{}, false, fmt.Errorf("whoami: %w", err)
	}
	if len(els) == 0 {
		return revision.WireElement[Profile]{}, false, nil
	}
	return els[len(els)-1], true, nil
}

// FetchAgents lists every known profile.
func (s *Store) FetchAgents(ctx context.Context) ([]revision.WireElement[Profile], error) {
	return s.engine.Fetch(ctx, crud.All())
}
