// Package anchor implements well-known, hash-addressed index roots.
//
// A Path's address is the hash of its name, so every peer derives the same
// root without coordination. Links from a path address to entry hashes list
// all records of one type.
package anchor

import (
	"context"
	"fmt"

	"github.com/roach88/acorn/internal/revision"
)

// Well-known path names.
const (
	Agents      Path = "agents"
	Members     Path = "member"
	ProjectMeta Path = "project_meta"
	Goals       Path = "goal"
	GoalMembers Path = "goal_member"
	GoalComment Path = "goal_comment"
)

// Path is a well-known index root name.
type Path string

// PathWriter persists anchors. Implemented by ledger.Writer.
type PathWriter interface {
	EnsurePath(ctx context.Context, hash revision.Hash, name string) error
}

// PathReader checks anchors and lists their links. Implemented by ledger.Reader.
type PathReader interface {
	PathExists(ctx context.Context, hash revision.Hash) (bool, error)
	Links(ctx context.Context, base revision.Hash, tag string) ([]revision.Link, error)
}

// Hash returns the deterministic address of the path.
func (p Path) Hash() revision.Hash {
	return revision.HashPath(string(p))
}

// Ensure creates the anchor if it does not exist.
// Creating an anchor that already exists is a no-op, never an error.
func (p Path) Ensure(ctx context.Context, w PathWriter) error {
	if err := w.EnsurePath(ctx, p.Hash(), string(p)); err != nil {
		return fmt.Errorf("ensure path %q: %w", p, err)
	}
	return nil
}

// Exists reports whether the anchor is known locally.
func (p Path) Exists(ctx context.Context, r PathReader) (bool, error) {
	ok, err := r.PathExists(ctx, p.Hash())
	if err != nil {
		return false, fmt.Errorf("path %q exists: %w", p, err)
	}
	return ok, nil
}

// FetchLinks returns the raw link set under the anchor, filtered by tag.
// A path with no links yields an empty slice. Callers follow the links to
// resolve current values.
func (p Path) FetchLinks(ctx context.Context, r PathReader, tag string) ([]revision.Link, error) {
	links, err := r.Links(ctx, p.Hash(), tag)
	if err != nil {
		return nil, fmt.Errorf("path %q links: %w", p, err)
	}
	return links, nil
}
