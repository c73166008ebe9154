package crud

import (
	"context"
	"fmt"
	"sort"

	"github.com/roach88/acorn/internal/ledger"
	"github.com/roach88/acorn/internal/revision"
)

type selectorKind int

const (
	selectAll selectorKind = iota
	selectAuthor
	selectSpecific
)

// Selector chooses which records Fetch enumerates.
type Selector struct {
	kind    selectorKind
	author  revision.AgentID
	headers []revision.Hash
}

// All selects every record under the type's path.
func All() Selector { return Selector{kind: selectAll} }

// ByAuthor selects the records linked from an agent's identity hash.
func ByAuthor(agent revision.AgentID) Selector {
	return Selector{kind: selectAuthor, author: agent}
}

// Specific selects the records containing the given headers. Any header
// of a record's chain selects the whole record.
func Specific(headers ...revision.Hash) Selector {
	return Selector{kind: selectSpecific, headers: headers}
}

// Fetch returns the current value of each selected, unarchived record,
// ordered by create time then create header address. An empty index
// yields an empty slice.
func (e *Engine[T]) Fetch(ctx context.Context, sel Selector) ([]revision.WireElement[T], error) {
	roots, err := e.roots(ctx, sel)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", e.typ.Name, err)
	}

	out := make([]revision.WireElement[T], 0, len(roots))
	for _, root := range roots {
		tip, archived, err := e.resolve(ctx, root)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", e.typ.Name, err)
		}
		if archived {
			continue
		}
		el, err := e.wire(tip)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", e.typ.Name, err)
		}
		out = append(out, el)
	}
	return out, nil
}

// Latest returns the current value of the record containing header.
// An archived record is ErrNotFound.
func (e *Engine[T]) Latest(ctx context.Context, header revision.Hash) (revision.WireElement[T], error) {
	els, err := e.Fetch(ctx, Specific(header))
	if err != nil {
		return revision.WireElement[T]{}, err
	}
	if len(els) == 0 {
		return revision.WireElement[T]{}, fmt.Errorf("latest %s %s: %w", e.typ.Name, header, ErrNotFound)
	}
	return els[0], nil
}

// roots returns the distinct create headers a selector reaches, sorted.
func (e *Engine[T]) roots(ctx context.Context, sel Selector) ([]revision.Record, error) {
	seen := make(map[revision.Hash]bool)
	var roots []revision.Record
	add := func(r revision.Record) {
		if !seen[r.HeaderHash] {
			seen[r.HeaderHash] = true
			roots = append(roots, r)
		}
	}

	switch sel.kind {
	case selectAll, selectAuthor:
		var links []revision.Link
		var err error
		if sel.kind == selectAll {
			links, err = e.typ.Path.FetchLinks(ctx, e.l, e.typ.Name)
		} else {
			links, err = e.l.Links(ctx, sel.author.Hash(), e.typ.Name)
		}
		if err != nil {
			return nil, err
		}
		for _, lk := range links {
			creates, err := e.l.Creates(ctx, lk.Target, e.typ.Name)
			if err != nil {
				return nil, err
			}
			for _, c := range creates {
				if sel.kind == selectAuthor && c.Header.Author != sel.author {
					continue
				}
				add(c)
			}
		}
	case selectSpecific:
		for _, h := range sel.headers {
			root, ok, err := e.rootOf(ctx, e.l, h)
			if err != nil {
				return nil, err
			}
			if ok {
				add(root)
			}
		}
	}

	sort.Slice(roots, func(i, j int) bool {
		a, b := roots[i].Header, roots[j].Header
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		return roots[i].HeaderHash < roots[j].HeaderHash
	})
	return roots, nil
}

// rootOf follows original-header references from h back to its create.
// A header that is missing, of another type, or whose chain is broken
// locally reports false.
func (e *Engine[T]) rootOf(ctx context.Context, r ledger.Reader, h revision.Hash) (revision.Record, bool, error) {
	seen := make(map[revision.Hash]bool)
	for !seen[h] {
		seen[h] = true
		rec, ok, err := r.Get(ctx, h)
		if err != nil || !ok {
			return revision.Record{}, false, err
		}
		if rec.Header.EntryType != e.typ.Name {
			return revision.Record{}, false, nil
		}
		if rec.Header.Action == revision.ActionCreate {
			return rec, true, nil
		}
		h = rec.Header.OriginalHeader
	}
	return revision.Record{}, false, nil
}

// resolve walks the revision tree under root. It returns the tip and
// whether any revision in the tree has been deleted by a delete of this type.
func (e *Engine[T]) resolve(ctx context.Context, root revision.Record) (revision.Record, bool, error) {
	children := make(map[revision.Hash][]revision.Record)
	archived := false

	queue := []revision.Hash{root.HeaderHash}
	seen := map[revision.Hash]bool{root.HeaderHash: true}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]

		d, ok, err := e.l.Details(ctx, h)
		if err != nil {
			return revision.Record{}, false, err
		}
		if !ok {
			continue
		}
		for _, del := range d.Deletes {
			if del.Header.EntryType == e.typ.Name {
				archived = true
			}
		}
		for _, u := range d.Updates {
			if u.Header.EntryType != e.typ.Name || seen[u.HeaderHash] {
				continue
			}
			seen[u.HeaderHash] = true
			children[h] = append(children[h], u)
			queue = append(queue, u.HeaderHash)
		}
	}
	return revision.Tip(root, children), archived, nil
}

func (e *Engine[T]) wire(rec revision.Record) (revision.WireElement[T], error) {
	var entry T
	if err := revision.Decode(rec.Entry, &entry); err != nil {
		return revision.WireElement[T]{}, fmt.Errorf("decode %s: %w", rec.HeaderHash, err)
	}
	return revision.WireElement[T]{Entry: entry, HeaderHash: rec.HeaderHash, EntryHash: rec.Header.EntryHash}, nil
}
