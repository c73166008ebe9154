package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/validate"
)

// Writer is the transaction-scoped handle passed to Atomic.
// Reads through a Writer observe the transaction's own uncommitted writes.
type Writer interface {
	Reader

	// Create authors a create header for entry.
	Create(ctx context.Context, entryType string, entry []byte) (revision.Record, error)

	// Update authors an update header superseding original.
	Update(ctx context.Context, entryType string, original revision.Hash, entry []byte) (revision.Record, error)

	// Delete authors a delete header archiving target.
	Delete(ctx context.Context, entryType string, target revision.Hash) (revision.Record, error)

	// CreateLink adds an index edge authored by the local agent.
	// An existing (base, target, tag) edge is left as is.
	CreateLink(ctx context.Context, base, target revision.Hash, tag string) (revision.Link, error)

	// EnsurePath records an anchor. Ensuring an existing anchor is a no-op.
	EnsurePath(ctx context.Context, hash revision.Hash, name string) error
}

type txWriter struct {
	reader
	l         *Ledger
	committed []revision.Record
}

func (w *txWriter) Create(ctx context.Context, entryType string, entry []byte) (revision.Record, error) {
	return w.author(ctx, revision.Header{
		Action:    revision.ActionCreate,
		EntryType: entryType,
		EntryHash: revision.HashEntry(entry),
	}, entry)
}

func (w *txWriter) Update(ctx context.Context, entryType string, original revision.Hash, entry []byte) (revision.Record, error) {
	return w.author(ctx, revision.Header{
		Action:         revision.ActionUpdate,
		EntryType:      entryType,
		EntryHash:      revision.HashEntry(entry),
		OriginalHeader: original,
	}, entry)
}

func (w *txWriter) Delete(ctx context.Context, entryType string, target revision.Hash) (revision.Record, error) {
	return w.author(ctx, revision.Header{
		Action:         revision.ActionDelete,
		EntryType:      entryType,
		OriginalHeader: target,
	}, nil)
}

// author chains, signs and validates a local header, then inserts it.
// A revision that does not validate aborts with a *validate.Rejection.
func (w *txWriter) author(ctx context.Context, h revision.Header, entry []byte) (revision.Record, error) {
	seq, prev, err := w.head(ctx, w.l.agent)
	if err != nil {
		return revision.Record{}, fmt.Errorf("%s %s: %w", h.EntryType, h.Action, err)
	}
	h.Author = w.l.agent
	h.Seq = seq + 1
	h.Prev = prev
	h.Timestamp = w.l.now()

	rec, err := revision.Seal(w.l.key, h, entry)
	if err != nil {
		return revision.Record{}, fmt.Errorf("%s %s: %w", h.EntryType, h.Action, err)
	}

	out := w.l.validate(ctx, rec, w.reader)
	if !out.IsValid() {
		w.l.logger.Debug("local revision rejected",
			"entry_type", h.EntryType,
			"action", h.Action,
			"outcome", out.String(),
		)
		return revision.Record{}, &validate.Rejection{EntryType: h.EntryType, Action: h.Action, Outcome: out}
	}

	if err := insertRecord(ctx, w.q, rec); err != nil {
		return revision.Record{}, err
	}
	w.committed = append(w.committed, rec)
	return rec, nil
}

// head returns the author's latest seq and header address.
func (w *txWriter) head(ctx context.Context, author revision.AgentID) (int64, revision.Hash, error) {
	var (
		seq  int64
		hash revision.Hash
	)
	err := w.q.QueryRowContext(ctx, `
		SELECT seq, hash FROM headers
		WHERE author = ?
		ORDER BY seq DESC, hash COLLATE BINARY DESC
		LIMIT 1
	`, author).Scan(&seq, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("author head: %w", err)
	}
	return seq, hash, nil
}

func (w *txWriter) CreateLink(ctx context.Context, base, target revision.Hash, tag string) (revision.Link, error) {
	lk := revision.Link{
		Base:      base,
		Target:    target,
		Tag:       tag,
		Author:    w.l.agent,
		Timestamp: w.l.now(),
	}
	if err := insertLink(ctx, w.q, lk); err != nil {
		return revision.Link{}, err
	}
	return lk, nil
}

func (w *txWriter) EnsurePath(ctx context.Context, hash revision.Hash, name string) error {
	return insertPath(ctx, w.q, hash, name)
}

// insertRecord stores entry bytes and header.
// Uses ON CONFLICT DO NOTHING for idempotency: re-offering an accepted
// revision is silently ignored.
func insertRecord(ctx context.Context, q querier, rec revision.Record) error {
	h := rec.Header
	if h.Action != revision.ActionDelete {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO entries (hash, body) VALUES (?, ?)
			ON CONFLICT(hash) DO NOTHING
		`, h.EntryHash, rec.Entry); err != nil {
			return fmt.Errorf("write entry: %w", err)
		}
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO headers
		(hash, author, seq, prev, action, entry_type, entry_hash, original_header, timestamp, signature)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		rec.HeaderHash,
		h.Author,
		h.Seq,
		h.Prev,
		string(h.Action),
		h.EntryType,
		h.EntryHash,
		h.OriginalHeader,
		h.Timestamp,
		rec.Signature,
	)
	if err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}

func insertLink(ctx context.Context, q querier, lk revision.Link) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO links (base, target, tag, author, timestamp)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(base, target, tag) DO NOTHING
	`, lk.Base, lk.Target, lk.Tag, lk.Author, lk.Timestamp)
	if err != nil {
		return fmt.Errorf("write link: %w", err)
	}
	return nil
}

func insertPath(ctx context.Context, q querier, hash revision.Hash, name string) error {
	if revision.HashPath(name) != hash {
		return fmt.Errorf("ensure path %q: hash %s does not match name", name, hash)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO paths (hash, name) VALUES (?, ?)
		ON CONFLICT(hash) DO NOTHING
	`, hash, name)
	if err != nil {
		return fmt.Errorf("ensure path %q: %w", name, err)
	}
	return nil
}
