package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/acorn/internal/revision"
)

// Reader is the read side of the substrate. Implemented by *Ledger and by
// the transaction-scoped Writer handed to Atomic.
type Reader interface {
	// Get resolves a header address to its record.
	Get(ctx context.Context, header revision.Hash) (revision.Record, bool, error)

	// Details returns a record with the updates and deletes that reference it.
	Details(ctx context.Context, header revision.Hash) (Details, bool, error)

	// Creates returns every create header of entryType carrying entryHash.
	Creates(ctx context.Context, entryHash revision.Hash, entryType string) ([]revision.Record, error)

	// Links returns the links from base. An empty tag matches every tag.
	Links(ctx context.Context, base revision.Hash, tag string) ([]revision.Link, error)

	// PathExists reports whether an anchor has been ensured.
	PathExists(ctx context.Context, hash revision.Hash) (bool, error)
}

// Details is a record together with the headers that directly reference it.
type Details struct {
	Record  revision.Record
	Updates []revision.Record
	Deletes []revision.Record
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type reader struct {
	q querier
}

const recordColumns = `
	h.hash, h.author, h.seq, h.prev, h.action, h.entry_type, h.entry_hash,
	h.original_header, h.timestamp, h.signature, e.body
	FROM headers h
	LEFT JOIN entries e ON e.hash = h.entry_hash`

// Revision order is deterministic across peers: never acceptance order.
const recordOrder = `ORDER BY h.timestamp ASC, h.seq ASC, h.hash COLLATE BINARY ASC`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (revision.Record, error) {
	var (
		r      revision.Record
		action string
		body   []byte
	)
	err := s.Scan(
		&r.HeaderHash,
		&r.Header.Author,
		&r.Header.Seq,
		&r.Header.Prev,
		&action,
		&r.Header.EntryType,
		&r.Header.EntryHash,
		&r.Header.OriginalHeader,
		&r.Header.Timestamp,
		&r.Signature,
		&body,
	)
	if err != nil {
		return revision.Record{}, err
	}
	r.Header.Action = revision.Action(action)
	if r.Header.Action != revision.ActionDelete {
		r.Entry = body
	}
	return r, nil
}

func (r reader) Get(ctx context.Context, header revision.Hash) (revision.Record, bool, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+recordColumns+` WHERE h.hash = ?`, header)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return revision.Record{}, false, nil
	}
	if err != nil {
		return revision.Record{}, false, fmt.Errorf("get %s: %w", header, err)
	}
	return rec, true, nil
}

func (r reader) Details(ctx context.Context, header revision.Hash) (Details, bool, error) {
	rec, ok, err := r.Get(ctx, header)
	if err != nil || !ok {
		return Details{}, ok, err
	}
	updates, err := r.records(ctx, `WHERE h.original_header = ? AND h.action = 'update'`, header)
	if err != nil {
		return Details{}, false, fmt.Errorf("details %s: %w", header, err)
	}
	deletes, err := r.records(ctx, `WHERE h.original_header = ? AND h.action = 'delete'`, header)
	if err != nil {
		return Details{}, false, fmt.Errorf("details %s: %w", header, err)
	}
	return Details{Record: rec, Updates: updates, Deletes: deletes}, true, nil
}

func (r reader) Creates(ctx context.Context, entryHash revision.Hash, entryType string) ([]revision.Record, error) {
	recs, err := r.records(ctx, `WHERE h.entry_hash = ? AND h.entry_type = ? AND h.action = 'create'`, entryHash, entryType)
	if err != nil {
		return nil, fmt.Errorf("creates %s: %w", entryHash, err)
	}
	return recs, nil
}

// records runs a filtered record query. Returns an empty slice, not nil,
// when nothing matches.
func (r reader) records(ctx context.Context, where string, args ...any) ([]revision.Record, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+recordColumns+` `+where+` `+recordOrder, args...)
	if err != nil {
		return nil, fmt.Errorf("query headers: %w", err)
	}
	defer rows.Close()

	recs := []revision.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan header: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate headers: %w", err)
	}
	return recs, nil
}

func (r reader) Links(ctx context.Context, base revision.Hash, tag string) ([]revision.Link, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT base, target, tag, author, timestamp
		FROM links
		WHERE base = ? AND (? = '' OR tag = ?)
		ORDER BY timestamp ASC, target COLLATE BINARY ASC, tag COLLATE BINARY ASC
	`, base, tag, tag)
	if err != nil {
		return nil, fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	links := []revision.Link{}
	for rows.Next() {
		var lk revision.Link
		if err := rows.Scan(&lk.Base, &lk.Target, &lk.Tag, &lk.Author, &lk.Timestamp); err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		links = append(links, lk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate links: %w", err)
	}
	return links, nil
}

func (r reader) PathExists(ctx context.Context, hash revision.Hash) (bool, error) {
	var n int
	if err := r.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM paths WHERE hash = ?`, hash).Scan(&n); err != nil {
		return false, fmt.Errorf("path exists: %w", err)
	}
	return n > 0, nil
}

// Read methods on the ledger run outside any write transaction.

func (l *Ledger) Get(ctx context.Context, header revision.Hash) (revision.Record, bool, error) {
	return reader{q: l.db}.Get(ctx, header)
}

func (l *Ledger) Details(ctx context.Context, header revision.Hash) (Details, bool, error) {
	return reader{q: l.db}.Details(ctx, header)
}

func (l *Ledger) Creates(ctx context.Context, entryHash revision.Hash, entryType string) ([]revision.Record, error) {
	return reader{q: l.db}.Creates(ctx, entryHash, entryType)
}

func (l *Ledger) Links(ctx context.Context, base revision.Hash, tag string) ([]revision.Link, error) {
	return reader{q: l.db}.Links(ctx, base, tag)
}

func (l *Ledger) PathExists(ctx context.Context, hash revision.Hash) (bool, error) {
	return reader{q: l.db}.PathExists(ctx, hash)
}
