package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/validate"
)

// PathEntry is an anchor as carried in a Bundle.
type PathEntry struct {
	Hash revision.Hash `json:"hash"`
	Name string        `json:"name"`
}

// Bundle is a full ledger snapshot for offline replication.
type Bundle struct {
	Paths   []PathEntry       `json:"paths"`
	Records []revision.Record `json:"records"`
	Links   []revision.Link   `json:"links"`
}

// IngestReport counts the outcomes of offering a Bundle.
type IngestReport struct {
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
	Deferred int `json:"deferred"`
	Links    int `json:"links"`
	Skipped  int `json:"skipped_links"`
	Paths    int `json:"paths"`
}

// Export returns every path, record and link in acceptance order.
// Acceptance order keeps dependencies ahead of the revisions that need them.
func (l *Ledger) Export(ctx context.Context) (Bundle, error) {
	b := Bundle{Paths: []PathEntry{}, Links: []revision.Link{}}

	rows, err := l.db.QueryContext(ctx, `SELECT hash, name FROM paths ORDER BY name ASC`)
	if err != nil {
		return Bundle{}, fmt.Errorf("export paths: %w", err)
	}
	for rows.Next() {
		var p PathEntry
		if err := rows.Scan(&p.Hash, &p.Name); err != nil {
			rows.Close()
			return Bundle{}, fmt.Errorf("export paths: %w", err)
		}
		b.Paths = append(b.Paths, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return Bundle{}, fmt.Errorf("export paths: %w", err)
	}

	recs, err := reader{q: l.db}.exportRecords(ctx)
	if err != nil {
		return Bundle{}, err
	}
	b.Records = recs

	lrows, err := l.db.QueryContext(ctx, `
		SELECT base, target, tag, author, timestamp FROM links ORDER BY id ASC
	`)
	if err != nil {
		return Bundle{}, fmt.Errorf("export links: %w", err)
	}
	defer lrows.Close()
	for lrows.Next() {
		var lk revision.Link
		if err := lrows.Scan(&lk.Base, &lk.Target, &lk.Tag, &lk.Author, &lk.Timestamp); err != nil {
			return Bundle{}, fmt.Errorf("export links: %w", err)
		}
		b.Links = append(b.Links, lk)
	}
	if err := lrows.Err(); err != nil {
		return Bundle{}, fmt.Errorf("export links: %w", err)
	}
	return b, nil
}

func (r reader) exportRecords(ctx context.Context) ([]revision.Record, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+recordColumns+` ORDER BY h.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	defer rows.Close()

	recs := []revision.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("export records: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("export records: %w", err)
	}
	return recs, nil
}

// Ingest offers every part of b for acceptance: paths, then records, then
// links. Records that stay Unresolved remain parked after Ingest returns.
func (l *Ledger) Ingest(ctx context.Context, b Bundle) (IngestReport, error) {
	var rep IngestReport
	for _, p := range b.Paths {
		if err := l.ReceivePath(ctx, p.Hash, p.Name); err != nil {
			return rep, err
		}
		rep.Paths++
	}
	var deferred []revision.Hash
	for _, rec := range b.Records {
		out, err := l.Receive(ctx, rec)
		if err != nil {
			return rep, err
		}
		switch out.Kind {
		case validate.Valid:
			rep.Accepted++
		case validate.Invalid:
			rep.Rejected++
		case validate.Unresolved:
			deferred = append(deferred, rec.HeaderHash)
		}
	}
	// Links to records still parked are skipped; a later sync offers them
	// again.
	for _, lk := range b.Links {
		err := l.ReceiveLink(ctx, lk)
		if errors.Is(err, ErrUnbackedLink) {
			rep.Skipped++
			continue
		}
		if err != nil {
			return rep, err
		}
		rep.Links++
	}

	// A record deferred early may have been accepted once a later record
	// in the bundle supplied its dependency.
	parked, err := l.Pending(ctx)
	if err != nil {
		return rep, err
	}
	waiting := make(map[revision.Hash]bool, len(parked))
	for _, p := range parked {
		waiting[p.Record.HeaderHash] = true
	}
	for _, h := range deferred {
		_, held, err := l.Get(ctx, h)
		if err != nil {
			return rep, err
		}
		switch {
		case held:
			rep.Accepted++
		case waiting[h]:
			rep.Deferred++
		default:
			rep.Rejected++
		}
	}
	return rep, nil
}
