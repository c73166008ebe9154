package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/acorn/internal/metrics"
	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/validate"
)

// Receive offers a replicated revision for local acceptance.
//
// Integrity failures and Invalid outcomes drop the revision. Unresolved
// revisions are parked and re-offered by the ledger whenever a later
// acceptance may have supplied the dependency. The returned error covers
// storage failures only; a rejection is an outcome.
func (l *Ledger) Receive(ctx context.Context, rec revision.Record) (validate.Outcome, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out, err := l.offer(ctx, rec)
	if err != nil {
		return validate.Outcome{}, err
	}
	if out.IsValid() {
		if _, err := l.retryPendingLocked(ctx); err != nil {
			return out, err
		}
	}
	return out, nil
}

// offer runs one acceptance attempt. The caller holds l.mu.
func (l *Ledger) offer(ctx context.Context, rec revision.Record) (validate.Outcome, error) {
	r := reader{q: l.db}
	if _, ok, err := r.Get(ctx, rec.HeaderHash); err != nil {
		return validate.Outcome{}, err
	} else if ok {
		return validate.Accept(), nil
	}

	if err := rec.Verify(); err != nil {
		out := integrityOutcome(err)
		l.metrics.Validation(rec.Header.EntryType, out.Kind.String(), string(out.Reason))
		l.logger.Warn("received revision failed integrity check",
			"header", rec.HeaderHash,
			"author", rec.Header.Author,
			"error", err,
		)
		return out, nil
	}

	out := l.validate(ctx, rec, r)
	switch out.Kind {
	case validate.Valid:
		if err := l.commitReceived(ctx, rec); err != nil {
			return validate.Outcome{}, err
		}
		l.metrics.Revision(rec.Header.EntryType, string(rec.Header.Action), metrics.OriginRemote)
	case validate.Unresolved:
		if err := l.park(ctx, rec, out.Missing); err != nil {
			return validate.Outcome{}, err
		}
		l.logger.Debug("received revision parked",
			"header", rec.HeaderHash,
			"missing", out.Missing,
		)
	default:
		l.logger.Info("received revision rejected",
			"header", rec.HeaderHash,
			"entry_type", rec.Header.EntryType,
			"outcome", out.String(),
		)
	}
	return out, nil
}

func integrityOutcome(err error) validate.Outcome {
	if errors.Is(err, revision.ErrBadSignature) {
		return validate.Reject(validate.ReasonBadSignature, err.Error())
	}
	return validate.Reject(validate.ReasonCorruptHeader, err.Error())
}

func (l *Ledger) commitReceived(ctx context.Context, rec revision.Record) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("receive: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := insertRecord(ctx, tx, rec); err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending WHERE header_hash = ?`, rec.HeaderHash); err != nil {
		return fmt.Errorf("receive: clear pending: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("receive: commit: %w", err)
	}
	return nil
}

// park stores an Unresolved revision. Re-parking bumps its attempt count.
func (l *Ledger) park(ctx context.Context, rec revision.Record, missing []revision.Hash) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("park: marshal record: %w", err)
	}
	missingJSON, err := json.Marshal(missing)
	if err != nil {
		return fmt.Errorf("park: marshal missing: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO pending (header_hash, record, missing) VALUES (?, ?, ?)
		ON CONFLICT(header_hash) DO UPDATE SET missing = excluded.missing, attempts = attempts + 1
	`, rec.HeaderHash, string(recJSON), string(missingJSON))
	if err != nil {
		return fmt.Errorf("park: %w", err)
	}
	return nil
}

// Pending is a parked revision and the dependencies it waits on.
type Pending struct {
	Record   revision.Record
	Missing  []revision.Hash
	Attempts int
}

// Pending lists parked revisions in the order they were first received.
func (l *Ledger) Pending(ctx context.Context) ([]Pending, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT record, missing, attempts FROM pending ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending: %w", err)
	}
	defer rows.Close()

	out := []Pending{}
	for rows.Next() {
		var (
			p                    Pending
			recJSON, missingJSON string
		)
		if err := rows.Scan(&recJSON, &missingJSON, &p.Attempts); err != nil {
			return nil, fmt.Errorf("scan pending: %w", err)
		}
		if err := json.Unmarshal([]byte(recJSON), &p.Record); err != nil {
			return nil, fmt.Errorf("decode pending record: %w", err)
		}
		if err := json.Unmarshal([]byte(missingJSON), &p.Missing); err != nil {
			return nil, fmt.Errorf("decode pending missing: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending: %w", err)
	}
	return out, nil
}

// RetryPending re-offers every parked revision until no more can be
// accepted. Returns how many were accepted.
func (l *Ledger) RetryPending(ctx context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retryPendingLocked(ctx)
}

func (l *Ledger) retryPendingLocked(ctx context.Context) (int, error) {
	accepted := 0
	for {
		parked, err := l.Pending(ctx)
		if err != nil {
			return accepted, err
		}
		progress := false
		waiting := 0
		for _, p := range parked {
			out := l.validate(ctx, p.Record, reader{q: l.db})
			switch out.Kind {
			case validate.Valid:
				if err := l.commitReceived(ctx, p.Record); err != nil {
					return accepted, err
				}
				l.metrics.Revision(p.Record.Header.EntryType, string(p.Record.Header.Action), metrics.OriginRemote)
				accepted++
				progress = true
			case validate.Invalid:
				if _, err := l.db.ExecContext(ctx, `DELETE FROM pending WHERE header_hash = ?`, p.Record.HeaderHash); err != nil {
					return accepted, fmt.Errorf("drop pending: %w", err)
				}
				l.logger.Info("parked revision rejected",
					"header", p.Record.HeaderHash,
					"outcome", out.String(),
				)
			default:
				waiting++
			}
		}
		if !progress {
			l.metrics.Pending(waiting)
			return accepted, nil
		}
	}
}

// ReceiveLink stores a replicated index edge. Existing edges are kept.
// The target must be an accepted create of the link's tag, and the base
// must be a known path or the author of one of those creates. Other links
// return ErrUnbackedLink.
func (l *Ledger) ReceiveLink(ctx context.Context, lk revision.Link) error {
	if !lk.Base.Valid() || !lk.Target.Valid() {
		return fmt.Errorf("receive link: malformed address")
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	r := reader{q: l.db}
	creates, err := r.Creates(ctx, lk.Target, lk.Tag)
	if err != nil {
		return fmt.Errorf("receive link: %w", err)
	}
	if len(creates) == 0 {
		return fmt.Errorf("receive link %s: no %s create: %w", lk.Target, lk.Tag, ErrUnbackedLink)
	}
	isPath, err := r.PathExists(ctx, lk.Base)
	if err != nil {
		return fmt.Errorf("receive link: %w", err)
	}
	if !isPath && !slices.ContainsFunc(creates, func(rec revision.Record) bool {
		return rec.Header.Author.Hash() == lk.Base
	}) {
		return fmt.Errorf("receive link %s: base is neither a path nor an author: %w", lk.Base, ErrUnbackedLink)
	}
	return insertLink(ctx, l.db, lk)
}

// ReceivePath stores a replicated anchor.
func (l *Ledger) ReceivePath(ctx context.Context, hash revision.Hash, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return insertPath(ctx, l.db, hash, name)
}
