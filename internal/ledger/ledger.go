package ledger

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/acorn/internal/metrics"
	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/validate"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - empty database
// 1 - entries, headers, links, paths, pending
const currentSchemaVersion = 1

// ErrReadOnly is returned by write operations on a ledger opened without a key.
var ErrReadOnly = errors.New("ledger opened without a signing key")

// ErrUnbackedLink is returned for a replicated link whose target is not an
// accepted create of its tag.
var ErrUnbackedLink = errors.New("link not backed by an accepted create")

// Validator is the acceptance callback. *validate.Registry implements it.
type Validator interface {
	Validate(ctx context.Context, rec revision.Record, r validate.Resolver) validate.Outcome
}

// Ledger is one agent's local append-only store.
//
// Writes are serialized by an in-process mutex so a CRUD call's header,
// links and path run as one transaction with no interleaving.
type Ledger struct {
	db      *sql.DB
	key     ed25519.PrivateKey
	agent   revision.AgentID
	valid   Validator
	now     func() int64
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu sync.Mutex
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithValidator sets the acceptance callback.
// Without one every revision is accepted after integrity checks.
func WithValidator(v Validator) Option {
	return func(l *Ledger) { l.valid = v }
}

// WithClock sets the header timestamp source, in unix milliseconds.
func WithClock(now func() int64) Option {
	return func(l *Ledger) { l.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// Open creates or opens the ledger database at path.
// Applies required pragmas and schema automatically.
//
// key is the local agent's signing key. A nil key opens the ledger for
// reading and replication only.
func Open(path string, key ed25519.PrivateKey, opts ...Option) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	l := &Ledger{
		db:     db,
		key:    key,
		now:    func() int64 { return time.Now().UnixMilli() },
		logger: slog.Default(),
	}
	if key != nil {
		l.agent = revision.NewAgentID(key.Public().(ed25519.PublicKey))
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

// AgentID returns the local agent identity, empty when read-only.
func (l *Ledger) AgentID() revision.AgentID {
	return l.agent
}

// Atomic runs fn as one transaction. Any error from fn rolls back every
// write fn made. Parked revisions are re-offered after a successful commit.
func (l *Ledger) Atomic(ctx context.Context, fn func(w Writer) error) error {
	if l.key == nil {
		return ErrReadOnly
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("atomic: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	w := &txWriter{reader: reader{q: tx}, l: l}
	if err := fn(w); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("atomic: commit: %w", err)
	}
	for _, c := range w.committed {
		l.metrics.Revision(c.Header.EntryType, string(c.Header.Action), metrics.OriginLocal)
	}

	if _, err := l.retryPendingLocked(ctx); err != nil {
		l.logger.Warn("retry pending after local write", "error", err)
	}
	return nil
}

// validate runs the acceptance callback and records the outcome.
func (l *Ledger) validate(ctx context.Context, rec revision.Record, r validate.Resolver) validate.Outcome {
	out := validate.Accept()
	if l.valid != nil {
		out = l.valid.Validate(ctx, rec, r)
	}
	l.metrics.Validation(rec.Header.EntryType, out.Kind.String(), string(out.Reason))
	return out
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and records the version.
// A database written by a newer schema is refused.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (l *Ledger) verifyPragma(name, expected string) error {
	var value string
	if err := l.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
