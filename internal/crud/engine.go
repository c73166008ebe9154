package crud

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/acorn/internal/anchor"
	"github.com/roach88/acorn/internal/ledger"
	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/signal"
)

// Type declares a record type.
type Type[T any] struct {
	// Name is the entry type id stored in headers and signals.
	Name string

	// Path is the index root listing every record of the type.
	Path anchor.Path

	// Singleton types allow one discoverable create under Path.
	Singleton bool

	// TrackAuthor links the author's identity hash to each created entry.
	// Ignored for singletons.
	TrackAuthor bool

	// Deletable permits Delete.
	Deletable bool
}

// Ledger is what the engine needs from the substrate.
// *ledger.Ledger implements it.
type Ledger interface {
	ledger.Reader
	AgentID() revision.AgentID
	Atomic(ctx context.Context, fn func(w ledger.Writer) error) error
}

// Result is a written revision and its notification outcome.
type Result[T any] struct {
	Element  revision.WireElement[T]
	Delivery signal.Delivery
}

// Deleted is a written delete and its notification outcome.
type Deleted struct {
	HeaderHash revision.Hash // the delete header
	Target     revision.Hash // the archived revision
	Delivery   signal.Delivery
}

type config struct {
	notifier *signal.Notifier
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*config)

// WithNotifier sets the signal notifier. Without one, nothing is sent.
func WithNotifier(n *signal.Notifier) Option {
	return func(c *config) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// Engine runs the CRUD operations of one record type.
type Engine[T any] struct {
	l   Ledger
	typ Type[T]
	config
}

// New creates an engine for typ over l.
func New[T any](l Ledger, typ Type[T], opts ...Option) *Engine[T] {
	cfg := config{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine[T]{l: l, typ: typ, config: cfg}
}

// Type returns the record type declaration.
func (e *Engine[T]) Type() Type[T] { return e.typ }

// Create writes a new record, indexes it and signals peers.
func (e *Engine[T]) Create(ctx context.Context, entry T, peers signal.PeerSource) (Result[T], error) {
	el, err := e.create(ctx, entry, e.typ.TrackAuthor && !e.typ.Singleton)
	if err != nil {
		return Result[T]{}, err
	}
	return Result[T]{Element: el, Delivery: e.notify(ctx, peers, signal.ActionCreate, el)}, nil
}

// Import writes a record that carries another author's data, for bulk
// migration. It is indexed under Path only and never signalled.
func (e *Engine[T]) Import(ctx context.Context, entry T) (revision.WireElement[T], error) {
	return e.create(ctx, entry, false)
}

func (e *Engine[T]) create(ctx context.Context, entry T, authorLink bool) (revision.WireElement[T], error) {
	data, err := revision.Encode(entry)
	if err != nil {
		return revision.WireElement[T]{}, fmt.Errorf("create %s: %w", e.typ.Name, err)
	}

	var rec revision.Record
	err = e.l.Atomic(ctx, func(w ledger.Writer) error {
		if e.typ.Singleton {
			n, err := e.countCreates(ctx, w)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrSingletonViolation
			}
		}
		if err := e.typ.Path.Ensure(ctx, w); err != nil {
			return err
		}
		rec, err = w.Create(ctx, e.typ.Name, data)
		if err != nil {
			return err
		}
		if _, err := w.CreateLink(ctx, e.typ.Path.Hash(), rec.Header.EntryHash, e.typ.Name); err != nil {
			return err
		}
		if authorLink {
			if _, err := w.CreateLink(ctx, rec.Header.Author.Hash(), rec.Header.EntryHash, e.typ.Name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return revision.WireElement[T]{}, fmt.Errorf("create %s: %w", e.typ.Name, err)
	}
	e.logger.Debug("record created", "entry_type", e.typ.Name, "header", rec.HeaderHash)
	return revision.WireElement[T]{Entry: entry, HeaderHash: rec.HeaderHash, EntryHash: rec.Header.EntryHash}, nil
}

// countCreates counts create headers of the type reachable from Path.
func (e *Engine[T]) countCreates(ctx context.Context, r ledger.Reader) (int, error) {
	links, err := e.typ.Path.FetchLinks(ctx, r, e.typ.Name)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, lk := range links {
		creates, err := r.Creates(ctx, lk.Target, e.typ.Name)
		if err != nil {
			return 0, err
		}
		n += len(creates)
	}
	return n, nil
}

// Update writes a revision superseding original with entry.
// The index is untouched; readers follow the chain.
func (e *Engine[T]) Update(ctx context.Context, original revision.Hash, entry T, peers signal.PeerSource) (Result[T], error) {
	data, err := revision.Encode(entry)
	if err != nil {
		return Result[T]{}, fmt.Errorf("update %s: %w", e.typ.Name, err)
	}

	var rec revision.Record
	err = e.l.Atomic(ctx, func(w ledger.Writer) error {
		if _, err := e.live(ctx, w, original); err != nil {
			return err
		}
		rec, err = w.Update(ctx, e.typ.Name, original, data)
		return err
	})
	if err != nil {
		return Result[T]{}, fmt.Errorf("update %s %s: %w", e.typ.Name, original, err)
	}

	el := revision.WireElement[T]{Entry: entry, HeaderHash: rec.HeaderHash, EntryHash: rec.Header.EntryHash}
	e.logger.Debug("record updated", "entry_type", e.typ.Name, "original", original, "header", rec.HeaderHash)
	return Result[T]{Element: el, Delivery: e.notify(ctx, peers, signal.ActionUpdate, el)}, nil
}

// Delete archives the record containing target.
func (e *Engine[T]) Delete(ctx context.Context, target revision.Hash, peers signal.PeerSource) (Deleted, error) {
	if !e.typ.Deletable {
		return Deleted{}, fmt.Errorf("delete %s: %w", e.typ.Name, ErrDeleteForbidden)
	}

	var rec revision.Record
	err := e.l.Atomic(ctx, func(w ledger.Writer) error {
		if _, err := e.live(ctx, w, target); err != nil {
			return err
		}
		var err error
		rec, err = w.Delete(ctx, e.typ.Name, target)
		return err
	})
	if err != nil {
		return Deleted{}, fmt.Errorf("delete %s %s: %w", e.typ.Name, target, err)
	}

	e.logger.Debug("record deleted", "entry_type", e.typ.Name, "target", target, "header", rec.HeaderHash)
	return Deleted{
		HeaderHash: rec.HeaderHash,
		Target:     target,
		Delivery:   e.notify(ctx, peers, signal.ActionDelete, target),
	}, nil
}

// live resolves a create or update header of this type.
func (e *Engine[T]) live(ctx context.Context, r ledger.Reader, h revision.Hash) (revision.Record, error) {
	rec, ok, err := r.Get(ctx, h)
	if err != nil {
		return revision.Record{}, err
	}
	if !ok {
		return revision.Record{}, ErrNotFound
	}
	if rec.Header.EntryType != e.typ.Name || rec.Header.Action == revision.ActionDelete {
		return revision.Record{}, fmt.Errorf("%w: %s %s", ErrEntryTypeMismatch, rec.Header.EntryType, rec.Header.Action)
	}
	return rec, nil
}

// Exists reports whether the type's path anchor is known locally.
func (e *Engine[T]) Exists(ctx context.Context) (bool, error) {
	return e.typ.Path.Exists(ctx, e.l)
}

func (e *Engine[T]) notify(ctx context.Context, peers signal.PeerSource, action signal.ActionType, data any) signal.Delivery {
	if e.notifier == nil || peers == nil {
		return signal.Delivery{}
	}
	s, err := signal.New(e.typ.Name, action, data)
	if err != nil {
		e.logger.Warn("build signal", "entry_type", e.typ.Name, "error", err)
		return signal.Delivery{Attempted: true, Err: err}
	}
	return e.notifier.Notify(ctx, peers, s)
}
