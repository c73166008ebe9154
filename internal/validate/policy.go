package validate

import (
	"bytes"
	"context"
	"fmt"

	"github.com/roach88/acorn/internal/revision"
	"github.com/roach88/acorn/internal/schema"
)

// Policy declares the validation rules of one record type.
// A Policy is a Validator; register it with Registry.Register.
type Policy[T any] struct {
	// EntryType is the entry type id the policy governs.
	EntryType string

	// Schema and Definition optionally check entry bytes against a CUE
	// definition before decoding.
	Schema     *schema.Schema
	Definition string

	// ForeignKeys returns header hashes the entry references. Each must be
	// resolvable at create time; a missing one is Invalid, not Unresolved.
	ForeignKeys func(entry T) []revision.Hash

	// Author returns the entry's self-reported author and whether the entry
	// is flagged imported. When set, a non-imported entry's author must equal
	// the header author.
	Author func(entry T) (author revision.AgentID, imported bool)

	// AllowUpdate permits update headers. Immutable lists the JSON field
	// names that must not change across an update.
	AllowUpdate bool
	Immutable   []string

	// AllowDelete permits delete headers.
	AllowDelete bool
}

var _ Validator = Policy[struct{}]{}

// Decode checks data against the schema and decodes it as T.
func (p Policy[T]) Decode(data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, fmt.Errorf("entry missing")
	}
	if p.Schema != nil {
		if err := p.Schema.Check(p.Definition, data); err != nil {
			return v, err
		}
	}
	if err := revision.Decode(data, &v); err != nil {
		return v, err
	}
	return v, nil
}

// ValidateCreate applies, in order: deserialization, foreign keys, author.
func (p Policy[T]) ValidateCreate(ctx context.Context, rec revision.Record, r Resolver) Outcome {
	entry, err := p.Decode(rec.Entry)
	if err != nil {
		return Reject(ReasonDeserializationFailed, err.Error())
	}

	if p.ForeignKeys != nil {
		for _, fk := range p.ForeignKeys(entry) {
			_, ok, err := r.Get(ctx, fk)
			if err != nil {
				return Defer(fk)
			}
			if !ok {
				return Reject(ReasonDependencyMissing, string(fk))
			}
		}
	}

	if p.Author != nil {
		author, imported := p.Author(entry)
		if !imported && author != rec.Header.Author {
			return Reject(ReasonAuthorMismatch, fmt.Sprintf("entry names %s, header author is %s", author, rec.Header.Author))
		}
	}

	return Accept()
}

// ValidateUpdate applies, in order: update permission, deserialization,
// original resolution, immutable field comparison.
func (p Policy[T]) ValidateUpdate(ctx context.Context, rec revision.Record, r Resolver) Outcome {
	if !p.AllowUpdate {
		return Reject(ReasonUpdateForbidden, "")
	}
	if _, err := p.Decode(rec.Entry); err != nil {
		return Reject(ReasonDeserializationFailed, err.Error())
	}

	origHash := rec.Header.OriginalHeader
	orig, ok, err := r.Get(ctx, origHash)
	if err != nil || !ok {
		return Defer(origHash)
	}
	if orig.Header.EntryType != p.EntryType || orig.Header.Action == revision.ActionDelete {
		return Reject(ReasonEntryTypeMismatch, fmt.Sprintf("original is %s %s", orig.Header.EntryType, orig.Header.Action))
	}

	if len(p.Immutable) == 0 {
		return Accept()
	}
	changed, err := changedFields(orig.Entry, rec.Entry, p.Immutable)
	if err != nil {
		return Reject(ReasonDeserializationFailed, err.Error())
	}
	if len(changed) > 0 {
		return Reject(ReasonEditableFieldsViolated, fmt.Sprintf("immutable fields changed: %v", changed))
	}
	return Accept()
}

// ValidateDelete applies, in order: delete permission, then resolution of
// the deleted revision, which must be a create or update of this type.
func (p Policy[T]) ValidateDelete(ctx context.Context, rec revision.Record, r Resolver) Outcome {
	if !p.AllowDelete {
		return Reject(ReasonDeleteForbidden, "")
	}

	origHash := rec.Header.OriginalHeader
	orig, ok, err := r.Get(ctx, origHash)
	if err != nil || !ok {
		return Defer(origHash)
	}
	if orig.Header.EntryType != p.EntryType || orig.Header.Action == revision.ActionDelete {
		return Reject(ReasonEntryTypeMismatch, fmt.Sprintf("deleted revision is %s %s", orig.Header.EntryType, orig.Header.Action))
	}
	return Accept()
}

// changedFields returns the named fields whose canonical values differ.
// An absent field only equals another absent field.
func changedFields(before, after []byte, names []string) ([]string, error) {
	bf, err := revision.Fields(before)
	if err != nil {
		return nil, err
	}
	af, err := revision.Fields(after)
	if err != nil {
		return nil, err
	}
	var changed []string
	for _, name := range names {
		b, bok := bf[name]
		a, aok := af[name]
		if bok != aok || !bytes.Equal(b, a) {
			changed = append(changed, name)
		}
	}
	return changed, nil
}
