package validate

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/acorn/internal/revision"
)

// Resolver reads locally available revisions during validation.
// Implemented by the ledger's readers.
type Resolver interface {
	Get(ctx context.Context, header revision.Hash) (revision.Record, bool, error)
}

// Validator holds the three per-record-type entry points.
type Validator interface {
	ValidateCreate(ctx context.Context, rec revision.Record, r Resolver) Outcome
	ValidateUpdate(ctx context.Context, rec revision.Record, r Resolver) Outcome
	ValidateDelete(ctx context.Context, rec revision.Record, r Resolver) Outcome
}

// Registry is the lookup table of validators keyed by entry type.
// It is the single callback the substrate invokes on acceptance.
type Registry struct {
	mu         sync.RWMutex
	validators map[string]Validator
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{validators: make(map[string]Validator)}
}

// Register adds the validator for an entry type.
// Registering the same entry type twice is an error.
func (reg *Registry) Register(entryType string, v Validator) error {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if _, dup := reg.validators[entryType]; dup {
		return fmt.Errorf("validator for %q already registered", entryType)
	}
	reg.validators[entryType] = v
	return nil
}

// EntryTypes returns registered entry types in sorted order.
func (reg *Registry) EntryTypes() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]string, 0, len(reg.validators))
	for k := range reg.validators {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate dispatches rec to its entry type's validator by header action.
func (reg *Registry) Validate(ctx context.Context, rec revision.Record, r Resolver) Outcome {
	reg.mu.RLock()
	v, ok := reg.validators[rec.Header.EntryType]
	reg.mu.RUnlock()
	if !ok {
		return Reject(ReasonUnknownEntryType, rec.Header.EntryType)
	}

	switch rec.Header.Action {
	case revision.ActionCreate:
		return v.ValidateCreate(ctx, rec, r)
	case revision.ActionUpdate:
		return v.ValidateUpdate(ctx, rec, r)
	case revision.ActionDelete:
		return v.ValidateDelete(ctx, rec, r)
	default:
		return Reject(ReasonCorruptHeader, fmt.Sprintf("unknown action %q", rec.Header.Action))
	}
}
