package validate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/acorn/internal/revision"
)

// Kind is the three-way validation result.
type Kind int

const (
	Valid Kind = iota
	Invalid
	Unresolved
)

func (k Kind) String() string {
	switch k {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Unresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reason names why a revision was rejected.
type Reason string

const (
	ReasonDeserializationFailed  Reason = "DESERIALIZATION_FAILED"
	ReasonEditableFieldsViolated Reason = "EDITABLE_FIELDS_VIOLATED"
	ReasonUpdateForbidden        Reason = "UPDATE_FORBIDDEN"
	ReasonDeleteForbidden        Reason = "DELETE_FORBIDDEN"
	ReasonAuthorMismatch         Reason = "AUTHOR_MISMATCH"
	ReasonDependencyMissing      Reason = "DEPENDENCY_MISSING"
	ReasonEntryTypeMismatch      Reason = "ENTRY_TYPE_MISMATCH"
	ReasonUnknownEntryType       Reason = "UNKNOWN_ENTRY_TYPE"
	ReasonCorruptHeader          Reason = "CORRUPT_HEADER"
	ReasonBadSignature           Reason = "BAD_SIGNATURE"
)

// Outcome is the typed result of one validation call.
type Outcome struct {
	Kind    Kind            `json:"kind"`
	Reason  Reason          `json:"reason,omitempty"`
	Detail  string          `json:"detail,omitempty"`
	Missing []revision.Hash `json:"missing,omitempty"`
}

// Accept returns a Valid outcome.
func Accept() Outcome { return Outcome{Kind: Valid} }

// Reject returns an Invalid outcome.
func Reject(reason Reason, detail string) Outcome {
	return Outcome{Kind: Invalid, Reason: reason, Detail: detail}
}

// Defer returns an Unresolved outcome naming the missing revisions.
func Defer(missing ...revision.Hash) Outcome {
	return Outcome{Kind: Unresolved, Missing: missing}
}

// IsValid reports whether the outcome accepts the revision.
func (o Outcome) IsValid() bool { return o.Kind == Valid }

func (o Outcome) String() string {
	switch o.Kind {
	case Invalid:
		if o.Detail != "" {
			return fmt.Sprintf("invalid(%s: %s)", o.Reason, o.Detail)
		}
		return fmt.Sprintf("invalid(%s)", o.Reason)
	case Unresolved:
		hs := make([]string, len(o.Missing))
		for i, h := range o.Missing {
			hs[i] = string(h)
		}
		return fmt.Sprintf("unresolved(%s)", strings.Join(hs, ","))
	default:
		return o.Kind.String()
	}
}

// Rejection is returned by the substrate when a locally authored revision
// does not validate. The write is not committed.
type Rejection struct {
	EntryType string
	Action    revision.Action
	Outcome   Outcome
}

func (e *Rejection) Error() string {
	return fmt.Sprintf("%s %s rejected: %s", e.EntryType, e.Action, e.Outcome)
}

// IsRejected reports whether err is a Rejection with the given reason.
// An empty reason matches any rejection.
func IsRejected(err error, reason Reason) bool {
	var r *Rejection
	if !errors.As(err, &r) {
		return false
	}
	return reason == "" || r.Outcome.Reason == reason
}
