package revision

import (
	"crypto/ed25519"
	"errors"
	"fmt"
)

// Action is the operation kind recorded by a header.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ValidActions defines allowed header actions.
var ValidActions = map[Action]bool{
	ActionCreate: true,
	ActionUpdate: true,
	ActionDelete: true,
}

var (
	// ErrCorruptHeader is returned when a record's header hash does not match its header.
	ErrCorruptHeader = errors.New("header hash does not match header")

	// ErrEntryHashMismatch is returned when entry bytes do not match the header's entry hash.
	ErrEntryHashMismatch = errors.New("entry bytes do not match entry hash")

	// ErrBadSignature is returned when the signature was not made by the header author.
	ErrBadSignature = errors.New("signature does not verify against author")
)

// Header is the metadata of one write.
//
// Seq and Prev chain the author's local history: Seq starts at 1 and Prev is
// the address of the author's previous header. OriginalHeader is set for
// update and delete and names the revision being superseded or archived.
type Header struct {
	Author         AgentID `json:"author"`
	Seq            int64   `json:"seq"`
	Prev           Hash    `json:"prev,omitempty"`
	Action         Action  `json:"action"`
	EntryType      string  `json:"entry_type"`
	EntryHash      Hash    `json:"entry_hash,omitempty"`
	OriginalHeader Hash    `json:"original_header,omitempty"`
	Timestamp      int64   `json:"timestamp"` // unix milliseconds, author's clock
}

// Hash computes the header address from its canonical form.
func (h Header) Hash() (Hash, error) {
	data, err := Encode(h)
	if err != nil {
		return "", fmt.Errorf("header hash: %w", err)
	}
	return hashWithDomain(DomainHeader, data), nil
}

// Record is a signed header together with its entry bytes.
// Entry is empty for delete headers.
type Record struct {
	Header     Header `json:"header"`
	HeaderHash Hash   `json:"header_hash"`
	Signature  []byte `json:"signature"`
	Entry      []byte `json:"entry,omitempty"`
}

// Seal addresses and signs a header with the author's key.
func Seal(key ed25519.PrivateKey, h Header, entry []byte) (Record, error) {
	hash, err := h.Hash()
	if err != nil {
		return Record{}, err
	}
	return Record{
		Header:     h,
		HeaderHash: hash,
		Signature:  ed25519.Sign(key, []byte(hash)),
		Entry:      entry,
	}, nil
}

// Verify checks the record's integrity: header address, entry hash and
// author signature. It does not apply any record-type policy.
func (r Record) Verify() error {
	if !ValidActions[r.Header.Action] {
		return fmt.Errorf("%w: unknown action %q", ErrCorruptHeader, r.Header.Action)
	}
	hash, err := r.Header.Hash()
	if err != nil {
		return err
	}
	if hash != r.HeaderHash {
		return ErrCorruptHeader
	}
	if r.Header.Action != ActionDelete && HashEntry(r.Entry) != r.Header.EntryHash {
		return ErrEntryHashMismatch
	}
	pub, err := r.Header.Author.PublicKey()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	if !ed25519.Verify(pub, []byte(r.HeaderHash), r.Signature) {
		return ErrBadSignature
	}
	return nil
}
