// Package signal builds and delivers change notifications to peers.
//
// A signal travels in two layers. The inner layer is the domain Signal as
// canonical JSON. The outer layer is a transport Envelope carrying the inner
// bytes as an opaque payload. Receivers Unwrap, then Decode. The layers
// evolve independently: transport framing never changes the signal schema.
package signal

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/acorn/internal/revision"
)

// ActionType names the change a signal announces.
type ActionType string

const (
	ActionCreate ActionType = "Create"
	ActionUpdate ActionType = "Update"
	ActionDelete ActionType = "Delete"
)

// Signal is the inner, domain-level payload.
//
// Data is a WireElement for Create and Update and the deleted header
// address for Delete.
type Signal struct {
	EntryType string          `json:"entry_type"`
	Action    ActionType      `json:"action"`
	Data      json.RawMessage `json:"data"`
}

// New builds a signal with data encoded as canonical JSON.
func New(entryType string, action ActionType, data any) (Signal, error) {
	raw, err := revision.Encode(data)
	if err != nil {
		return Signal{}, fmt.Errorf("signal data: %w", err)
	}
	return Signal{EntryType: entryType, Action: action, Data: raw}, nil
}

// DecodeData decodes the signal data into v.
func (s Signal) DecodeData(v any) error {
	if err := json.Unmarshal(s.Data, v); err != nil {
		return fmt.Errorf("signal data: %w", err)
	}
	return nil
}

// Encode serializes the inner layer.
func Encode(s Signal) ([]byte, error) {
	switch s.Action {
	case ActionCreate, ActionUpdate, ActionDelete:
	default:
		return nil, fmt.Errorf("encode signal: unknown action %q", s.Action)
	}
	b, err := revision.Encode(s)
	if err != nil {
		return nil, fmt.Errorf("encode signal: %w", err)
	}
	return b, nil
}

// Decode parses the inner layer.
func Decode(b []byte) (Signal, error) {
	var s Signal
	if err := revision.Decode(b, &s); err != nil {
		return Signal{}, fmt.Errorf("decode signal: %w", err)
	}
	return s, nil
}

// Envelope is the outer, transport-level layer.
type Envelope struct {
	Payload []byte `json:"payload"`
}

// Wrap places inner bytes in an outer envelope.
func Wrap(inner []byte) ([]byte, error) {
	b, err := json.Marshal(Envelope{Payload: inner})
	if err != nil {
		return nil, fmt.Errorf("wrap signal: %w", err)
	}
	return b, nil
}

// Unwrap extracts the inner bytes from an outer envelope.
func Unwrap(outer []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(outer, &env); err != nil {
		return nil, fmt.Errorf("unwrap signal: %w", err)
	}
	if len(env.Payload) == 0 {
		return nil, fmt.Errorf("unwrap signal: empty payload")
	}
	return env.Payload, nil
}

// Pack encodes s and wraps it.
func Pack(s Signal) ([]byte, error) {
	inner, err := Encode(s)
	if err != nil {
		return nil, err
	}
	return Wrap(inner)
}

// Unpack unwraps and decodes a received payload.
func Unpack(outer []byte) (Signal, error) {
	inner, err := Unwrap(outer)
	if err != nil {
		return Signal{}, err
	}
	return Decode(inner)
}
