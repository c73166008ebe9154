package testutil

import (
	"context"
	"sync"

	"github.com/roach88/acorn/internal/revision"
)

// Sent is one recorded send call.
type Sent struct {
	Payload []byte
	Peers   []revision.AgentID
}

// RecordingSender records every send and optionally fails it.
// It satisfies signal.Sender.
type RecordingSender struct {
	mu   sync.Mutex
	sent []Sent
	Err  error
}

// Send records the payload and returns Err.
func (s *RecordingSender) Send(_ context.Context, payload []byte, peers []revision.AgentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, Sent{
		Payload: append([]byte(nil), payload...),
		Peers:   append([]revision.AgentID(nil), peers...),
	})
	return s.Err
}

// Sent returns a copy of the recorded calls.
func (s *RecordingSender) Sent() []Sent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sent(nil), s.sent...)
}
