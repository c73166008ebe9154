package signal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/acorn/internal/metrics"
	"github.com/roach88/acorn/internal/revision"
)

// PeerSource resolves who should receive a signal. The engine never
// decides this itself; callers pass "online peers", "interested peers" or
// a fixed list.
type PeerSource func(ctx context.Context) ([]revision.AgentID, error)

// Peers returns a PeerSource for a fixed list.
func Peers(ids ...revision.AgentID) PeerSource {
	return func(context.Context) ([]revision.AgentID, error) {
		return ids, nil
	}
}

// Sender delivers an outer payload to peers. Implemented by transport.Network.
type Sender interface {
	Send(ctx context.Context, payload []byte, peers []revision.AgentID) error
}

// Delivery is the immediate outcome of one notification attempt.
// It is informational: a failed delivery never undoes the local write.
type Delivery struct {
	Attempted bool
	Peers     []revision.AgentID
	Err       error
}

// OK reports whether the attempt, if any, reached every peer.
func (d Delivery) OK() bool { return d.Err == nil }

// Notifier is the fire-and-forget signal sender.
type Notifier struct {
	sender  Sender
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) { n.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// NewNotifier creates a notifier over sender.
func NewNotifier(sender Sender, opts ...Option) *Notifier {
	n := &Notifier{sender: sender, logger: slog.Default()}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify resolves peers and sends s once. A nil notifier or nil source
// sends nothing. Failures are logged and returned in the Delivery, never
// retried.
func (n *Notifier) Notify(ctx context.Context, peers PeerSource, s Signal) Delivery {
	if n == nil || peers == nil {
		return Delivery{}
	}

	ids, err := peers(ctx)
	if err != nil {
		n.logger.Warn("resolve signal peers", "entry_type", s.EntryType, "error", err)
		return Delivery{Attempted: true, Err: fmt.Errorf("resolve peers: %w", err)}
	}
	d := Delivery{Attempted: true, Peers: ids}
	if len(ids) == 0 {
		return d
	}

	payload, err := Pack(s)
	if err != nil {
		d.Err = err
		return d
	}
	if err := n.sender.Send(ctx, payload, ids); err != nil {
		d.Err = err
		n.logger.Warn("signal send failed",
			"entry_type", s.EntryType,
			"action", s.Action,
			"peers", len(ids),
			"error", err,
		)
	} else {
		n.logger.Debug("signal sent", "entry_type", s.EntryType, "action", s.Action, "peers", len(ids))
	}
	for range ids {
		n.metrics.Signal(s.EntryType, string(s.Action), d.Err == nil)
	}
	return d
}
