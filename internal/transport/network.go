// Package transport is a websocket peer mesh for delivering signal
// payloads between agents.
//
// Every connection opens with a challenge-response handshake. Each side
// sends a fresh nonce, and each answers the other's nonce with a hello
// signing the nonce and both AgentIDs. After the handshake, signal frames
// carry opaque payloads; the mesh never looks inside them.
package transport

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roach88/acorn/internal/revision"
)

const (
	nonceSize        = 32
	writeTimeout     = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	pingInterval     = 60 * time.Second
	sendBuffer       = 32
)

// Frame kinds.
const (
	KindChallenge = "challenge"
	KindHello     = "hello"
	KindSignal    = "signal"
)

var (
	// ErrNotConnected is returned for a peer with no open connection.
	ErrNotConnected = errors.New("peer not connected")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("network closed")
)

// Frame is one websocket text message.
type Frame struct {
	ID      string           `json:"id"`
	Kind    string           `json:"kind"`
	From    revision.AgentID `json:"from"`
	Payload []byte           `json:"payload,omitempty"`
}

// Handler receives signal payloads from connected peers.
type Handler func(ctx context.Context, from revision.AgentID, payload []byte)

// Network is the set of live peer connections for one agent.
type Network struct {
	key      ed25519.PrivateKey
	self     revision.AgentID
	handler  Handler
	logger   *slog.Logger
	upgrader websocket.Upgrader
	dialer   *websocket.Dialer

	mu     sync.RWMutex
	peers  map[revision.AgentID]*peer
	closed bool
}

// Option configures a Network.
type Option func(*Network)

// WithHandler sets the receiver for incoming signal payloads.
func WithHandler(h Handler) Option {
	return func(n *Network) { n.handler = h }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(n *Network) { n.logger = logger }
}

// New creates a network for the agent owning key.
func New(key ed25519.PrivateKey, opts ...Option) *Network {
	n := &Network{
		key:    key,
		self:   revision.NewAgentID(key.Public().(ed25519.PublicKey)),
		logger: slog.Default(),
		dialer: websocket.DefaultDialer,
		peers:  make(map[revision.AgentID]*peer),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Self returns the local agent identity.
func (n *Network) Self() revision.AgentID { return n.self }

// ServeHTTP accepts an inbound peer connection.
func (n *Network) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	wc, err := n.upgrader.Upgrade(w, r, nil)
	if err != nil {
		n.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	id, theirs, err := n.acceptHandshake(wc)
	if err != nil {
		n.logger.Warn("peer handshake failed", "remote", r.RemoteAddr, "error", err)
		wc.Close()
		return
	}
	p, err := n.register(id, wc)
	if err != nil {
		wc.Close()
		return
	}
	if err := n.writeHello(wc, theirs, id); err != nil {
		n.drop(p)
		return
	}
	go p.writeLoop(n)
	p.readLoop(r.Context(), n)
}

// Dial connects to a peer's websocket endpoint and completes the handshake.
// It returns the remote AgentID.
func (n *Network) Dial(ctx context.Context, url string) (revision.AgentID, error) {
	wc, _, err := n.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", url, err)
	}
	id, err := n.dialHandshake(wc)
	if err != nil {
		wc.Close()
		return "", fmt.Errorf("dial %s: %w", url, err)
	}
	p, err := n.register(id, wc)
	if err != nil {
		wc.Close()
		return "", err
	}
	go p.writeLoop(n)
	go p.readLoop(context.WithoutCancel(ctx), n)
	return id, nil
}

// Send queues payload for each peer. A peer with no connection, or whose
// queue is full, is an error for that peer only; the rest are still sent.
func (n *Network) Send(ctx context.Context, payload []byte, peers []revision.AgentID) error {
	var errs []error
	for _, id := range peers {
		n.mu.RLock()
		p, ok := n.peers[id]
		closed := n.closed
		n.mu.RUnlock()
		if closed {
			return ErrClosed
		}
		if !ok {
			errs = append(errs, fmt.Errorf("send to %s: %w", id, ErrNotConnected))
			continue
		}
		f := Frame{ID: newFrameID(), Kind: KindSignal, From: n.self, Payload: payload}
		select {
		case p.send <- f:
		case <-p.done:
			errs = append(errs, fmt.Errorf("send to %s: %w", id, ErrNotConnected))
		case <-ctx.Done():
			return ctx.Err()
		default:
			errs = append(errs, fmt.Errorf("send to %s: queue full", id))
		}
	}
	return errors.Join(errs...)
}

// Online lists connected peers in sorted order. It has the shape of a
// signal.PeerSource.
func (n *Network) Online(context.Context) ([]revision.AgentID, error) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	ids := make([]revision.AgentID, 0, len(n.peers))
	for id := range n.peers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Close disconnects every peer. Further sends fail with ErrClosed.
func (n *Network) Close() error {
	n.mu.Lock()
	n.closed = true
	peers := n.peers
	n.peers = make(map[revision.AgentID]*peer)
	n.mu.Unlock()

	for _, p := range peers {
		p.close()
	}
	return nil
}

func (n *Network) register(id revision.AgentID, wc *websocket.Conn) (*peer, error) {
	p := &peer{id: id, wc: wc, send: make(chan Frame, sendBuffer), done: make(chan struct{})}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil, ErrClosed
	}
	old := n.peers[id]
	n.peers[id] = p
	n.mu.Unlock()

	if old != nil {
		old.close()
	}
	n.logger.Debug("peer connected", "peer", id)
	return p, nil
}

// drop unregisters p if it is still the current connection for its peer.
func (n *Network) drop(p *peer) {
	n.mu.Lock()
	if n.peers[p.id] == p {
		delete(n.peers, p.id)
	}
	n.mu.Unlock()
	p.close()
	n.logger.Debug("peer disconnected", "peer", p.id)
}

// acceptHandshake runs the listening side up to the dialler's verified
// hello. It returns the dialler's challenge for the listener to answer.
func (n *Network) acceptHandshake(wc *websocket.Conn) (revision.AgentID, Frame, error) {
	nonce, err := n.writeChallenge(wc)
	if err != nil {
		return "", Frame{}, err
	}
	theirs, err := n.readChallenge(wc)
	if err != nil {
		return "", Frame{}, err
	}
	id, err := n.readHello(wc, nonce)
	if err != nil {
		return "", Frame{}, err
	}
	return id, theirs, nil
}

// dialHandshake runs the dialling side of the handshake. The dialler
// answers first, so the listener has registered it by the time the
// listener's hello arrives.
func (n *Network) dialHandshake(wc *websocket.Conn) (revision.AgentID, error) {
	nonce, err := n.writeChallenge(wc)
	if err != nil {
		return "", err
	}
	theirs, err := n.readChallenge(wc)
	if err != nil {
		return "", err
	}
	if err := n.writeHello(wc, theirs, theirs.From); err != nil {
		return "", err
	}
	return n.readHello(wc, nonce)
}

// helloMessage is what a hello signs: the challenger's nonce and both ends
// of the connection.
func helloMessage(nonce []byte, from, to revision.AgentID) []byte {
	var b bytes.Buffer
	b.WriteString("acorn/hello/v1")
	b.WriteByte(0)
	b.Write(nonce)
	b.WriteString(string(from))
	b.WriteByte(0)
	b.WriteString(string(to))
	return b.Bytes()
}

// writeChallenge sends a fresh nonce and returns it.
func (n *Network) writeChallenge(wc *websocket.Conn) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	if err := writeFrame(wc, Frame{ID: newFrameID(), Kind: KindChallenge, From: n.self, Payload: nonce}); err != nil {
		return nil, fmt.Errorf("challenge: %w", err)
	}
	return nonce, nil
}

// readChallenge reads the peer's nonce.
func (n *Network) readChallenge(wc *websocket.Conn) (Frame, error) {
	f, err := readFrame(wc, KindChallenge)
	if err != nil {
		return Frame{}, fmt.Errorf("read challenge: %w", err)
	}
	if len(f.Payload) != nonceSize {
		return Frame{}, fmt.Errorf("read challenge: nonce is %d bytes", len(f.Payload))
	}
	return f, nil
}

// writeHello answers the peer's challenge.
func (n *Network) writeHello(wc *websocket.Conn, challenge Frame, to revision.AgentID) error {
	sig := ed25519.Sign(n.key, helloMessage(challenge.Payload, n.self, to))
	if err := writeFrame(wc, Frame{ID: newFrameID(), Kind: KindHello, From: n.self, Payload: sig}); err != nil {
		return fmt.Errorf("hello: %w", err)
	}
	return nil
}

// readHello reads the peer's hello and checks it answers nonce.
func (n *Network) readHello(wc *websocket.Conn, nonce []byte) (revision.AgentID, error) {
	f, err := readFrame(wc, KindHello)
	if err != nil {
		return "", fmt.Errorf("read hello: %w", err)
	}
	pub, err := f.From.PublicKey()
	if err != nil {
		return "", fmt.Errorf("read hello: %w", err)
	}
	if !ed25519.Verify(pub, helloMessage(nonce, f.From, n.self), f.Payload) {
		return "", fmt.Errorf("read hello: bad signature from %s", f.From)
	}
	if f.From == n.self {
		return "", fmt.Errorf("read hello: connected to self")
	}
	return f.From, nil
}

func writeFrame(wc *websocket.Conn, f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	wc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return wc.WriteMessage(websocket.TextMessage, b)
}

func readFrame(wc *websocket.Conn, kind string) (Frame, error) {
	wc.SetReadDeadline(time.Now().Add(handshakeTimeout))
	defer wc.SetReadDeadline(time.Time{})

	_, b, err := wc.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	var f Frame
	if err := json.Unmarshal(b, &f); err != nil {
		return Frame{}, err
	}
	if f.Kind != kind {
		return Frame{}, fmt.Errorf("unexpected %q frame", f.Kind)
	}
	return f, nil
}

func newFrameID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
