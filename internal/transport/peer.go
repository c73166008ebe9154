package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/acorn/internal/revision"
)

type peer struct {
	id   revision.AgentID
	wc   *websocket.Conn
	send chan Frame
	done chan struct{}
	once sync.Once
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		p.wc.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		p.wc.Close()
	})
}

// readLoop delivers signal frames until the connection fails.
func (p *peer) readLoop(ctx context.Context, n *Network) {
	defer n.drop(p)
	for {
		op, b, err := p.wc.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				select {
				case <-p.done:
				default:
					n.logger.Debug("peer read failed", "peer", p.id, "error", err)
				}
			}
			return
		}
		if op != websocket.TextMessage {
			continue
		}
		var f Frame
		if err := json.Unmarshal(b, &f); err != nil {
			n.logger.Warn("malformed frame", "peer", p.id, "error", err)
			continue
		}
		if f.Kind != KindSignal || f.From != p.id {
			n.logger.Warn("unexpected frame", "peer", p.id, "kind", f.Kind, "from", f.From)
			continue
		}
		if n.handler != nil {
			n.handler(ctx, p.id, f.Payload)
		}
	}
}

func (p *peer) writeLoop(n *Network) {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case f := <-p.send:
			b, err := json.Marshal(f)
			if err != nil {
				n.logger.Error("encode frame", "peer", p.id, "error", err)
				continue
			}
			p.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.wc.WriteMessage(websocket.TextMessage, b); err != nil {
				n.drop(p)
				return
			}
		case <-t.C:
			p.wc.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := p.wc.WriteMessage(websocket.PingMessage, nil); err != nil {
				n.drop(p)
				return
			}
		case <-p.done:
			return
		}
	}
}
