package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/metrics"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/transport"
)

// HostPeerID is the stable id a guest uses to address its only peer.
const HostPeerID = "host"

const handshakeTimeout = 10 * time.Second

// Client is the guest side of the mesh: one link to the host, implementing
// the same transport.Peer contract the host serves many of.
type Client struct {
	logger          *slog.Logger
	codec           *protocol.Codec
	maxMessageBytes int

	mu   sync.Mutex
	peer *conn

	onMessage      transport.MessageHandler
	onConnected    transport.PeerHandler
	onDisconnected transport.PeerHandler
}

func NewClient(logger *slog.Logger, codec *protocol.Codec, maxMessageBytes int) *Client {
	return &Client{
		logger:          logger.With("component", "ws-client"),
		codec:           codec,
		maxMessageBytes: maxMessageBytes,
	}
}

func (that *Client) OnMessage(fn transport.MessageHandler)       { that.onMessage = fn }
func (that *Client) OnPeerConnected(fn transport.PeerHandler)    { that.onConnected = fn }
func (that *Client) OnPeerDisconnected(fn transport.PeerHandler) { that.onDisconnected = fn }

// Dial - connects to the host. ctx bounds the whole handshake; a host that
// refused us for capacity surfaces as ErrSessionFull so callers do not
// retry into a full session.
func (that *Client) Dial(ctx context.Context, url string) error {
	dialer := websocket.Dialer{HandshakeTimeout: handshakeTimeout}

	sock, resp, err := dialer.DialContext(ctx, url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusServiceUnavailable {
			return apperror.ErrSessionFull
		}
		return fmt.Errorf("failed to dial %s: %w", url, err)
	}

	peer := newConn(HostPeerID, sock)

	that.mu.Lock()
	old := that.peer
	that.peer = peer
	that.mu.Unlock()
	if old != nil {
		old.close()
	}

	that.logger.Info("connected to host", "url", url)

	go peer.writePump()
	go that.readLoop(peer)

	if fn := that.onConnected; fn != nil {
		fn(HostPeerID)
	}
	return nil
}

func (that *Client) readLoop(peer *conn) {
	defer that.drop(peer)

	peer.readPump(int64(that.maxMessageBytes), func(data []byte, binary bool) {
		env, err := that.codec.Decode(data, binary)
		if err != nil {
			that.logger.Warn("dropping malformed message", "error", err)
			return
		}
		metrics.MessagesReceived.WithLabelValues(env.Type).Inc()

		if fn := that.onMessage; fn != nil {
			fn(HostPeerID, env)
		}
	})
}

func (that *Client) drop(peer *conn) {
	that.mu.Lock()
	current := that.peer == peer
	if current {
		that.peer = nil
	}
	that.mu.Unlock()

	peer.close()
	if !current {
		return
	}
	that.logger.Info("disconnected from host")

	if fn := that.onDisconnected; fn != nil {
		fn(HostPeerID)
	}
}

// Send - the guest has exactly one peer, so any id addresses the host.
func (that *Client) Send(_ string, env *protocol.Envelope) bool {
	data, isBinary, err := that.codec.Encode(env)
	if err != nil {
		that.logger.Error("failed to encode message", "type", env.Type, "error", err)
		return false
	}

	that.mu.Lock()
	peer := that.peer
	that.mu.Unlock()
	if peer == nil {
		return false
	}

	if !peer.enqueue(frame{data: data, binary: isBinary}) {
		that.logger.Warn("send buffer to host is full, dropping message", "type", env.Type)
		return false
	}

	metrics.MessagesSent.WithLabelValues(env.Type).Inc()
	return true
}

func (that *Client) Broadcast(env *protocol.Envelope, excludePeerID string) int {
	if excludePeerID == HostPeerID {
		return 0
	}
	if that.Send(HostPeerID, env) {
		return 1
	}
	return 0
}

// Connected - reports whether a live link to the host exists.
func (that *Client) Connected() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.peer != nil
}

func (that *Client) Close() error {
	that.mu.Lock()
	peer := that.peer
	that.peer = nil
	that.mu.Unlock()

	if peer != nil {
		peer.close()
	}
	return nil
}
