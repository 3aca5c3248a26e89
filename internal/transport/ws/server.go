package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/metrics"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/transport"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/pkg/handlers"
)

const shutdownTimeout = 5 * time.Second

// Server accepts peer connections on the host side and implements
// transport.Peer over them. Peers past the capacity cap are refused before
// the upgrade, they never become part of the session.
type Server struct {
	logger          *slog.Logger
	codec           *protocol.Codec
	maxPeers        int
	maxMessageBytes int

	mu       sync.RWMutex
	conns    map[string]*conn
	upgrades int

	onMessage      transport.MessageHandler
	onConnected    transport.PeerHandler
	onDisconnected transport.PeerHandler

	httpServer *http.Server
	upgrader   websocket.Upgrader
}

func NewServer(logger *slog.Logger, codec *protocol.Codec, maxPeers, maxMessageBytes int) *Server {
	return &Server{
		logger:          logger.With("component", "ws-server"),
		codec:           codec,
		maxPeers:        maxPeers,
		maxMessageBytes: maxMessageBytes,
		conns:           make(map[string]*conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// peers connect from app shells and local files, the origin
			// header is not a trust boundary here
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (that *Server) OnMessage(fn transport.MessageHandler)       { that.onMessage = fn }
func (that *Server) OnPeerConnected(fn transport.PeerHandler)    { that.onConnected = fn }
func (that *Server) OnPeerDisconnected(fn transport.PeerHandler) { that.onDisconnected = fn }

// Start - serves the peer endpoint until ctx is done, then shuts down
// gracefully.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.handleUpgrade)
	mux.HandleFunc("/ping", handlers.PingHandler)
	mux.Handle("/metrics", promhttp.Handler())

	that.httpServer = &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := that.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	that.logger.Info("listening for peers", "port", port)

	select {
	case <-ctx.Done():
		return that.Close()
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
}

func (that *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "handleUpgrade")

	if !that.reserveSlot() {
		log.Warn("refusing peer, session is full", "max_peers", that.maxPeers)
		http.Error(w, "session is full", http.StatusServiceUnavailable)
		return
	}

	sock, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		that.releaseSlot()
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	peer := newConn(uuid.NewString(), sock)

	that.mu.Lock()
	that.conns[peer.id] = peer
	that.upgrades--
	that.mu.Unlock()
	metrics.ConnectedPeers.Inc()

	log.Info("peer connected", "peer_id", peer.id, "remote", r.RemoteAddr)

	if fn := that.onConnected; fn != nil {
		fn(peer.id)
	}

	go peer.writePump()
	go that.readLoop(peer)
}

func (that *Server) readLoop(peer *conn) {
	defer that.drop(peer, "")

	peer.readPump(int64(that.maxMessageBytes), func(data []byte, binary bool) {
		env, err := that.codec.Decode(data, binary)
		if err != nil {
			that.logger.Warn("dropping malformed message", "peer_id", peer.id, "error", err)
			return
		}
		// the transport owns sender identity, whatever the peer claimed
		env.SenderID = peer.id
		metrics.MessagesReceived.WithLabelValues(env.Type).Inc()

		if fn := that.onMessage; fn != nil {
			fn(peer.id, env)
		}
	})
}

// drop - unregisters the peer and fires the disconnect callback exactly
// once, however many paths race to it.
func (that *Server) drop(peer *conn, reason string) {
	that.mu.Lock()
	_, registered := that.conns[peer.id]
	delete(that.conns, peer.id)
	that.mu.Unlock()

	peer.close()
	if !registered {
		return
	}
	metrics.ConnectedPeers.Dec()

	if reason != "" {
		that.logger.Warn("dropping peer", "peer_id", peer.id, "reason", reason)
	} else {
		that.logger.Info("peer disconnected", "peer_id", peer.id)
	}

	if fn := that.onDisconnected; fn != nil {
		fn(peer.id)
	}
}

func (that *Server) Send(peerID string, env *protocol.Envelope) bool {
	data, isBinary, err := that.codec.Encode(env)
	if err != nil {
		that.logger.Error("failed to encode message", "type", env.Type, "error", err)
		return false
	}

	that.mu.RLock()
	peer := that.conns[peerID]
	that.mu.RUnlock()
	if peer == nil {
		return false
	}

	if !peer.enqueue(frame{data: data, binary: isBinary}) {
		// a peer that stopped draining its socket must not stall the
		// session, cut it loose and let reconnection sort it out
		metrics.DroppedPeers.Inc()
		that.drop(peer, "send buffer full")
		return false
	}

	metrics.MessagesSent.WithLabelValues(env.Type).Inc()
	return true
}

func (that *Server) Broadcast(env *protocol.Envelope, excludePeerID string) int {
	data, isBinary, err := that.codec.Encode(env)
	if err != nil {
		that.logger.Error("failed to encode broadcast", "type", env.Type, "error", err)
		return 0
	}

	that.mu.RLock()
	peers := make([]*conn, 0, len(that.conns))
	for id, peer := range that.conns {
		if id == excludePeerID {
			continue
		}
		peers = append(peers, peer)
	}
	that.mu.RUnlock()

	delivered := 0
	var slow []*conn
	for _, peer := range peers {
		if peer.enqueue(frame{data: data, binary: isBinary}) {
			delivered++
		} else {
			slow = append(slow, peer)
		}
	}
	for _, peer := range slow {
		metrics.DroppedPeers.Inc()
		that.drop(peer, "send buffer full")
	}

	if delivered > 0 {
		metrics.MessagesSent.WithLabelValues(env.Type).Add(float64(delivered))
	}
	return delivered
}

// reserveSlot - counts a pending upgrade against the capacity cap so two
// concurrent upgrades cannot both slip past it. Every successful reserve
// is paired with either registration or releaseSlot.
func (that *Server) reserveSlot() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	if that.maxPeers > 0 && len(that.conns)+that.upgrades >= that.maxPeers {
		return false
	}
	that.upgrades++
	return true
}

func (that *Server) releaseSlot() {
	that.mu.Lock()
	that.upgrades--
	that.mu.Unlock()
}

// Close - disconnects every peer and stops the listener.
func (that *Server) Close() error {
	that.mu.Lock()
	conns := that.conns
	that.conns = make(map[string]*conn)
	that.mu.Unlock()

	for _, peer := range conns {
		peer.close()
		metrics.ConnectedPeers.Dec()
	}

	if that.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := that.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
