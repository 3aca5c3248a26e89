package transport

import (
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
)

// MessageHandler receives every decoded envelope together with the
// transport peer id it arrived from.
type MessageHandler func(peerID string, env *protocol.Envelope)

// PeerHandler fires on peer lifecycle edges.
type PeerHandler func(peerID string)

// Peer abstracts one side of the mesh: the host fans out to many connected
// peers, a guest holds a single link to the host. Implementations run their
// callbacks from transport goroutines; consumers serialize on their side.
type Peer interface {
	// Send - queues the envelope for one peer. false means the peer is gone
	// or refused the message; nothing is retried at this layer.
	Send(peerID string, env *protocol.Envelope) bool

	// Broadcast - queues the envelope for every connected peer except
	// excludePeerID and reports how many peers accepted it.
	Broadcast(env *protocol.Envelope, excludePeerID string) int

	OnMessage(fn MessageHandler)
	OnPeerConnected(fn PeerHandler)
	OnPeerDisconnected(fn PeerHandler)

	Close() error
}
