package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/transport"
)

var errHostUnreachable = errors.New("host unreachable")

// fakeHub wires one fake host transport to any number of fake guest
// links with synchronous in-memory delivery. It mirrors the ws transport
// contract: the host sees fresh peer ids, senders are stamped by the
// transport, a deliberate Close stays quiet on the closing side.
type fakeHub struct {
	mu      sync.Mutex
	nextID  int
	offline bool
	host    *fakeHostPeer
	guests  map[string]*fakeGuestLink
}

func newFakeHub() *fakeHub {
	hub := &fakeHub{guests: make(map[string]*fakeGuestLink)}
	hub.host = &fakeHostPeer{hub: hub}
	return hub
}

func (that *fakeHub) newGuestLink() *fakeGuestLink {
	return &fakeGuestLink{hub: that}
}

// setOffline - simulates the host being unreachable for new dials.
func (that *fakeHub) setOffline(offline bool) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.offline = offline
}

// drop - severs a live link the way a network failure would: both sides
// get their disconnect callback.
func (that *fakeHub) drop(link *fakeGuestLink) {
	peerID := link.detach()
	if peerID == "" {
		return
	}

	that.mu.Lock()
	delete(that.guests, peerID)
	hostFn := that.host.onDisconnected
	that.mu.Unlock()

	if hostFn != nil {
		hostFn(peerID)
	}
	if fn := link.onDisconnected; fn != nil {
		fn(hostPeerID)
	}
}

type fakeHostPeer struct {
	hub *fakeHub

	onMessage      transport.MessageHandler
	onConnected    transport.PeerHandler
	onDisconnected transport.PeerHandler
}

func (that *fakeHostPeer) OnMessage(fn transport.MessageHandler)       { that.onMessage = fn }
func (that *fakeHostPeer) OnPeerConnected(fn transport.PeerHandler)    { that.onConnected = fn }
func (that *fakeHostPeer) OnPeerDisconnected(fn transport.PeerHandler) { that.onDisconnected = fn }

func (that *fakeHostPeer) Send(peerID string, env *protocol.Envelope) bool {
	that.hub.mu.Lock()
	guest := that.hub.guests[peerID]
	that.hub.mu.Unlock()

	if guest == nil {
		return false
	}
	guest.receive(env)
	return true
}

func (that *fakeHostPeer) Broadcast(env *protocol.Envelope, excludePeerID string) int {
	that.hub.mu.Lock()
	targets := make([]*fakeGuestLink, 0, len(that.hub.guests))
	for id, guest := range that.hub.guests {
		if id == excludePeerID {
			continue
		}
		targets = append(targets, guest)
	}
	that.hub.mu.Unlock()

	for _, guest := range targets {
		guest.receive(env)
	}
	return len(targets)
}

func (that *fakeHostPeer) Close() error {
	that.hub.mu.Lock()
	links := make([]*fakeGuestLink, 0, len(that.hub.guests))
	for _, guest := range that.hub.guests {
		links = append(links, guest)
	}
	that.hub.guests = make(map[string]*fakeGuestLink)
	that.hub.mu.Unlock()

	for _, link := range links {
		link.detach()
		if fn := link.onDisconnected; fn != nil {
			fn(hostPeerID)
		}
	}
	return nil
}

type fakeGuestLink struct {
	hub *fakeHub

	mu        sync.Mutex
	peerID    string
	connected bool
	inbound   []*protocol.Envelope

	onMessage      transport.MessageHandler
	onConnected    transport.PeerHandler
	onDisconnected transport.PeerHandler
}

func (that *fakeGuestLink) OnMessage(fn transport.MessageHandler)       { that.onMessage = fn }
func (that *fakeGuestLink) OnPeerConnected(fn transport.PeerHandler)    { that.onConnected = fn }
func (that *fakeGuestLink) OnPeerDisconnected(fn transport.PeerHandler) { that.onDisconnected = fn }

func (that *fakeGuestLink) Dial(_ context.Context, _ string) error {
	that.hub.mu.Lock()
	if that.hub.offline {
		that.hub.mu.Unlock()
		return errHostUnreachable
	}
	that.hub.nextID++
	id := fmt.Sprintf("peer-%d", that.hub.nextID)
	that.hub.guests[id] = that
	hostFn := that.hub.host.onConnected
	that.hub.mu.Unlock()

	that.mu.Lock()
	that.peerID = id
	that.connected = true
	that.mu.Unlock()

	if hostFn != nil {
		hostFn(id)
	}
	if fn := that.onConnected; fn != nil {
		fn(hostPeerID)
	}
	return nil
}

func (that *fakeGuestLink) Send(_ string, env *protocol.Envelope) bool {
	that.mu.Lock()
	connected := that.connected
	peerID := that.peerID
	that.mu.Unlock()

	if !connected {
		return false
	}

	fn := that.hub.host.onMessage
	if fn == nil {
		return false
	}
	env.SenderID = peerID
	fn(peerID, env)
	return true
}

func (that *fakeGuestLink) Broadcast(env *protocol.Envelope, excludePeerID string) int {
	if excludePeerID == hostPeerID {
		return 0
	}
	if that.Send(hostPeerID, env) {
		return 1
	}
	return 0
}

func (that *fakeGuestLink) receive(env *protocol.Envelope) {
	that.mu.Lock()
	if !that.connected {
		that.mu.Unlock()
		return
	}
	that.inbound = append(that.inbound, env)
	fn := that.onMessage
	that.mu.Unlock()

	if fn != nil {
		fn(hostPeerID, env)
	}
}

func (that *fakeGuestLink) inboundTypes() []string {
	that.mu.Lock()
	defer that.mu.Unlock()
	out := make([]string, len(that.inbound))
	for i, env := range that.inbound {
		out[i] = env.Type
	}
	return out
}

func (that *fakeGuestLink) received(msgType string) []*protocol.Envelope {
	that.mu.Lock()
	defer that.mu.Unlock()
	var out []*protocol.Envelope
	for _, env := range that.inbound {
		if env.Type == msgType {
			out = append(out, env)
		}
	}
	return out
}

func (that *fakeGuestLink) Connected() bool {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.connected
}

// detach - marks the link dead and returns the peer id it held.
func (that *fakeGuestLink) detach() string {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.connected {
		return ""
	}
	that.connected = false
	return that.peerID
}

// Close - a deliberate local close: the host notices, our own disconnect
// callback stays quiet, matching the real client.
func (that *fakeGuestLink) Close() error {
	peerID := that.detach()
	if peerID == "" {
		return nil
	}

	that.hub.mu.Lock()
	delete(that.hub.guests, peerID)
	hostFn := that.hub.host.onDisconnected
	that.hub.mu.Unlock()

	if hostFn != nil {
		hostFn(peerID)
	}
	return nil
}
