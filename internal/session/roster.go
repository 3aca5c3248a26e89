package session

import (
	"sort"
	"time"
)

// ConnectionInfo records one peer's binding to a seat. A seat keeps its
// last binding after the peer drops, with Connected false, until someone
// reconnects into it or the seat becomes a stand-in.
type ConnectionInfo struct {
	PeerID      string
	PlayerID    int
	Connected   bool
	ConnectedAt time.Time
}

// Roster holds peer-to-seat bindings on the host side. Only the
// orchestrator goroutine touches it, so it carries no locking.
type Roster struct {
	byPeer   map[string]*ConnectionInfo
	byPlayer map[int]*ConnectionInfo
}

func NewRoster() *Roster {
	return &Roster{
		byPeer:   make(map[string]*ConnectionInfo),
		byPlayer: make(map[int]*ConnectionInfo),
	}
}

// Bind - binds a transport peer to a seat, replacing whatever binding the
// seat held before. A player maps to at most one connection.
func (that *Roster) Bind(peerID string, playerID int) {
	if stale := that.byPlayer[playerID]; stale != nil {
		delete(that.byPeer, stale.PeerID)
	}

	info := &ConnectionInfo{
		PeerID:      peerID,
		PlayerID:    playerID,
		Connected:   true,
		ConnectedAt: time.Now(),
	}
	that.byPeer[peerID] = info
	that.byPlayer[playerID] = info
}

// UnbindPeer - marks the peer's seat disconnected and forgets the peer id.
// Transport peer ids are never reused, a reconnecting player arrives under
// a fresh one. Returns the seat that was bound, or zero.
func (that *Roster) UnbindPeer(peerID string) int {
	info, ok := that.byPeer[peerID]
	if !ok {
		return 0
	}
	delete(that.byPeer, peerID)
	info.Connected = false
	return info.PlayerID
}

// Remove - drops the seat's binding record entirely.
func (that *Roster) Remove(playerID int) {
	info, ok := that.byPlayer[playerID]
	if !ok {
		return
	}
	delete(that.byPlayer, playerID)
	delete(that.byPeer, info.PeerID)
}

// PlayerOf - the seat bound to a live peer, or zero.
func (that *Roster) PlayerOf(peerID string) int {
	if info, ok := that.byPeer[peerID]; ok {
		return info.PlayerID
	}
	return 0
}

// PeerOf - the live peer currently holding the seat.
func (that *Roster) PeerOf(playerID int) (string, bool) {
	info, ok := that.byPlayer[playerID]
	if !ok || !info.Connected {
		return "", false
	}
	return info.PeerID, true
}

// Connected - every live binding, in seat order so fan-out is
// deterministic.
func (that *Roster) Connected() []*ConnectionInfo {
	out := make([]*ConnectionInfo, 0, len(that.byPeer))
	for _, info := range that.byPeer {
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlayerID < out[j].PlayerID })
	return out
}
