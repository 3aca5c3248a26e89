package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
)

func TestHostReconnect(t *testing.T) {
	t.Run("A dropped guest reclaims its seat inside the window", func(t *testing.T) {
		// Given: a session with two guests.
		host, hub := startHost(t, testHostConfig())
		first, firstLink := joinGuest(t, hub, "mira", "shadow")
		_, observerLink := joinGuest(t, hub, "kestrel", "vanguard")

		var mu sync.Mutex
		var states []ConnState
		first.OnConnStateChanged(func(state ConnState) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, state)
		})

		// When: the first guest's link fails.
		hub.drop(firstLink)

		// Then: the guest fights its way back in.
		require.Eventually(t, func() bool {
			return first.ConnState() == ConnStateConnected
		}, 2*time.Second, 5*time.Millisecond)

		mu.Lock()
		require.NotEmpty(t, states)
		assert.Equal(t, ConnStateReconnecting, states[0])
		assert.Equal(t, ConnStateConnected, states[len(states)-1])
		mu.Unlock()

		// And: the seat is live again on the host.
		require.Eventually(t, func() bool {
			return !host.Game().PlayerByID(2).IsDisconnected
		}, time.Second, 5*time.Millisecond)

		// And: the claim was answered with a fresh snapshot.
		assert.Positive(t, countType(firstLink.inboundTypes(), protocol.MsgReconnectAccept))

		// And: the other guest watched the seat drop and return.
		require.Eventually(t, func() bool {
			types := observerLink.inboundTypes()
			return countType(types, protocol.MsgPlayerDisconnected) == 1 &&
				countType(types, protocol.MsgPlayerReconnected) == 1
		}, time.Second, 5*time.Millisecond)

		// And: the reconnecting player is not told about themselves.
		assert.Zero(t, countType(firstLink.inboundTypes(), protocol.MsgPlayerReconnected))
	})

	t.Run("A guest that cannot reach the host gives up after the window", func(t *testing.T) {
		// Given: a joined guest with a short reconnection window.
		_, hub := startHost(t, testHostConfig())

		link := hub.newGuestLink()
		guest := NewGuest(testLogger(), link, GuestConfig{
			Name: "mira",
			Deck: "shadow",
			Reconnect: ReconnectConfig{
				Window:          150 * time.Millisecond,
				DialTimeout:     50 * time.Millisecond,
				InitialInterval: 10 * time.Millisecond,
				MaxInterval:     20 * time.Millisecond,
			},
		})
		t.Cleanup(func() { _ = guest.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		require.NoError(t, guest.Join(ctx, "mem://table-1"))

		// When: the link fails while the host stays unreachable.
		hub.setOffline(true)
		hub.drop(link)

		// Then: the guest stops fighting once the window elapses, without
		// ever getting a verdict.
		require.Eventually(t, func() bool {
			return guest.ConnState() == ConnStateFailed
		}, 2*time.Second, 5*time.Millisecond)
		assert.Zero(t, countType(link.inboundTypes(), protocol.MsgReconnectReject))
	})

	t.Run("A live seat rejects another claimant", func(t *testing.T) {
		// Given: a session whose second seat is connected.
		host, hub := startHost(t, testHostConfig())
		joinGuest(t, hub, "mira", "shadow")

		// When: a stranger claims the occupied seat.
		intruder := hub.newGuestLink()
		require.NoError(t, intruder.Dial(context.Background(), "mem://table-1"))
		env, err := protocol.NewJSON(protocol.MsgReconnectRequest, &protocol.ReconnectRequestPayload{PlayerID: 2})
		require.NoError(t, err)
		require.True(t, intruder.Send(hostPeerID, env))

		// Then: the claim bounces as occupied.
		require.Eventually(t, func() bool {
			return len(intruder.received(protocol.MsgReconnectReject)) == 1
		}, time.Second, 5*time.Millisecond)

		var verdict protocol.ReconnectRejectPayload
		require.NoError(t, intruder.received(protocol.MsgReconnectReject)[0].DecodePayload(&verdict))
		assert.Equal(t, protocol.ReasonSeatOccupied, verdict.Reason)

		// And: the rightful holder keeps the seat.
		assert.False(t, host.Game().PlayerByID(2).IsDisconnected)
	})

	t.Run("A claim on an unknown seat is rejected", func(t *testing.T) {
		// Given: an open session.
		_, hub := startHost(t, testHostConfig())

		// When: a peer claims a seat that never existed.
		claimant := hub.newGuestLink()
		require.NoError(t, claimant.Dial(context.Background(), "mem://table-1"))
		env, err := protocol.NewJSON(protocol.MsgReconnectRequest, &protocol.ReconnectRequestPayload{PlayerID: 9})
		require.NoError(t, err)
		require.True(t, claimant.Send(hostPeerID, env))

		// Then: the claim bounces as unknown.
		require.Eventually(t, func() bool {
			return len(claimant.received(protocol.MsgReconnectReject)) == 1
		}, time.Second, 5*time.Millisecond)

		var verdict protocol.ReconnectRejectPayload
		require.NoError(t, claimant.received(protocol.MsgReconnectReject)[0].DecodePayload(&verdict))
		assert.Equal(t, protocol.ReasonUnknownPlayer, verdict.Reason)
	})

	t.Run("The host seat is never claimable", func(t *testing.T) {
		// Given: an open session.
		host, hub := startHost(t, testHostConfig())

		// When: a stranger claims the host's own seat.
		intruder := hub.newGuestLink()
		require.NoError(t, intruder.Dial(context.Background(), "mem://table-1"))
		env, err := protocol.NewJSON(protocol.MsgReconnectRequest, &protocol.ReconnectRequestPayload{PlayerID: 1})
		require.NoError(t, err)
		require.True(t, intruder.Send(hostPeerID, env))

		// Then: the claim bounces, the seat was never open.
		require.Eventually(t, func() bool {
			return len(intruder.received(protocol.MsgReconnectReject)) == 1
		}, time.Second, 5*time.Millisecond)

		var verdict protocol.ReconnectRejectPayload
		require.NoError(t, intruder.received(protocol.MsgReconnectReject)[0].DecodePayload(&verdict))
		assert.Equal(t, protocol.ReasonSeatOccupied, verdict.Reason)

		// When: the rejected peer tries a host-only command anyway, then
		// joins legitimately.
		require.True(t, intruder.Send(hostPeerID, protocol.New(protocol.MsgGameStart)))
		join, err := protocol.NewJSON(protocol.MsgJoinRequest, &protocol.JoinRequestPayload{Name: "sable", Deck: "shadow"})
		require.NoError(t, err)
		require.True(t, intruder.Send(hostPeerID, join))

		// Then: once the join lands, the start command provably carried no
		// privileges.
		require.Eventually(t, func() bool {
			return len(intruder.received(protocol.MsgJoinAcceptMinimal)) == 1
		}, time.Second, 5*time.Millisecond)
		assert.False(t, host.Game().IsStarted())
	})

}

func TestHostDummyConversion(t *testing.T) {
	t.Run("An expired window turns the seat into a stand-in", func(t *testing.T) {
		// Given: a started game and a short reconnection window.
		cfg := testHostConfig()
		cfg.DisconnectGrace = 60 * time.Millisecond
		host, hub := startHost(t, cfg)

		first, firstLink := joinGuest(t, hub, "mira", "shadow")
		second, observerLink := joinGuest(t, hub, "kestrel", "vanguard")
		require.NoError(t, host.StartGame())

		require.Eventually(t, func() bool {
			local := second.Game()
			return local != nil && local.IsStarted()
		}, time.Second, 5*time.Millisecond)

		// And: the doomed seat's hand is hidden from the observer.
		hidden := second.Game().PlayerByID(2).Hand
		require.NotEmpty(t, hidden)
		for _, card := range hidden {
			require.Empty(t, card.ID)
		}

		// When: the first guest drops and cannot get back in time.
		hub.setOffline(true)
		hub.drop(firstLink)

		// Then: the grace runs out and the seat becomes a stand-in that is
		// always ready.
		require.Eventually(t, func() bool {
			seat := host.Game().PlayerByID(2)
			return seat.IsDummy && seat.IsReady
		}, time.Second, 5*time.Millisecond)

		require.Eventually(t, func() bool {
			return countType(observerLink.inboundTypes(), protocol.MsgPlayerConvertedToDummy) == 1
		}, time.Second, 5*time.Millisecond)

		// And: the stand-in's cards are an open book for everyone now.
		require.Eventually(t, func() bool {
			local := second.Game()
			if local == nil {
				return false
			}
			seat := local.PlayerByID(2)
			if seat == nil || !seat.IsDummy || len(seat.Hand) == 0 {
				return false
			}
			for _, card := range seat.Hand {
				if card.ID == "" {
					return false
				}
			}
			return true
		}, time.Second, 5*time.Millisecond)

		// And: once the host is reachable again, the late claim is refused
		// and the guest gives up.
		hub.setOffline(false)
		require.Eventually(t, func() bool {
			return first.ConnState() == ConnStateFailed
		}, 2*time.Second, 5*time.Millisecond)

		rejects := firstLink.received(protocol.MsgReconnectReject)
		require.NotEmpty(t, rejects)

		var verdict protocol.ReconnectRejectPayload
		require.NoError(t, rejects[len(rejects)-1].DecodePayload(&verdict))
		assert.Equal(t, protocol.ReasonWindowExpired, verdict.Reason)
	})

	t.Run("A stand-in's cards answer to every real player", func(t *testing.T) {
		// Given: a started game whose second seat became a stand-in.
		cfg := testHostConfig()
		cfg.DisconnectGrace = 60 * time.Millisecond
		host, hub := startHost(t, cfg)

		_, doomedLink := joinGuest(t, hub, "mira", "shadow")
		second, _ := joinGuest(t, hub, "kestrel", "vanguard")
		require.NoError(t, host.StartGame())

		hub.setOffline(true)
		hub.drop(doomedLink)
		require.Eventually(t, func() bool {
			seat := host.Game().PlayerByID(2)
			return seat.IsDummy
		}, time.Second, 5*time.Millisecond)

		// And: the other guest can see the stand-in's hand.
		var dummyCardID string
		require.Eventually(t, func() bool {
			local := second.Game()
			if local == nil {
				return false
			}
			seat := local.PlayerByID(2)
			if seat == nil || !seat.IsDummy || len(seat.Hand) == 0 || seat.Hand[0].ID == "" {
				return false
			}
			dummyCardID = seat.Hand[0].ID
			return true
		}, time.Second, 5*time.Millisecond)

		// When: that guest steers the stand-in's card.
		require.NoError(t, second.Act(protocol.ActionSetPower, &protocol.SetPowerAction{
			CardID: dummyCardID,
			Power:  7,
		}))

		// Then: the host accepts the move from a non-owner.
		require.Eventually(t, func() bool {
			card, _, _ := host.Game().PlayerByID(2).FindCard(dummyCardID)
			return card != nil && card.Power == 7
		}, time.Second, 5*time.Millisecond)
	})
}
