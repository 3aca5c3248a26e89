package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/catalog"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/delta"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/metrics"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/repository"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/timers"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/transport"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/view"
)

const (
	// loopbackPeerID marks commands the host player issues locally. It is
	// never a transport peer id, so the roster can never bind it.
	loopbackPeerID = "loopback"

	inboxSize      = 256
	persistTimeout = 3 * time.Second
)

// HostConfig carries everything a session needs at birth.
type HostConfig struct {
	SessionID string
	Name      string
	Color     string
	Deck      string

	MaxPlayers int
	BoardRows  int
	BoardCols  int
	HandSize   int

	DisconnectGrace time.Duration
	InactivityLimit time.Duration
	CleanupDelay    time.Duration
	TurnLimit       time.Duration

	// BinaryThreshold is the delta JSON size, in bytes, above which the
	// delta travels on a binary frame. Zero keeps everything textual.
	BinaryThreshold int
}

// hostEvent is the closed set of things that can wake the orchestrator.
type hostEvent interface{ isHostEvent() }

type peerConnectedEvent struct{ peerID string }

type peerDisconnectedEvent struct{ peerID string }

type envelopeEvent struct {
	peerID string
	env    *protocol.Envelope
}

type timerEvent struct {
	kind     timers.Kind
	playerID int
}

type commandEvent struct{ run func() }

type shutdownEvent struct{ reason string }

func (peerConnectedEvent) isHostEvent()    {}
func (peerDisconnectedEvent) isHostEvent() {}
func (envelopeEvent) isHostEvent()         {}
func (timerEvent) isHostEvent()            {}
func (commandEvent) isHostEvent()          {}
func (shutdownEvent) isHostEvent()         {}

type hostHandler func(peerID string, playerID int, env *protocol.Envelope) error

// Host is the session orchestrator: the single writer of authoritative
// state. Transport callbacks, timer callbacks and the local player's
// commands all post events into one inbox consumed by Run, so no state
// access ever races another.
type Host struct {
	logger  *slog.Logger
	peer    transport.Peer
	repo    repository.SessionRepository
	catalog *catalog.Catalog
	cfg     HostConfig

	game     *entity.Game
	version  int
	roster   *Roster
	timers   *timers.Scheduler
	handlers map[string]hostHandler

	inbox    chan hostEvent
	stopped  chan struct{}
	stopOnce sync.Once
	restored bool
}

// NewHost - opens a fresh session with the host in the first seat.
func NewHost(logger *slog.Logger, peer transport.Peer, repo repository.SessionRepository, cat *catalog.Catalog, cfg HostConfig) (*Host, error) {
	that := newHost(logger, peer, repo, cat, cfg)

	game := entity.NewGame(cfg.BoardRows, cfg.BoardCols)
	player := game.AddPlayer(cfg.Name, cfg.Color)
	deck, err := cat.BuildDeck(cfg.Deck, player.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to build host deck: %w", err)
	}
	player.Deck = deck
	that.game = game

	return that, nil
}

// RestoreHost - resumes a persisted session. Every remote seat starts
// disconnected; their reconnection windows are armed when Run begins.
func RestoreHost(logger *slog.Logger, peer transport.Peer, repo repository.SessionRepository, cat *catalog.Catalog, cfg HostConfig, record *repository.SessionRecord) *Host {
	that := newHost(logger, peer, repo, cat, cfg)
	that.game = record.State
	that.version = record.Version
	that.restored = true

	for _, player := range that.game.Players {
		if player.ID == entity.HostPlayerID || player.IsDummy {
			continue
		}
		player.IsDisconnected = true
	}

	return that
}

func newHost(logger *slog.Logger, peer transport.Peer, repo repository.SessionRepository, cat *catalog.Catalog, cfg HostConfig) *Host {
	that := &Host{
		logger:  logger.With("component", "host"),
		peer:    peer,
		repo:    repo,
		catalog: cat,
		cfg:     cfg,
		roster:  NewRoster(),
		inbox:   make(chan hostEvent, inboxSize),
		stopped: make(chan struct{}),
	}

	that.timers = timers.NewScheduler(logger, func(kind timers.Kind, playerID int) {
		that.post(timerEvent{kind: kind, playerID: playerID})
	})

	that.handlers = map[string]hostHandler{
		protocol.MsgJoinRequest:      that.handleJoinRequest,
		protocol.MsgReconnectRequest: that.handleReconnectRequest,
		protocol.MsgStateSyncRequest: that.handleStateSyncRequest,
		protocol.MsgAction:           that.handleAction,
		protocol.MsgPlayerReady:      that.handlePlayerReady,
		protocol.MsgGameStart:        that.handleGameStart,
		protocol.MsgPhaseChange:      that.handlePhaseChange,
		protocol.MsgTurnChange:       that.handleTurnChange,
		protocol.MsgEffect:           that.handleEffect,
	}

	peer.OnMessage(func(peerID string, env *protocol.Envelope) {
		that.post(envelopeEvent{peerID: peerID, env: env})
	})
	peer.OnPeerConnected(func(peerID string) {
		that.post(peerConnectedEvent{peerID: peerID})
	})
	peer.OnPeerDisconnected(func(peerID string) {
		that.post(peerDisconnectedEvent{peerID: peerID})
	})

	return that
}

// post - hands an event to the orchestrator goroutine. Transport and timer
// goroutines block here when the inbox is full; after teardown events are
// dropped instead of leaking their senders.
func (that *Host) post(ev hostEvent) {
	select {
	case that.inbox <- ev:
	case <-that.stopped:
	}
}

// Run - the orchestrator loop. Exits after termination, whether it came
// from the context, a Stop call or the inactivity cleanup.
func (that *Host) Run(ctx context.Context) error {
	if that.restored {
		that.rearmDisconnects()
	}
	that.touchInactivity()

	that.logger.Info("session open",
		"session_id", that.cfg.SessionID,
		"players", len(that.game.Players),
		"restored", that.restored,
	)

	for {
		select {
		case <-ctx.Done():
			that.terminate("host is shutting down")
			return nil
		case <-that.stopped:
			return nil
		case ev := <-that.inbox:
			that.handle(ev)
		}
	}
}

func (that *Host) handle(ev hostEvent) {
	switch ev := ev.(type) {
	case peerConnectedEvent:
		that.logger.Debug("peer connected", "peer_id", ev.peerID)
	case peerDisconnectedEvent:
		that.peerLeft(ev.peerID)
	case envelopeEvent:
		that.dispatch(ev.peerID, ev.env)
	case timerEvent:
		that.timerFired(ev.kind, ev.playerID)
	case commandEvent:
		ev.run()
	case shutdownEvent:
		that.terminate(ev.reason)
	}
}

// dispatch - logs and swallows handler errors. A misbehaving message never
// takes the session down; the sender simply sees no reply.
func (that *Host) dispatch(peerID string, env *protocol.Envelope) {
	if err := that.deliver(peerID, env); err != nil {
		that.logger.Warn("message rejected", "type", env.Type, "peer_id", peerID, "error", err)
	}
}

func (that *Host) deliver(peerID string, env *protocol.Envelope) error {
	that.touchInactivity()

	handler, ok := that.handlers[env.Type]
	if !ok {
		return fmt.Errorf("%w: %s", apperror.ErrUnknownMessageType, env.Type)
	}

	playerID := that.roster.PlayerOf(peerID)
	if peerID == loopbackPeerID {
		playerID = entity.HostPlayerID
	}

	return handler(peerID, playerID, env)
}

// mutate - stages fn's writes on a draft over the live state and commits
// the result. The draft copies only the substructures fn touches and the
// live state is never written in place, so a failed transition leaves
// nothing to undo.
func (that *Host) mutate(origin int, fn func(tx *entity.Draft) error) error {
	tx := entity.NewDraft(that.game)
	if err := fn(tx); err != nil {
		return err
	}
	that.commit(origin, tx.Game())
	return nil
}

// commit - publishes a new authoritative state: diff against the previous
// one, bump the version, personalize per connected guest, persist. An
// empty diff just swaps the state and stops.
func (that *Host) commit(origin int, next *entity.Game) {
	prev := that.game
	d := delta.Diff(prev, next, origin)

	that.game = next
	that.retimeTurn(prev, next)

	if d.IsEmpty() {
		return
	}

	that.version++
	d.Version = that.version

	that.fanOut(d, prev, next)
	that.persist()
}

func (that *Host) fanOut(d *delta.StateDelta, prev, next *entity.Game) {
	for _, info := range that.roster.Connected() {
		redacted := view.RedactDelta(d, prev, next, info.PlayerID)
		if redacted.IsEmpty() {
			continue
		}

		env, kind, err := that.deltaEnvelope(redacted)
		if err != nil {
			that.logger.Error("failed to encode delta", "player_id", info.PlayerID, "error", err)
			continue
		}
		if that.peer.Send(info.PeerID, env) {
			metrics.StateSyncs.WithLabelValues(kind).Inc()
		}
	}
}

// deltaEnvelope - wraps a personalized delta, switching to a binary frame
// once the JSON grows past the compaction threshold. The payload stays
// JSON either way, deltas depend on field presence surviving the trip.
func (that *Host) deltaEnvelope(d *delta.StateDelta) (*protocol.Envelope, string, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal delta: %w", err)
	}

	if that.cfg.BinaryThreshold > 0 && len(raw) >= that.cfg.BinaryThreshold {
		env := protocol.New(protocol.MsgStateDeltaBinary)
		env.Binary = raw
		return env, "delta_binary", nil
	}

	env := protocol.New(protocol.MsgStateDelta)
	env.Data = raw
	return env, "delta", nil
}

// persist - saves the session after an accepted transition. Storage
// trouble never interrupts play, it only costs the resume.
func (that *Host) persist() {
	record := &repository.SessionRecord{
		State:         that.game,
		Version:       that.version,
		LocalPlayerID: entity.HostPlayerID,
		IsHost:        true,
		PeerID:        that.cfg.SessionID,
		SavedAt:       time.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := that.repo.Save(ctx, that.cfg.SessionID, record); err != nil {
		that.logger.Warn("failed to persist session", "error", err)
	}
}

func (that *Host) deleteRecord() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := that.repo.Delete(ctx, that.cfg.SessionID); err != nil {
		that.logger.Warn("failed to delete session record", "error", err)
	}
}

// touchInactivity - any processed inbound message or local command counts
// as life. A pending cleanup is called off and the inactivity clock
// starts over.
func (that *Host) touchInactivity() {
	if that.cfg.InactivityLimit <= 0 {
		return
	}
	if that.timers.Cancel(timers.KindCleanup, 0) {
		that.logger.Info("activity resumed, cleanup canceled")
	}
	that.timers.Start(timers.KindInactivity, 0, that.cfg.InactivityLimit)
}

// rearmDisconnects - a restored session owes every absent player the same
// reconnection window a live disconnect would have opened.
func (that *Host) rearmDisconnects() {
	for _, player := range that.game.Players {
		if player.IsDisconnected && !player.IsDummy {
			that.timers.Start(timers.KindDisconnect, player.ID, that.cfg.DisconnectGrace)
		}
	}
}

// retimeTurn - follows the active seat with the turn timer.
func (that *Host) retimeTurn(prev, next *entity.Game) {
	if that.cfg.TurnLimit <= 0 || prev.ActivePlayerID == next.ActivePlayerID {
		return
	}
	if prev.ActivePlayerID != 0 {
		that.timers.Cancel(timers.KindTurn, prev.ActivePlayerID)
	}
	if next.ActivePlayerID != 0 && next.IsStarted() {
		that.timers.Start(timers.KindTurn, next.ActivePlayerID, that.cfg.TurnLimit)
	}
}

func (that *Host) timerFired(kind timers.Kind, playerID int) {
	switch kind {
	case timers.KindDisconnect:
		that.disconnectExpired(playerID)
	case timers.KindInactivity:
		that.logger.Warn("session inactive, arming cleanup", "cleanup_in", that.cfg.CleanupDelay.String())
		that.timers.Start(timers.KindCleanup, 0, that.cfg.CleanupDelay)
	case timers.KindCleanup:
		that.deleteRecord()
		that.terminate("session expired after inactivity")
	case timers.KindTurn:
		that.turnExpired(playerID)
	}
}

// peerLeft - transport lost the peer. The seat stays in the game marked
// disconnected, and the grace timer decides whether the player comes back
// or the seat becomes a stand-in.
func (that *Host) peerLeft(peerID string) {
	playerID := that.roster.UnbindPeer(peerID)
	if playerID == 0 {
		return
	}

	that.logger.Info("player disconnected", "player_id", playerID, "peer_id", peerID)

	err := that.mutate(0, func(tx *entity.Draft) error {
		player := tx.Player(playerID)
		if player == nil {
			return fmt.Errorf("%w: %d", apperror.ErrUnknownPlayer, playerID)
		}
		player.IsDisconnected = true
		return nil
	})
	if err != nil {
		that.logger.Error("failed to mark player disconnected", "player_id", playerID, "error", err)
		return
	}

	that.announce(protocol.MsgPlayerDisconnected, playerID, "")
	that.timers.Start(timers.KindDisconnect, playerID, that.cfg.DisconnectGrace)
}

// disconnectExpired - the grace ran out. The seat turns into a stand-in so
// the match can go on: fully visible, always ready, moderated by the host.
func (that *Host) disconnectExpired(playerID int) {
	player := that.game.PlayerByID(playerID)
	if player == nil || player.IsDummy || !player.IsDisconnected {
		return
	}

	that.logger.Info("reconnection window expired, converting to stand-in", "player_id", playerID)

	err := that.mutate(0, func(tx *entity.Draft) error {
		p := tx.Player(playerID)
		if p == nil {
			return fmt.Errorf("%w: %d", apperror.ErrUnknownPlayer, playerID)
		}
		p.IsDummy = true
		p.IsReady = true
		return nil
	})
	if err != nil {
		that.logger.Error("failed to convert player to stand-in", "player_id", playerID, "error", err)
		return
	}

	that.roster.Remove(playerID)
	metrics.DummyConversions.Inc()
	that.announce(protocol.MsgPlayerConvertedToDummy, playerID, "")
}

// turnExpired - the active player sat on the turn too long, pass it for
// them. The timer key names the seat it was armed for, so a turn that
// already moved on is left alone.
func (that *Host) turnExpired(playerID int) {
	if !that.game.IsStarted() || that.game.ActivePlayerID != playerID {
		return
	}

	that.logger.Info("turn time expired, passing turn", "player_id", playerID)

	err := that.mutate(0, func(tx *entity.Draft) error {
		return tx.PassTurn(that.catalog)
	})
	if err != nil {
		that.logger.Error("failed to pass expired turn", "player_id", playerID, "error", err)
	}
}

// announce - broadcasts a player lifecycle event.
func (that *Host) announce(msgType string, playerID int, excludePeerID string) {
	env, err := protocol.NewJSON(msgType, &protocol.PlayerStatusPayload{PlayerID: playerID})
	if err != nil {
		that.logger.Error("failed to build lifecycle message", "type", msgType, "error", err)
		return
	}
	that.peer.Broadcast(env, excludePeerID)
}

// terminate - announces the end, stops every timer and closes the
// transport. Only the first call acts.
func (that *Host) terminate(reason string) {
	that.stopOnce.Do(func() {
		that.logger.Info("terminating session", "session_id", that.cfg.SessionID, "reason", reason)

		env, err := protocol.NewJSON(protocol.MsgSessionTerminated, &protocol.SessionTerminatedPayload{Reason: reason})
		if err == nil {
			that.peer.Broadcast(env, "")
		}

		that.timers.Close()
		if err = that.peer.Close(); err != nil {
			that.logger.Warn("failed to close transport", "error", err)
		}
		close(that.stopped)
	})
}

// do - runs fn on the orchestrator goroutine and waits for it. The public
// API funnels through here so no caller ever touches session state from
// outside.
func (that *Host) do(fn func()) {
	done := make(chan struct{})
	select {
	case that.inbox <- commandEvent{run: func() { defer close(done); fn() }}:
	case <-that.stopped:
		return
	}
	select {
	case <-done:
	case <-that.stopped:
	}
}

// submit - feeds a host-local command through the same pipeline guest
// messages take, and surfaces the handler error to the caller instead of
// only the log.
func (that *Host) submit(env *protocol.Envelope) error {
	env.SenderID = loopbackPeerID

	err := apperror.ErrSessionTerminated
	that.do(func() { err = that.deliver(loopbackPeerID, env) })
	return err
}

// Act - performs one of the generic table actions as the host player.
func (that *Host) Act(actionType string, action any) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal %s action: %w", actionType, err)
	}

	env, err := protocol.NewJSON(protocol.MsgAction, &protocol.ActionPayload{Type: actionType, Data: data})
	if err != nil {
		return err
	}
	return that.submit(env)
}

func (that *Host) SetReady(ready bool) error {
	env, err := protocol.NewJSON(protocol.MsgPlayerReady, &protocol.PlayerReadyPayload{
		PlayerID: entity.HostPlayerID,
		Ready:    ready,
	})
	if err != nil {
		return err
	}
	return that.submit(env)
}

func (that *Host) StartGame() error {
	env, err := protocol.NewJSON(protocol.MsgGameStart, &protocol.GameStartPayload{})
	if err != nil {
		return err
	}
	return that.submit(env)
}

func (that *Host) ChangePhase(direction string) error {
	env, err := protocol.NewJSON(protocol.MsgPhaseChange, &protocol.PhaseChangePayload{Direction: direction})
	if err != nil {
		return err
	}
	return that.submit(env)
}

func (that *Host) PassTurn() error {
	env, err := protocol.NewJSON(protocol.MsgTurnChange, &protocol.TurnChangePayload{Pass: true})
	if err != nil {
		return err
	}
	return that.submit(env)
}

func (that *Host) ToggleActivePlayer(playerID int) error {
	env, err := protocol.NewJSON(protocol.MsgTurnChange, &protocol.TurnChangePayload{PlayerID: playerID})
	if err != nil {
		return err
	}
	return that.submit(env)
}

func (that *Host) SendEffect(effect *protocol.EffectPayload) error {
	env, err := protocol.NewJSON(protocol.MsgEffect, effect)
	if err != nil {
		return err
	}
	return that.submit(env)
}

// Stop - asks the orchestrator to terminate. Returns immediately; wait on
// Done for the teardown to finish.
func (that *Host) Stop(reason string) {
	that.post(shutdownEvent{reason: reason})
}

// Done - closed once the session has fully terminated.
func (that *Host) Done() <-chan struct{} {
	return that.stopped
}

// Game - a clone of the authoritative state, safe to keep and read from
// any goroutine.
func (that *Host) Game() *entity.Game {
	var game *entity.Game
	that.do(func() { game = that.game.Clone() })
	return game
}

func (that *Host) Version() int {
	var version int
	that.do(func() { version = that.version })
	return version
}
