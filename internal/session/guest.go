package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/delta"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/transport"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/view"
)

// hostPeerID - the guest's single peer is always the host; the transport
// ignores the id, the value only has to be stable.
const hostPeerID = "host"

var errSendFailed = errors.New("transport refused the message")

// Dialer is the transport a guest drives: the peer contract plus the
// ability to establish the link again after losing it.
type Dialer interface {
	transport.Peer
	Dial(ctx context.Context, url string) error
	Connected() bool
}

// GuestConfig identifies the player and tunes reconnection.
type GuestConfig struct {
	Name      string
	Color     string
	Deck      string
	Reconnect ReconnectConfig
}

type guestHandler func(env *protocol.Envelope) error

// EffectFunc receives relayed visual effects with the seat that sent them.
type EffectFunc func(effect *protocol.EffectPayload, fromPlayerID int)

// LifecycleFunc receives game-start and player lifecycle broadcasts.
type LifecycleFunc func(msgType string, playerID int)

// Guest mirrors the session on the far side of the link: it joins,
// applies personalized deltas to an inflated local copy and falls back to
// a full resync whenever a delta refuses to apply. Handlers run on the
// transport's read goroutine, one at a time.
type Guest struct {
	logger   *slog.Logger
	peer     Dialer
	cfg      GuestConfig
	handlers map[string]guestHandler

	mu        sync.RWMutex
	game      *entity.Game
	version   int
	playerID  int
	sessionID string
	url       string
	state     ConnState
	closed    bool

	joinCh      chan error
	reconnectCh chan error

	ctx    context.Context
	cancel context.CancelFunc

	onState      func()
	onEffect     EffectFunc
	onLifecycle  LifecycleFunc
	onConnState  func(state ConnState)
	onTerminated func(reason string)
}

func NewGuest(logger *slog.Logger, peer Dialer, cfg GuestConfig) *Guest {
	ctx, cancel := context.WithCancel(context.Background())

	that := &Guest{
		logger:      logger.With("component", "guest"),
		peer:        peer,
		cfg:         cfg,
		joinCh:      make(chan error, 1),
		reconnectCh: make(chan error, 1),
		ctx:         ctx,
		cancel:      cancel,
	}

	that.handlers = map[string]guestHandler{
		protocol.MsgJoinAcceptMinimal:      that.handleJoinAcceptMinimal,
		protocol.MsgJoinAcceptBinary:       that.handleJoinAcceptBinary,
		protocol.MsgStateUpdate:            that.handleStateUpdate,
		protocol.MsgStateDelta:             that.handleStateDelta,
		protocol.MsgStateDeltaBinary:       that.handleStateDelta,
		protocol.MsgReconnectAccept:        that.handleReconnectAccept,
		protocol.MsgReconnectReject:        that.handleReconnectReject,
		protocol.MsgGameStart:              that.handleGameStart,
		protocol.MsgEffect:                 that.handleEffect,
		protocol.MsgPlayerDisconnected:     that.handlePlayerEvent,
		protocol.MsgPlayerReconnected:      that.handlePlayerEvent,
		protocol.MsgPlayerConvertedToDummy: that.handlePlayerEvent,
		protocol.MsgSessionTerminated:      that.handleTerminated,
	}

	peer.OnMessage(func(_ string, env *protocol.Envelope) {
		that.handle(env)
	})
	peer.OnPeerDisconnected(func(string) {
		that.linkLost()
	})

	return that
}

// Callback setters. Wire these before Join; handlers read them without
// locking once the link is up.

func (that *Guest) OnStateChanged(fn func())              { that.onState = fn }
func (that *Guest) OnEffect(fn EffectFunc)                { that.onEffect = fn }
func (that *Guest) OnLifecycleEvent(fn LifecycleFunc)     { that.onLifecycle = fn }
func (that *Guest) OnConnStateChanged(fn func(ConnState)) { that.onConnState = fn }
func (that *Guest) OnSessionTerminated(fn func(string))   { that.onTerminated = fn }

// Join - dials the host and runs the join handshake. Returns once the
// full snapshot has landed, so the local copy is complete when it does.
func (that *Guest) Join(ctx context.Context, url string) error {
	that.mu.Lock()
	that.url = url
	that.mu.Unlock()

	if err := that.peer.Dial(ctx, url); err != nil {
		return err
	}

	env, err := protocol.NewJSON(protocol.MsgJoinRequest, &protocol.JoinRequestPayload{
		Name:  that.cfg.Name,
		Color: that.cfg.Color,
		Deck:  that.cfg.Deck,
	})
	if err != nil {
		return err
	}
	if err = that.send(env); err != nil {
		return err
	}

	select {
	case err = <-that.joinCh:
		if err != nil {
			return err
		}
		that.setConnState(ConnStateConnected)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("join handshake: %w", ctx.Err())
	case <-that.ctx.Done():
		return apperror.ErrSessionTerminated
	}
}

func (that *Guest) handle(env *protocol.Envelope) {
	handler, ok := that.handlers[env.Type]
	if !ok {
		that.logger.Warn("dropping unexpected message", "type", env.Type)
		return
	}
	if err := handler(env); err != nil {
		that.logger.Warn("message rejected", "type", env.Type, "error", err)
	}
}

// handleJoinAcceptMinimal - the seat is ours; the full snapshot is still
// in flight. Lets a client render the lobby before any state exists.
func (that *Guest) handleJoinAcceptMinimal(env *protocol.Envelope) error {
	var payload protocol.JoinAcceptMinimalPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	that.mu.Lock()
	that.playerID = payload.PlayerID
	that.sessionID = payload.SessionID
	that.mu.Unlock()

	that.logger.Info("seat assigned", "player_id", payload.PlayerID, "session_id", payload.SessionID)
	return nil
}

func (that *Guest) handleJoinAcceptBinary(env *protocol.Envelope) error {
	var payload protocol.SnapshotPayload
	if err := env.DecodeBinaryPayload(&payload); err != nil {
		that.signal(that.joinCh, err)
		return err
	}

	that.installSnapshot(&payload)
	that.signal(that.joinCh, nil)
	return nil
}

func (that *Guest) handleStateUpdate(env *protocol.Envelope) error {
	var payload protocol.SnapshotPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	that.installSnapshot(&payload)
	return nil
}

// installSnapshot - replaces the local copy wholesale with an inflated
// personalized snapshot. The version watermark restarts at the host's
// number.
func (that *Guest) installSnapshot(payload *protocol.SnapshotPayload) {
	game := view.Inflate(payload.View)

	that.mu.Lock()
	that.game = game
	that.version = payload.Version
	if payload.PlayerID != 0 {
		that.playerID = payload.PlayerID
	}
	that.mu.Unlock()

	that.notifyState()
}

// handleStateDelta - applies a personalized delta to the local copy. A
// delta that refuses to apply means the copy has drifted: keep what we
// have and ask for a snapshot instead of guessing.
func (that *Guest) handleStateDelta(env *protocol.Envelope) error {
	var d delta.StateDelta
	var err error
	if protocol.IsBinary(env.Type) {
		err = env.DecodeBinaryJSON(&d)
	} else {
		err = env.DecodePayload(&d)
	}
	if err != nil {
		return err
	}

	that.mu.Lock()
	if that.game == nil {
		that.mu.Unlock()
		return that.RequestSync("delta arrived before any snapshot")
	}

	next, applyErr := delta.Apply(that.game, &d)
	if applyErr == nil {
		that.game = next
		if d.Version > 0 {
			that.version = d.Version
		}
	}
	that.mu.Unlock()

	if applyErr != nil {
		that.logger.Warn("delta failed to apply, requesting resync", "version", d.Version, "error", applyErr)
		return that.RequestSync(applyErr.Error())
	}

	that.notifyState()
	return nil
}

func (that *Guest) handleReconnectAccept(env *protocol.Envelope) error {
	var payload protocol.SnapshotPayload
	if err := env.DecodePayload(&payload); err != nil {
		that.signal(that.reconnectCh, err)
		return err
	}

	that.installSnapshot(&payload)
	that.signal(that.reconnectCh, nil)
	return nil
}

func (that *Guest) handleReconnectReject(env *protocol.Envelope) error {
	var payload protocol.ReconnectRejectPayload
	if err := env.DecodePayload(&payload); err != nil {
		that.signal(that.reconnectCh, err)
		return err
	}

	err := fmt.Errorf("%w: %s", apperror.ErrReconnectWindowClosed, payload.Reason)
	that.signal(that.reconnectCh, err)
	return err
}

func (that *Guest) handleGameStart(_ *protocol.Envelope) error {
	that.logger.Info("game started")
	if fn := that.onLifecycle; fn != nil {
		fn(protocol.MsgGameStart, 0)
	}
	return nil
}

func (that *Guest) handleEffect(env *protocol.Envelope) error {
	var payload protocol.EffectPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	if fn := that.onEffect; fn != nil {
		fn(&payload, env.PlayerID)
	}
	return nil
}

func (that *Guest) handlePlayerEvent(env *protocol.Envelope) error {
	var payload protocol.PlayerStatusPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	that.logger.Info("player lifecycle event", "type", env.Type, "player_id", payload.PlayerID)
	if fn := that.onLifecycle; fn != nil {
		fn(env.Type, payload.PlayerID)
	}
	return nil
}

// handleTerminated - the host ended the session. Terminal: no reconnect
// attempt follows this.
func (that *Guest) handleTerminated(env *protocol.Envelope) error {
	var payload protocol.SessionTerminatedPayload
	if len(env.Data) > 0 {
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
	}

	that.logger.Info("session terminated by host", "reason", payload.Reason)

	that.mu.Lock()
	that.closed = true
	that.mu.Unlock()
	that.cancel()

	if fn := that.onTerminated; fn != nil {
		fn(payload.Reason)
	}
	if err := that.peer.Close(); err != nil {
		that.logger.Warn("failed to close transport", "error", err)
	}
	return nil
}

// linkLost - the transport dropped. Unless we closed it ourselves or the
// session ended, start fighting for the seat.
func (that *Guest) linkLost() {
	that.mu.Lock()
	if that.closed || that.playerID == 0 || that.state == ConnStateReconnecting {
		that.mu.Unlock()
		return
	}
	that.state = ConnStateReconnecting
	playerID := that.playerID
	that.mu.Unlock()

	if fn := that.onConnState; fn != nil {
		fn(ConnStateReconnecting)
	}
	go that.runReconnect(playerID)
}

func (that *Guest) signal(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}

func (that *Guest) notifyState() {
	if fn := that.onState; fn != nil {
		fn()
	}
}

func (that *Guest) setConnState(state ConnState) {
	that.mu.Lock()
	changed := that.state != state
	that.state = state
	that.mu.Unlock()

	if changed {
		if fn := that.onConnState; fn != nil {
			fn(state)
		}
	}
}

func (that *Guest) send(env *protocol.Envelope) error {
	if !that.peer.Send(hostPeerID, env) {
		return fmt.Errorf("%w: %s", errSendFailed, env.Type)
	}
	return nil
}

// RequestSync - asks the host for a full personalized snapshot.
func (that *Guest) RequestSync(reason string) error {
	that.mu.RLock()
	version := that.version
	that.mu.RUnlock()

	env, err := protocol.NewJSON(protocol.MsgStateSyncRequest, &protocol.StateSyncRequestPayload{
		Version: version,
		Reason:  reason,
	})
	if err != nil {
		return err
	}
	return that.send(env)
}

// Act - sends one generic table action to the host.
func (that *Guest) Act(actionType string, action any) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal %s action: %w", actionType, err)
	}

	env, err := protocol.NewJSON(protocol.MsgAction, &protocol.ActionPayload{Type: actionType, Data: data})
	if err != nil {
		return err
	}
	return that.send(env)
}

func (that *Guest) SetReady(ready bool) error {
	env, err := protocol.NewJSON(protocol.MsgPlayerReady, &protocol.PlayerReadyPayload{
		PlayerID: that.PlayerID(),
		Ready:    ready,
	})
	if err != nil {
		return err
	}
	return that.send(env)
}

func (that *Guest) ChangePhase(direction string) error {
	env, err := protocol.NewJSON(protocol.MsgPhaseChange, &protocol.PhaseChangePayload{Direction: direction})
	if err != nil {
		return err
	}
	return that.send(env)
}

func (that *Guest) PassTurn() error {
	env, err := protocol.NewJSON(protocol.MsgTurnChange, &protocol.TurnChangePayload{Pass: true})
	if err != nil {
		return err
	}
	return that.send(env)
}

func (that *Guest) SendEffect(effect *protocol.EffectPayload) error {
	env, err := protocol.NewJSON(protocol.MsgEffect, effect)
	if err != nil {
		return err
	}
	return that.send(env)
}

// Game - a clone of the local personalized copy, nil before the first
// snapshot.
func (that *Guest) Game() *entity.Game {
	that.mu.RLock()
	defer that.mu.RUnlock()

	if that.game == nil {
		return nil
	}
	return that.game.Clone()
}

func (that *Guest) PlayerID() int {
	that.mu.RLock()
	defer that.mu.RUnlock()
	return that.playerID
}

func (that *Guest) Version() int {
	that.mu.RLock()
	defer that.mu.RUnlock()
	return that.version
}

func (that *Guest) SessionID() string {
	that.mu.RLock()
	defer that.mu.RUnlock()
	return that.sessionID
}

func (that *Guest) ConnState() ConnState {
	that.mu.RLock()
	defer that.mu.RUnlock()
	return that.state
}

// Close - leaves the session. The host sees an ordinary disconnect and
// runs the usual grace window for the seat.
func (that *Guest) Close() error {
	that.mu.Lock()
	if that.closed {
		that.mu.Unlock()
		return nil
	}
	that.closed = true
	that.mu.Unlock()

	that.cancel()
	return that.peer.Close()
}
