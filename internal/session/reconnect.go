package session

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
)

// ConnState is the guest's view of its link to the host.
type ConnState string

const (
	ConnStateConnected    ConnState = "connected"
	ConnStateReconnecting ConnState = "reconnecting"
	ConnStateFailed       ConnState = "failed"
)

var errNoVerdict = errors.New("no reconnect verdict in time")

// ReconnectConfig tunes the fight to get a dropped seat back. The window
// must stay inside the host's disconnect grace, or the seat turns into a
// stand-in while we are still retrying.
type ReconnectConfig struct {
	Window          time.Duration
	DialTimeout     time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func (that ReconnectConfig) withDefaults() ReconnectConfig {
	if that.Window <= 0 {
		that.Window = 30 * time.Second
	}
	if that.DialTimeout <= 0 {
		that.DialTimeout = 5 * time.Second
	}
	if that.InitialInterval <= 0 {
		that.InitialInterval = 500 * time.Millisecond
	}
	if that.MaxInterval <= 0 {
		that.MaxInterval = 5 * time.Second
	}
	return that
}

// runReconnect - drives the reconnection loop: dial, claim the old seat,
// wait for the verdict, back off, try again. Gives up when the window
// elapses, the host rejects the claim or the session closes under us.
func (that *Guest) runReconnect(playerID int) {
	cfg := that.cfg.Reconnect.withDefaults()

	that.logger.Warn("connection lost, reconnecting",
		"player_id", playerID,
		"window", cfg.Window.String(),
	)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialInterval
	policy.MaxInterval = cfg.MaxInterval
	policy.MaxElapsedTime = cfg.Window

	attempt := 0
	operation := func() error {
		attempt++
		return that.attemptReconnect(playerID, attempt, cfg.DialTimeout)
	}

	if err := backoff.Retry(operation, backoff.WithContext(policy, that.ctx)); err != nil {
		that.logger.Error("reconnection failed", "player_id", playerID, "attempts", attempt, "error", err)
		that.setConnState(ConnStateFailed)
		return
	}

	that.logger.Info("reconnected", "player_id", playerID, "attempts", attempt)
	that.setConnState(ConnStateConnected)
}

func (that *Guest) attemptReconnect(playerID, attempt int, dialTimeout time.Duration) error {
	that.logger.Info("reconnect attempt", "attempt", attempt)

	that.mu.RLock()
	url := that.url
	that.mu.RUnlock()

	dialCtx, cancel := context.WithTimeout(that.ctx, dialTimeout)
	defer cancel()

	if err := that.peer.Dial(dialCtx, url); err != nil {
		return err
	}

	// a verdict from an earlier attempt must not answer this one
	select {
	case <-that.reconnectCh:
	default:
	}

	env, err := protocol.NewJSON(protocol.MsgReconnectRequest, &protocol.ReconnectRequestPayload{PlayerID: playerID})
	if err != nil {
		return backoff.Permanent(err)
	}
	if err = that.send(env); err != nil {
		return err
	}

	select {
	case err = <-that.reconnectCh:
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	case <-time.After(dialTimeout):
		return errNoVerdict
	case <-that.ctx.Done():
		return backoff.Permanent(that.ctx.Err())
	}
}
