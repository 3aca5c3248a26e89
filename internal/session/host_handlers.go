package session

import (
	"fmt"
	"slices"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/metrics"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/timers"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/view"
)

// handleJoinRequest - seats a new player: a minimal accept the client can
// show a lobby from, then the full personalized snapshot on a binary
// frame. The join delta goes out before the joiner is bound, so nobody
// receives their own join twice.
func (that *Host) handleJoinRequest(peerID string, playerID int, env *protocol.Envelope) error {
	if peerID == loopbackPeerID {
		return apperror.ErrNotAuthorized
	}
	if playerID != 0 {
		return fmt.Errorf("peer is already player %d", playerID)
	}

	var payload protocol.JoinRequestPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	if that.game.IsStarted() {
		return apperror.ErrGameAlreadyStarted
	}
	if that.cfg.MaxPlayers > 0 && len(that.game.Players) >= that.cfg.MaxPlayers {
		return apperror.ErrSessionFull
	}

	var joined int
	err := that.mutate(0, func(tx *entity.Draft) error {
		player := tx.AddPlayer(payload.Name, payload.Color)
		deck, err := that.catalog.BuildDeck(payload.Deck, player.ID)
		if err != nil {
			return err
		}
		player.Deck = deck
		joined = player.ID
		return nil
	})
	if err != nil {
		return err
	}

	that.roster.Bind(peerID, joined)
	that.logger.Info("player joined", "player_id", joined, "name", payload.Name, "peer_id", peerID)

	minimal, err := protocol.NewJSON(protocol.MsgJoinAcceptMinimal, &protocol.JoinAcceptMinimalPayload{
		PlayerID:  joined,
		SessionID: that.cfg.SessionID,
	})
	if err != nil {
		return err
	}
	that.peer.Send(peerID, minimal)

	return that.sendSnapshot(peerID, joined, protocol.MsgJoinAcceptBinary)
}

// sendSnapshot - ships the recipient's full personalized state.
// JOIN_ACCEPT_BINARY travels gob-encoded on a binary frame; the JSON
// snapshot types carry the same payload in the open.
func (that *Host) sendSnapshot(peerID string, playerID int, msgType string) error {
	payload := &protocol.SnapshotPayload{
		Version:  that.version,
		PlayerID: playerID,
		View:     view.Snapshot(that.game, playerID),
	}

	var env *protocol.Envelope
	var err error
	if protocol.IsBinary(msgType) {
		env, err = protocol.NewBinary(msgType, payload)
	} else {
		env, err = protocol.NewJSON(msgType, payload)
	}
	if err != nil {
		return fmt.Errorf("failed to build %s snapshot: %w", msgType, err)
	}

	if that.peer.Send(peerID, env) {
		metrics.StateSyncs.WithLabelValues("snapshot").Inc()
	}
	return nil
}

// handleReconnectRequest - validates a claim on a disconnected seat. The
// reconnection window is exactly the armed disconnect timer: converted
// seats reject as expired, unknown ids as unknown, and any seat without
// an open window rejects as occupied. That last rule covers the host's
// own seat too, it never disconnects and is never claimable.
func (that *Host) handleReconnectRequest(peerID string, playerID int, env *protocol.Envelope) error {
	if playerID != 0 {
		return fmt.Errorf("peer is already player %d", playerID)
	}

	var payload protocol.ReconnectRequestPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	player := that.game.PlayerByID(payload.PlayerID)
	if player == nil {
		return that.rejectReconnect(peerID, payload.PlayerID, protocol.ReasonUnknownPlayer)
	}
	if player.IsDummy {
		return that.rejectReconnect(peerID, payload.PlayerID, protocol.ReasonWindowExpired)
	}
	if _, live := that.roster.PeerOf(payload.PlayerID); live || !player.IsDisconnected {
		return that.rejectReconnect(peerID, payload.PlayerID, protocol.ReasonSeatOccupied)
	}

	that.timers.Cancel(timers.KindDisconnect, payload.PlayerID)

	err := that.mutate(0, func(tx *entity.Draft) error {
		p := tx.Player(payload.PlayerID)
		if p == nil {
			return fmt.Errorf("%w: %d", apperror.ErrUnknownPlayer, payload.PlayerID)
		}
		p.IsDisconnected = false
		return nil
	})
	if err != nil {
		return err
	}

	that.roster.Bind(peerID, payload.PlayerID)
	metrics.ReconnectOutcomes.WithLabelValues("accepted").Inc()
	that.logger.Info("player reconnected", "player_id", payload.PlayerID, "peer_id", peerID)

	if err = that.sendSnapshot(peerID, payload.PlayerID, protocol.MsgReconnectAccept); err != nil {
		return err
	}
	that.announce(protocol.MsgPlayerReconnected, payload.PlayerID, peerID)
	return nil
}

// rejectReconnect - tells the claimant why and keeps the connection open;
// a rejected peer may still join as a new player.
func (that *Host) rejectReconnect(peerID string, playerID int, reason string) error {
	metrics.ReconnectOutcomes.WithLabelValues(reason).Inc()

	env, err := protocol.NewJSON(protocol.MsgReconnectReject, &protocol.ReconnectRejectPayload{Reason: reason})
	if err != nil {
		return err
	}
	that.peer.Send(peerID, env)

	return fmt.Errorf("reconnect rejected for player %d: %s", playerID, reason)
}

// handleStateSyncRequest - the guest's local copy diverged; answer with a
// fresh full snapshot.
func (that *Host) handleStateSyncRequest(peerID string, playerID int, env *protocol.Envelope) error {
	if playerID == 0 {
		return apperror.ErrUnknownPlayer
	}

	var payload protocol.StateSyncRequestPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	that.logger.Info("state resync requested",
		"player_id", playerID,
		"guest_version", payload.Version,
		"reason", payload.Reason,
	)

	return that.sendSnapshot(peerID, playerID, protocol.MsgStateUpdate)
}

// handleAction - the generic table verbs. Players move their own cards;
// the host moderates the whole table, stand-ins included.
func (that *Host) handleAction(peerID string, playerID int, env *protocol.Envelope) error {
	if playerID == 0 {
		return apperror.ErrUnknownPlayer
	}

	var payload protocol.ActionPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	if err := that.game.ConfirmStarted(); err != nil {
		return err
	}

	return that.mutate(playerID, func(tx *entity.Draft) error {
		return applyAction(tx, playerID, &payload)
	})
}

func (that *Host) handlePlayerReady(peerID string, playerID int, env *protocol.Envelope) error {
	if playerID == 0 {
		return apperror.ErrUnknownPlayer
	}

	var payload protocol.PlayerReadyPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	if playerID != entity.HostPlayerID && payload.PlayerID != playerID {
		return apperror.ErrNotAuthorized
	}

	return that.mutate(playerID, func(tx *entity.Draft) error {
		player := tx.Player(payload.PlayerID)
		if player == nil {
			return fmt.Errorf("%w: %d", apperror.ErrUnknownPlayer, payload.PlayerID)
		}
		player.IsReady = payload.Ready
		return nil
	})
}

// handleGameStart - host only. Deals the opening hands and enters the
// first turn; whether everyone is ready is the lobby UI's business, the
// host's word is final here.
func (that *Host) handleGameStart(peerID string, playerID int, env *protocol.Envelope) error {
	if playerID != entity.HostPlayerID {
		return apperror.ErrNotAuthorized
	}

	var payload protocol.GameStartPayload
	if len(env.Data) > 0 {
		if err := env.DecodePayload(&payload); err != nil {
			return err
		}
	}

	handSize := payload.HandSize
	if handSize <= 0 {
		handSize = that.cfg.HandSize
	}

	err := that.mutate(playerID, func(tx *entity.Draft) error {
		return tx.StartGame(that.catalog, handSize)
	})
	if err != nil {
		return err
	}

	that.logger.Info("game started", "players", len(that.game.Players), "hand_size", handSize)

	started, err := protocol.NewJSON(protocol.MsgGameStart, &protocol.GameStartPayload{HandSize: handSize})
	if err != nil {
		return err
	}
	that.peer.Broadcast(started, "")
	return nil
}

// handlePhaseChange - manual phase navigation by the active player, or
// the host overriding. Next from Commit may pass the whole turn when
// nothing on the board can still act.
func (that *Host) handlePhaseChange(peerID string, playerID int, env *protocol.Envelope) error {
	if playerID == 0 {
		return apperror.ErrUnknownPlayer
	}

	var payload protocol.PhaseChangePayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	if playerID != entity.HostPlayerID && playerID != that.game.ActivePlayerID {
		return apperror.ErrNotYourTurn
	}

	return that.mutate(playerID, func(tx *entity.Draft) error {
		if payload.Direction == protocol.DirectionNext {
			return tx.NextPhase(that.catalog)
		}
		return tx.PrevPhase()
	})
}

// handleTurnChange - pass hands the turn on, allowed to the active player
// and the host; selecting a seat directly is the host's moderation tool.
func (that *Host) handleTurnChange(peerID string, playerID int, env *protocol.Envelope) error {
	if playerID == 0 {
		return apperror.ErrUnknownPlayer
	}

	var payload protocol.TurnChangePayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	if payload.Pass {
		if playerID != entity.HostPlayerID && playerID != that.game.ActivePlayerID {
			return apperror.ErrNotYourTurn
		}
		return that.mutate(playerID, func(tx *entity.Draft) error {
			return tx.PassTurn(that.catalog)
		})
	}

	if playerID != entity.HostPlayerID {
		return apperror.ErrNotAuthorized
	}
	return that.mutate(playerID, func(tx *entity.Draft) error {
		return tx.ToggleActivePlayer(payload.PlayerID)
	})
}

// handleEffect - visual effects relay through the host untouched, stamped
// with the acting seat. Targeting is the exception: the overlay lives in
// replicated state, so late joiners and reconnecting players see it too.
func (that *Host) handleEffect(peerID string, playerID int, env *protocol.Envelope) error {
	if playerID == 0 {
		return apperror.ErrUnknownPlayer
	}

	var payload protocol.EffectPayload
	if err := env.DecodePayload(&payload); err != nil {
		return err
	}

	if payload.Kind == protocol.EffectTargeting {
		return that.mutate(playerID, func(tx *entity.Draft) error {
			if payload.Mode == "" {
				// the seat that raised the overlay takes it down, the host may moderate
				current := tx.Game().Targeting
				if current != nil && current.PlayerID != playerID && playerID != entity.HostPlayerID {
					return apperror.ErrNotAuthorized
				}
				tx.Game().Targeting = nil
				return nil
			}
			tx.Game().Targeting = &entity.Targeting{PlayerID: playerID, Mode: payload.Mode}
			return nil
		})
	}

	env.PlayerID = playerID
	that.peer.Broadcast(env, peerID)
	return nil
}

// allowed - a player acts on their own cards, the host acts on anything,
// and a stand-in's cards are open to every real player at the table.
func allowed(tx *entity.Draft, actorID, ownerID int) error {
	if actorID == entity.HostPlayerID || actorID == ownerID {
		return nil
	}
	if owner := tx.Game().PlayerByID(ownerID); owner != nil && owner.IsDummy {
		return nil
	}
	return apperror.ErrNotYourCard
}

//nolint: cyclop // one arm per action verb
func applyAction(tx *entity.Draft, actorID int, payload *protocol.ActionPayload) error {
	switch payload.Type {
	case protocol.ActionPlaceCard:
		var action protocol.PlaceCardAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return placeCard(tx, actorID, &action)
	case protocol.ActionMoveCard:
		var action protocol.MoveCardAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return moveCard(tx, actorID, &action)
	case protocol.ActionDiscardCard:
		var action protocol.CardAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return discardCard(tx, actorID, action.CardID)
	case protocol.ActionFlipCard:
		var action protocol.CardAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return flipCard(tx, actorID, action.CardID)
	case protocol.ActionSetPower:
		var action protocol.SetPowerAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return withOwnCard(tx, actorID, action.CardID, func(card *entity.Card) error {
			card.Power = action.Power
			return nil
		})
	case protocol.ActionAddStatus:
		var action protocol.StatusAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return changeStatus(tx, actorID, &action, true)
	case protocol.ActionRemoveStatus:
		var action protocol.StatusAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return changeStatus(tx, actorID, &action, false)
	case protocol.ActionUseAbility:
		var action protocol.UseAbilityAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return useAbility(tx, actorID, &action)
	case protocol.ActionAdjustScore:
		var action protocol.AdjustScoreAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return adjustScore(tx, actorID, &action)
	case protocol.ActionRequestReveal:
		var action protocol.CardAction
		if err := payload.DecodeData(&action); err != nil {
			return err
		}
		return requestReveal(tx, actorID, action.CardID)
	default:
		return fmt.Errorf("%w: action %q", apperror.ErrMalformedPayload, payload.Type)
	}
}

// withOwnCard - stages the card and runs fn after the ownership check.
func withOwnCard(tx *entity.Draft, actorID int, cardID string, fn func(card *entity.Card) error) error {
	card, _ := tx.Card(cardID)
	if card == nil {
		return fmt.Errorf("%w: %s", apperror.ErrUnknownCard, cardID)
	}
	if err := allowed(tx, actorID, card.Owner); err != nil {
		return err
	}
	return fn(card)
}

func placeCard(tx *entity.Draft, actorID int, action *protocol.PlaceCardAction) error {
	card, zone := tx.Card(action.CardID)
	if card == nil {
		return fmt.Errorf("%w: %s", apperror.ErrUnknownCard, action.CardID)
	}
	if err := allowed(tx, actorID, card.Owner); err != nil {
		return err
	}
	if zone != entity.ZoneHand {
		return fmt.Errorf("%w: %s is in %s, only hand cards can be placed", apperror.ErrUnknownCard, action.CardID, zone)
	}

	if err := tx.Board().Place(action.Row, action.Col, card); err != nil {
		return err
	}
	tx.Player(card.Owner).RemoveCard(card.ID)
	card.FaceUp = action.FaceUp
	return nil
}

func moveCard(tx *entity.Draft, actorID int, action *protocol.MoveCardAction) error {
	board := tx.Board()
	row, col, card := board.Find(action.CardID)
	if card == nil {
		return fmt.Errorf("%w: %s is not on the board", apperror.ErrUnknownCard, action.CardID)
	}
	if err := allowed(tx, actorID, card.Owner); err != nil {
		return err
	}
	if row == action.Row && col == action.Col {
		return nil
	}

	if err := board.Place(action.Row, action.Col, card); err != nil {
		return err
	}
	board.Cells[row][col] = nil
	return nil
}

func discardCard(tx *entity.Draft, actorID int, cardID string) error {
	card, zone := tx.Card(cardID)
	if card == nil {
		return fmt.Errorf("%w: %s", apperror.ErrUnknownCard, cardID)
	}
	if err := allowed(tx, actorID, card.Owner); err != nil {
		return err
	}
	if zone == entity.ZoneDiscard {
		return nil
	}

	owner := tx.Player(card.Owner)
	if zone == entity.ZoneBoard {
		board := tx.Board()
		row, col, _ := board.Find(card.ID)
		board.RemoveAt(row, col)
	} else {
		owner.RemoveCard(card.ID)
	}

	// turn-scoped abilities die with the board position
	card.Ready = nil
	owner.AddToDiscard(card)
	return nil
}

func flipCard(tx *entity.Draft, actorID int, cardID string) error {
	return withOwnCard(tx, actorID, cardID, func(card *entity.Card) error {
		card.FaceUp = !card.FaceUp
		if card.FaceUp {
			tx.SetRevealRequests(slices.DeleteFunc(tx.RevealRequests(), func(r entity.RevealRequest) bool {
				return r.CardID == card.ID
			}))
		}
		return nil
	})
}

func changeStatus(tx *entity.Draft, actorID int, action *protocol.StatusAction, add bool) error {
	if action.Status == "" {
		return fmt.Errorf("%w: empty status", apperror.ErrMalformedPayload)
	}
	return withOwnCard(tx, actorID, action.CardID, func(card *entity.Card) error {
		if add {
			card.AddStatus(action.Status)
		} else {
			card.RemoveStatus(action.Status)
		}
		return nil
	})
}

func useAbility(tx *entity.Draft, actorID int, action *protocol.UseAbilityAction) error {
	return withOwnCard(tx, actorID, action.CardID, func(card *entity.Card) error {
		if !tx.Game().SpendReady(card.ID, action.Ability) {
			return fmt.Errorf("%w: %s on %s", apperror.ErrAbilityNotReady, action.Ability, card.ID)
		}
		return nil
	})
}

func adjustScore(tx *entity.Draft, actorID int, action *protocol.AdjustScoreAction) error {
	if actorID != entity.HostPlayerID && actorID != action.PlayerID {
		return apperror.ErrNotAuthorized
	}

	player := tx.Player(action.PlayerID)
	if player == nil {
		return fmt.Errorf("%w: %d", apperror.ErrUnknownPlayer, action.PlayerID)
	}
	player.Score += action.Points
	return nil
}

// requestReveal - anyone may ask; the owner answers with a flip. Asking
// the same thing twice changes nothing. The card itself is only read, so
// the lookup stays on the shared tree.
func requestReveal(tx *entity.Draft, actorID int, cardID string) error {
	card, _ := tx.Game().FindCard(cardID)
	if card == nil {
		return fmt.Errorf("%w: %s", apperror.ErrUnknownCard, cardID)
	}
	if card.IsRevealed() {
		return nil
	}

	requests := tx.RevealRequests()
	for _, r := range requests {
		if r.CardID == cardID && r.PlayerID == actorID {
			return nil
		}
	}
	tx.SetRevealRequests(append(requests, entity.RevealRequest{CardID: cardID, PlayerID: actorID}))
	return nil
}
