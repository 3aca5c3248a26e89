package entity

import (
	"errors"
	"fmt"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
)

var ErrUnknownPhase = errors.New("unknown phase")

// AbilityResolver yields the turn-scoped abilities a card definition
// grants. The content catalog implements it; both sides hold the same
// catalog, so ability sets never travel over the wire.
type AbilityResolver interface {
	Abilities(baseID string) []string
}

// StartGame - deals every seated player their opening hand and hands the
// first turn to the first seat.
func (that *Game) StartGame(resolver AbilityResolver, handSize int) error {
	if that.IsStarted() {
		return apperror.ErrGameAlreadyStarted
	}
	if len(that.Players) == 0 {
		return apperror.ErrNoPlayers
	}

	for _, player := range that.Players {
		that.ShuffleDeck(player.ID)
		for i := 0; i < handSize; i++ {
			player.DrawCard()
		}
		player.IsReady = false
	}

	that.Round = 1
	that.Turn = 1
	that.ActivePlayerID = that.Players[0].ID
	that.Phase = PhasePreparation
	that.RefreshReady(that.ActivePlayerID, resolver)

	return nil
}

// NextPhase - advances the active player's phase by one step. From Commit
// with nothing actionable on the board the empty Scoring phase is skipped
// and the turn passes immediately; from Scoring the turn always passes.
func (that *Game) NextPhase(resolver AbilityResolver) error {
	if err := that.ConfirmStarted(); err != nil {
		return err
	}

	switch that.Phase {
	case PhasePreparation:
		that.Phase = PhaseSetup
	case PhaseSetup:
		that.Phase = PhaseMain
	case PhaseMain:
		that.Phase = PhaseCommit
	case PhaseCommit:
		if !that.HasActionableCards(that.ActivePlayerID) {
			return that.PassTurn(resolver)
		}
		that.Phase = PhaseScoring
		that.ScoringStep = true
	case PhaseScoring:
		return that.PassTurn(resolver)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPhase, that.Phase)
	}

	return nil
}

// PrevPhase - steps the phase back by one. Setup is the floor: manual
// navigation never re-enters Preparation, because only turn-passing may
// perform the draw step that Preparation implies.
func (that *Game) PrevPhase() error {
	if err := that.ConfirmStarted(); err != nil {
		return err
	}

	switch that.Phase {
	case PhaseScoring:
		that.Phase = PhaseCommit
		that.ScoringStep = false
	case PhaseCommit:
		that.Phase = PhaseMain
	case PhaseMain:
		that.Phase = PhaseSetup
	case PhaseSetup, PhasePreparation:
		// clamped
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPhase, that.Phase)
	}

	return nil
}

// ToggleActivePlayer - selects the player as active, or deselects when the
// player is already active.
func (that *Game) ToggleActivePlayer(playerID int) error {
	if that.PlayerByID(playerID) == nil {
		return fmt.Errorf("%w: %d", apperror.ErrUnknownPlayer, playerID)
	}

	if that.ActivePlayerID == playerID {
		that.ActivePlayerID = 0
	} else {
		that.ActivePlayerID = playerID
	}

	return nil
}

// NextSeat - the seat the turn would pass to: the player after the active
// one in seating order, wrapping around and including stand-ins. Nil when
// nobody is seated. Read-only, the pass itself happens in PassTurn.
func (that *Game) NextSeat() *Player {
	if len(that.Players) == 0 {
		return nil
	}

	current := -1
	for i, player := range that.Players {
		if player.ID == that.ActivePlayerID {
			current = i
			break
		}
	}
	return that.Players[(current+1)%len(that.Players)]
}

// PassTurn - hands the turn to the next player in seating order, wrapping
// around and including stand-ins. The new active player enters Preparation,
// draws, and gets fresh ready flags.
func (that *Game) PassTurn(resolver AbilityResolver) error {
	if err := that.ConfirmStarted(); err != nil {
		return err
	}

	next := that.NextSeat()
	if next == nil {
		return apperror.ErrNoPlayers
	}

	that.Turn++
	if next == that.Players[0] && that.ActivePlayer() != nil {
		that.Round++
	}

	that.ActivePlayerID = next.ID
	that.Phase = PhasePreparation
	that.ScoringStep = false
	that.Targeting = nil

	next.IsReady = false
	next.DrawCard()
	that.RefreshReady(next.ID, resolver)

	return nil
}
