package entity

import "slices"

// Draft stages one transition on top of a base game. The base is never
// written: top-level fields split when the draft opens, while players,
// the board and the reveal-request list are copied the first time a
// write needs them and stay shared with the base otherwise. A discarded
// draft therefore leaves nothing to undo, and a committed one carries
// every untouched seat over by reference.
type Draft struct {
	base    *Game
	next    *Game
	players map[int]bool
	board   bool
	reveals bool
}

// NewDraft - opens a transition over base.
func NewDraft(base *Game) *Draft {
	next := *base
	next.Players = slices.Clone(base.Players)
	return &Draft{
		base:    base,
		next:    &next,
		players: make(map[int]bool),
	}
}

// Game - the staged next version. Top-level fields may be written
// directly; players, board cells and reveal requests are still shared
// with the base until staged through the accessors.
func (that *Draft) Game() *Game {
	return that.next
}

// Player - the staged copy of one seat, cloned on first touch. Nil when
// the id is not seated.
func (that *Draft) Player(id int) *Player {
	if that.players[id] {
		return that.next.PlayerByID(id)
	}
	for i, player := range that.next.Players {
		if player.ID == id {
			staged := player.Clone()
			that.next.Players[i] = staged
			that.players[id] = true
			return staged
		}
	}
	return nil
}

// AddPlayer - seats a new player. A fresh struct needs no copy.
func (that *Draft) AddPlayer(name, color string) *Player {
	player := that.next.AddPlayer(name, color)
	that.players[player.ID] = true
	return player
}

// Board - the staged board, cloned with its cards on first touch.
func (that *Draft) Board() *Board {
	if !that.board {
		that.next.Board = that.base.Board.Clone()
		that.board = true
	}
	return that.next.Board
}

// Card - locates a card and stages whichever structure holds it, so the
// returned card is safe to write. Lookups that only read should go
// through Game instead and leave the holder shared.
func (that *Draft) Card(id string) (*Card, string) {
	for _, player := range that.next.Players {
		if _, zone, _ := player.FindCard(id); zone != "" {
			card, zone, _ := that.Player(player.ID).FindCard(id)
			return card, zone
		}
	}
	if _, _, card := that.next.Board.Find(id); card != nil {
		_, _, staged := that.Board().Find(id)
		return staged, ZoneBoard
	}
	return nil, ""
}

// RevealRequests - the staged reveal-request list, cloned on first touch
// and safe to shrink in place.
func (that *Draft) RevealRequests() []RevealRequest {
	if !that.reveals {
		that.next.RevealRequests = slices.Clone(that.base.RevealRequests)
		that.reveals = true
	}
	return that.next.RevealRequests
}

// SetRevealRequests - replaces the staged reveal-request list.
func (that *Draft) SetRevealRequests(requests []RevealRequest) {
	that.next.RevealRequests = requests
	that.reveals = true
}

// StartGame - the opening deal rewrites every seat, so the whole table
// stages up front.
func (that *Draft) StartGame(resolver AbilityResolver, handSize int) error {
	that.stageTable()
	return that.next.StartGame(resolver, handSize)
}

// NextPhase - advances the phase. Commit and Scoring may roll into a
// turn pass, which writes the incoming seat and its board cards.
func (that *Draft) NextPhase(resolver AbilityResolver) error {
	if that.next.Phase == PhaseCommit || that.next.Phase == PhaseScoring {
		that.stageTurnPass()
	}
	return that.next.NextPhase(resolver)
}

// PrevPhase - steps the phase back. Touches nothing but the phase field.
func (that *Draft) PrevPhase() error {
	return that.next.PrevPhase()
}

// ToggleActivePlayer - selects or deselects the active seat.
func (that *Draft) ToggleActivePlayer(playerID int) error {
	return that.next.ToggleActivePlayer(playerID)
}

// PassTurn - hands the turn on after staging what the pass writes.
func (that *Draft) PassTurn(resolver AbilityResolver) error {
	that.stageTurnPass()
	return that.next.PassTurn(resolver)
}

// stageTurnPass - a pass draws for the incoming seat and refreshes the
// ready sets of its board cards.
func (that *Draft) stageTurnPass() {
	if seat := that.next.NextSeat(); seat != nil {
		that.Player(seat.ID)
	}
	that.Board()
}

func (that *Draft) stageTable() {
	for _, player := range that.next.Players {
		that.Player(player.ID)
	}
	that.Board()
}
