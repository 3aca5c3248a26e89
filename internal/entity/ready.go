package entity

import "slices"

// RefreshReady - recomputes the ready sets of the player's board cards.
// A fresh turn makes every catalog ability of a card available again.
func (that *Game) RefreshReady(playerID int, resolver AbilityResolver) {
	that.Board.Each(func(_, _ int, card *Card) {
		if card.Owner != playerID {
			return
		}
		card.Ready = slices.Clone(resolver.Abilities(card.BaseID))
	})
}

// ClearReady - empties the ready sets of the player's board cards, marking
// every turn-scoped ability as spent.
func (that *Game) ClearReady(playerID int) {
	that.Board.Each(func(_, _ int, card *Card) {
		if card.Owner == playerID {
			card.Ready = nil
		}
	})
}

// SpendReady - consumes one ability from a card's ready set. Returns false
// when the ability was not ready.
func (that *Game) SpendReady(cardID, ability string) bool {
	card, zone := that.FindCard(cardID)
	if card == nil || zone != ZoneBoard || !card.HasReady(ability) {
		return false
	}
	card.Ready = slices.DeleteFunc(card.Ready, func(a string) bool {
		return a == ability
	})
	return true
}

// HasActionableCards - reports whether the player has any board card with a
// non-empty ready set. Nothing actionable in Commit means the Scoring phase
// would be empty and the turn can pass straight through.
func (that *Game) HasActionableCards(playerID int) bool {
	actionable := false
	that.Board.Each(func(_, _ int, card *Card) {
		if card.Owner == playerID && len(card.Ready) > 0 {
			actionable = true
		}
	})
	return actionable
}

// RefreshReadyStates - earlier name kept for callers of the old API.
//
// Deprecated: use RefreshReady.
func (that *Game) RefreshReadyStates(playerID int, resolver AbilityResolver) {
	that.RefreshReady(playerID, resolver)
}
