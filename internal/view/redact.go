package view

import (
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/delta"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
)

// RedactDelta - applies one recipient's visibility rules to a delta that
// was diffed from full authoritative state. The host diffs once per
// transition and redacts per recipient; the input delta is never mutated,
// so the same delta can be redacted for every peer.
//
// Both states are needed: when a card or a whole player changes visibility
// class between old and new, the affected zones are re-emitted outright,
// because the recipient's local copy holds placeholders that an in-place
// merge could never update.
func RedactDelta(d *delta.StateDelta, oldGame, newGame *entity.Game, recipientID int) *delta.StateDelta {
	out := *d
	out.Players = nil

	for i := range d.Players {
		if pd := redactPlayerDelta(&d.Players[i], oldGame, newGame, recipientID); pd != nil {
			out.Players = append(out.Players, *pd)
		}
	}

	return &out
}

func redactPlayerDelta(pd *delta.PlayerDelta, oldGame, newGame *entity.Game, recipientID int) *delta.PlayerDelta {
	newOwner := newGame.PlayerByID(pd.ID)
	if newOwner == nil {
		return pd
	}
	visibleNow := visibleTo(newOwner, recipientID)

	if pd.Joined != nil {
		if visibleNow {
			return pd
		}
		out := *pd
		out.Joined = redactJoinedPlayer(pd.Joined)
		return &out
	}

	oldOwner := oldGame.PlayerByID(pd.ID)
	visibleBefore := oldOwner != nil && visibleTo(oldOwner, recipientID)

	if visibleNow && visibleBefore {
		return pd
	}

	out := *pd

	// visibility class flipped: the recipient's zone copies are stale in
	// kind, not just in content, so every zone ships again from scratch
	if visibleNow != visibleBefore {
		out.Hand = reemitZone(newOwner.Hand, visibleNow)
		out.Deck = reemitZone(newOwner.Deck, visibleNow)
		out.Discard = reemitZone(newOwner.Discard, visibleNow)
		return &out
	}

	out.Hand = redactZoneDelta(pd.Hand, zoneOf(oldOwner, entity.ZoneHand), newOwner.Hand)
	out.Deck = redactZoneDelta(pd.Deck, zoneOf(oldOwner, entity.ZoneDeck), newOwner.Deck)
	out.Discard = redactZoneDelta(pd.Discard, zoneOf(oldOwner, entity.ZoneDiscard), newOwner.Discard)

	if out.Score == nil && out.IsDummy == nil && out.IsDisconnected == nil && out.IsReady == nil &&
		out.Hand == nil && out.Deck == nil && out.Discard == nil {
		return nil
	}

	return &out
}

func redactZoneDelta(zd *delta.ZoneDelta, oldCards, newCards []*entity.Card) *delta.ZoneDelta {
	if zd == nil {
		return nil
	}

	if zd.Cards != nil {
		return &delta.ZoneDelta{Size: zd.Size, Cards: redactCards(zd.Cards)}
	}

	if zd.Updated != nil {
		for _, card := range zd.Updated {
			if card.IsRevealed() != wasRevealed(oldCards, card.ID) {
				// a card crossed the revealed boundary inside a hidden
				// zone; in-place merging cannot express that, re-emit
				return &delta.ZoneDelta{Size: len(newCards), Cards: redactCards(newCards)}
			}
		}

		var keep []*entity.Card
		for _, card := range zd.Updated {
			if card.IsRevealed() {
				keep = append(keep, card)
			}
		}
		if keep == nil {
			// only invisible content changed, the recipient sees nothing
			return nil
		}
		return &delta.ZoneDelta{Size: zd.Size, Updated: keep}
	}

	return zd
}

// redactCards - keeps revealed cards whole and collapses the rest to
// id-less placeholders that preserve nothing but the owner seat.
func redactCards(cards []*entity.Card) []*entity.Card {
	out := make([]*entity.Card, len(cards))
	for i, card := range cards {
		if card.IsRevealed() {
			out[i] = card.Clone()
		} else {
			out[i] = &entity.Card{Owner: card.Owner}
		}
	}
	return out
}

func reemitZone(cards []*entity.Card, visible bool) *delta.ZoneDelta {
	zd := &delta.ZoneDelta{Size: len(cards)}
	if visible {
		zd.Cards = make([]*entity.Card, len(cards))
		for i, card := range cards {
			zd.Cards[i] = card.Clone()
		}
		return zd
	}
	zd.Cards = redactCards(cards)
	return zd
}

func redactJoinedPlayer(player *entity.Player) *entity.Player {
	clone := player.Clone()
	clone.Hand = redactCards(clone.Hand)
	clone.Deck = redactCards(clone.Deck)
	clone.Discard = redactCards(clone.Discard)
	return clone
}

func wasRevealed(cards []*entity.Card, cardID string) bool {
	for _, card := range cards {
		if card.ID == cardID {
			return card.IsRevealed()
		}
	}
	return false
}

func zoneOf(player *entity.Player, zone string) []*entity.Card {
	if player == nil {
		return nil
	}
	return player.Zone(zone)
}
