package entity

import "slices"

const (
	ZoneHand    = "hand"
	ZoneDeck    = "deck"
	ZoneDiscard = "discard"
	ZoneBoard   = "board"
)

type Player struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Color          string  `json:"color,omitempty"`
	IsDummy        bool    `json:"is_dummy"`
	IsDisconnected bool    `json:"is_disconnected"`
	IsReady        bool    `json:"is_ready"`
	Score          int     `json:"score"`
	Hand           []*Card `json:"hand,omitempty"`
	Deck           []*Card `json:"deck,omitempty"`
	Discard        []*Card `json:"discard,omitempty"`
}

func NewPlayer(id int, name, color string) *Player {
	return &Player{
		ID:    id,
		Name:  name,
		Color: color,
	}
}

// Zone - returns the named zone slice. Zones are order-significant, so
// callers must treat the result as an ordered list, never a set.
func (that *Player) Zone(zone string) []*Card {
	switch zone {
	case ZoneHand:
		return that.Hand
	case ZoneDeck:
		return that.Deck
	case ZoneDiscard:
		return that.Discard
	default:
		return nil
	}
}

func (that *Player) setZone(zone string, cards []*Card) {
	switch zone {
	case ZoneHand:
		that.Hand = cards
	case ZoneDeck:
		that.Deck = cards
	case ZoneDiscard:
		that.Discard = cards
	}
}

// FindCard - looks the card up across the player's zones.
func (that *Player) FindCard(cardID string) (*Card, string, int) {
	for _, zone := range []string{ZoneHand, ZoneDeck, ZoneDiscard} {
		for i, card := range that.Zone(zone) {
			if card.ID == cardID {
				return card, zone, i
			}
		}
	}
	return nil, "", -1
}

// RemoveCard - removes the card from whichever zone holds it. The zone
// slice is reassigned in one step so a failed lookup leaves every zone
// untouched.
func (that *Player) RemoveCard(cardID string) *Card {
	card, zone, i := that.FindCard(cardID)
	if card == nil {
		return nil
	}
	that.setZone(zone, slices.Delete(that.Zone(zone), i, i+1))
	return card
}

func (that *Player) AddToHand(card *Card)    { that.Hand = append(that.Hand, card) }
func (that *Player) AddToDiscard(card *Card) { that.Discard = append(that.Discard, card) }

// DrawCard - moves the top deck card into the hand. Returns nil when the
// deck is empty; the draw step is simply skipped in that case.
func (that *Player) DrawCard() *Card {
	if len(that.Deck) == 0 {
		return nil
	}
	card := that.Deck[0]
	that.Deck = slices.Delete(that.Deck, 0, 1)
	that.Hand = append(that.Hand, card)
	return card
}

func (that *Player) Clone() *Player {
	clone := *that
	clone.Hand = cloneCards(that.Hand)
	clone.Deck = cloneCards(that.Deck)
	clone.Discard = cloneCards(that.Discard)
	return &clone
}

func cloneCards(cards []*Card) []*Card {
	if cards == nil {
		return nil
	}
	out := make([]*Card, len(cards))
	for i, card := range cards {
		out[i] = card.Clone()
	}
	return out
}
