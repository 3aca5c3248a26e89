package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
)

var (
	ErrUnknownDefinition = errors.New("unknown card definition")
	ErrUnknownDeck       = errors.New("unknown deck")
	ErrEmptyCatalog      = errors.New("catalog has no definitions")
)

// Definition is the static side of a card. It never travels over the wire;
// every peer resolves it locally by base id.
type Definition struct {
	BaseID    string   `json:"base_id"`
	Name      string   `json:"name"`
	Text      string   `json:"text,omitempty"`
	Image     string   `json:"image,omitempty"`
	BasePower int      `json:"base_power"`
	Abilities []string `json:"abilities,omitempty"`
}

// Deck is an ordered list of base ids a player can bring into a session.
type Deck struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Cards []string `json:"cards"`
}

type Catalog struct {
	definitions map[string]Definition
	decks       map[string]Deck
	defaultDeck string
}

type catalogFile struct {
	Definitions []Definition `json:"definitions"`
	Decks       []Deck       `json:"decks"`
}

func New(definitions []Definition, decks []Deck) (*Catalog, error) {
	if len(definitions) == 0 {
		return nil, ErrEmptyCatalog
	}

	that := &Catalog{
		definitions: make(map[string]Definition, len(definitions)),
		decks:       make(map[string]Deck, len(decks)),
	}
	for _, def := range definitions {
		that.definitions[def.BaseID] = def
	}
	for i, deck := range decks {
		for _, baseID := range deck.Cards {
			if _, ok := that.definitions[baseID]; !ok {
				return nil, fmt.Errorf("%w: deck %q references %q", ErrUnknownDefinition, deck.ID, baseID)
			}
		}
		that.decks[deck.ID] = deck
		if i == 0 {
			that.defaultDeck = deck.ID
		}
	}

	return that, nil
}

// Load - reads a catalog file, falling back to the builtin set when no path
// is configured.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Builtin(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var file catalogFile
	if err = json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}

	return New(file.Definitions, file.Decks)
}

func (that *Catalog) Resolve(baseID string) (Definition, error) {
	def, ok := that.definitions[baseID]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownDefinition, baseID)
	}
	return def, nil
}

// Abilities - implements entity.AbilityResolver. Unknown base ids resolve
// to no abilities rather than failing, so a stale card can never block the
// turn machine.
func (that *Catalog) Abilities(baseID string) []string {
	return that.definitions[baseID].Abilities
}

// DeckByID - returns the named deck, or the default deck when the id is
// unknown or empty.
func (that *Catalog) DeckByID(id string) Deck {
	if deck, ok := that.decks[id]; ok {
		return deck
	}
	return that.decks[that.defaultDeck]
}

// BuildDeck - instantiates the deck's cards for an owner, in deck order.
func (that *Catalog) BuildDeck(deckID string, owner int) ([]*entity.Card, error) {
	deck := that.DeckByID(deckID)
	if len(deck.Cards) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDeck, deckID)
	}

	cards := make([]*entity.Card, 0, len(deck.Cards))
	for _, baseID := range deck.Cards {
		def, err := that.Resolve(baseID)
		if err != nil {
			return nil, err
		}
		cards = append(cards, entity.NewCard(def.BaseID, owner, def.BasePower))
	}

	return cards, nil
}
