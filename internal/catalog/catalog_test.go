package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Builtin(t *testing.T) {
	t.Run("Builtin set resolves and builds decks", func(t *testing.T) {
		// Given: the builtin catalog
		cat := Builtin()

		// When: resolving a known definition
		def, err := cat.Resolve("golem")

		// Then: the static fields are present
		require.NoError(t, err)
		assert.Equal(t, "Forge Golem", def.Name)
		assert.Equal(t, 5, def.BasePower)

		// And: building a deck yields owned instances in deck order
		cards, err := cat.BuildDeck("vanguard", 3)
		require.NoError(t, err)
		require.NotEmpty(t, cards)
		assert.Equal(t, "scout", cards[0].BaseID)
		for _, card := range cards {
			assert.Equal(t, 3, card.Owner)
			assert.NotEmpty(t, card.ID)
		}
	})

	t.Run("Unknown deck falls back to the default", func(t *testing.T) {
		// Given: the builtin catalog
		cat := Builtin()

		// When: asking for a deck that does not exist
		deck := cat.DeckByID("no-such-deck")

		// Then: the default deck is returned
		assert.Equal(t, "vanguard", deck.ID)
	})

	t.Run("Unknown base id resolves to no abilities", func(t *testing.T) {
		// Given: the builtin catalog
		cat := Builtin()

		// Then: the resolver stays total
		assert.Empty(t, cat.Abilities("no-such-card"))
	})
}

func TestCatalog_Load(t *testing.T) {
	t.Run("Empty path loads the builtin set", func(t *testing.T) {
		// When: loading without a path
		cat, err := Load("")

		// Then: the builtin set is used
		require.NoError(t, err)
		_, err = cat.Resolve("scout")
		assert.NoError(t, err)
	})

	t.Run("Loads a catalog file", func(t *testing.T) {
		// Given: a minimal catalog file
		path := filepath.Join(t.TempDir(), "catalog.json")
		raw := `{
			"definitions": [{"base_id": "imp", "name": "Imp", "base_power": 1, "abilities": ["strike"]}],
			"decks": [{"id": "tiny", "name": "Tiny", "cards": ["imp", "imp"]}]
		}`
		require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

		// When: loading it
		cat, err := Load(path)

		// Then: definitions and decks are available
		require.NoError(t, err)
		def, err := cat.Resolve("imp")
		require.NoError(t, err)
		assert.Equal(t, "Imp", def.Name)
		cards, err := cat.BuildDeck("tiny", 1)
		require.NoError(t, err)
		assert.Len(t, cards, 2)
	})

	t.Run("Error when a deck references a missing definition", func(t *testing.T) {
		// Given: a catalog file with a dangling deck reference
		path := filepath.Join(t.TempDir(), "catalog.json")
		raw := `{
			"definitions": [{"base_id": "imp", "name": "Imp", "base_power": 1}],
			"decks": [{"id": "bad", "name": "Bad", "cards": ["ghost"]}]
		}`
		require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

		// When: loading it
		_, err := Load(path)

		// Then: the dangling reference is rejected
		assert.ErrorIs(t, err, ErrUnknownDefinition)
	})
}
