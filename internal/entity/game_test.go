package entity

import (
	"testing"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard_Place(t *testing.T) {
	t.Run("Places a card on an empty cell", func(t *testing.T) {
		// Given: an empty board
		board := NewBoard(3, 5)
		card := NewCard("scout", 1, 2)

		// When: placing the card
		err := board.Place(1, 2, card)

		// Then: the cell holds the card
		require.NoError(t, err)
		got, err := board.At(1, 2)
		require.NoError(t, err)
		assert.Equal(t, card, got)
	})

	t.Run("Error on occupied cell", func(t *testing.T) {
		// Given: a board with a card at 0,0
		board := NewBoard(3, 5)
		require.NoError(t, board.Place(0, 0, NewCard("scout", 1, 2)))

		// When: placing another card on the same cell
		err := board.Place(0, 0, NewCard("golem", 2, 4))

		// Then: ErrCellOccupied is returned and the cell is unchanged
		require.ErrorIs(t, err, apperror.ErrCellOccupied)
		got, err := board.At(0, 0)
		require.NoError(t, err)
		assert.Equal(t, "scout", got.BaseID)
	})

	t.Run("Error on out-of-bounds coordinates", func(t *testing.T) {
		// Given: a 3x5 board
		board := NewBoard(3, 5)

		// When: placing outside the grid
		err := board.Place(3, 0, NewCard("scout", 1, 2))

		// Then: ErrInvalidCell is returned
		assert.ErrorIs(t, err, apperror.ErrInvalidCell)
	})
}

func TestPlayer_ZoneMoves(t *testing.T) {
	t.Run("RemoveCard pulls the card out of its zone", func(t *testing.T) {
		// Given: a player with two cards in hand
		player := NewPlayer(1, "ana", "red")
		first := NewCard("scout", 1, 2)
		second := NewCard("golem", 1, 4)
		player.Hand = []*Card{first, second}

		// When: removing the first card
		removed := player.RemoveCard(first.ID)

		// Then: only the second card remains, order preserved
		require.NotNil(t, removed)
		assert.Equal(t, first.ID, removed.ID)
		require.Len(t, player.Hand, 1)
		assert.Equal(t, second.ID, player.Hand[0].ID)
	})

	t.Run("DrawCard moves the top deck card into the hand", func(t *testing.T) {
		// Given: a player with an ordered deck
		player := NewPlayer(1, "ana", "red")
		top := NewCard("scout", 1, 2)
		bottom := NewCard("golem", 1, 4)
		player.Deck = []*Card{top, bottom}

		// When: drawing
		drawn := player.DrawCard()

		// Then: the top card is now the last card in hand
		require.NotNil(t, drawn)
		assert.Equal(t, top.ID, drawn.ID)
		require.Len(t, player.Hand, 1)
		require.Len(t, player.Deck, 1)
		assert.Equal(t, bottom.ID, player.Deck[0].ID)
	})

	t.Run("DrawCard on an empty deck is a no-op", func(t *testing.T) {
		// Given: a player with no deck
		player := NewPlayer(1, "ana", "red")

		// When: drawing
		drawn := player.DrawCard()

		// Then: nothing happens
		assert.Nil(t, drawn)
		assert.Empty(t, player.Hand)
	})
}

func TestCard_Statuses(t *testing.T) {
	t.Run("AddStatus is idempotent", func(t *testing.T) {
		// Given: a card
		card := NewCard("scout", 1, 2)

		// When: adding the same status twice
		card.AddStatus(StatusFrozen)
		card.AddStatus(StatusFrozen)

		// Then: the status set holds it once
		assert.Equal(t, []string{StatusFrozen}, card.Statuses)
	})

	t.Run("IsRevealed via face-up flag or revealed status", func(t *testing.T) {
		// Given: a face-down card
		card := NewCard("scout", 1, 2)
		assert.False(t, card.IsRevealed())

		// When: marking it revealed
		card.AddStatus(StatusRevealed)

		// Then: it reads as revealed without being face up
		assert.True(t, card.IsRevealed())
		assert.False(t, card.FaceUp)
	})
}

func TestGame_AddPlayer(t *testing.T) {
	t.Run("Assigns the lowest unused id", func(t *testing.T) {
		// Given: a game with seats 1 and 3 taken
		game := NewGame(3, 5)
		game.Players = []*Player{NewPlayer(1, "host", "red"), NewPlayer(3, "cara", "blue")}

		// When: a new player joins
		player := game.AddPlayer("bram", "green")

		// Then: the gap is filled first
		assert.Equal(t, 2, player.ID)

		// And: the next join takes the next free id
		assert.Equal(t, 4, game.AddPlayer("dina", "gold").ID)
	})
}

func TestGame_FindCard(t *testing.T) {
	t.Run("Finds cards across zones and the board", func(t *testing.T) {
		// Given: a game with a card in hand and a card on the board
		game := NewGame(3, 5)
		player := game.AddPlayer("ana", "red")
		inHand := NewCard("scout", player.ID, 2)
		player.AddToHand(inHand)
		onBoard := NewCard("golem", player.ID, 4)
		require.NoError(t, game.Board.Place(0, 0, onBoard))

		// When / Then: both are found with their zone
		card, zone := game.FindCard(inHand.ID)
		require.NotNil(t, card)
		assert.Equal(t, ZoneHand, zone)

		card, zone = game.FindCard(onBoard.ID)
		require.NotNil(t, card)
		assert.Equal(t, ZoneBoard, zone)

		// And: an unknown id yields nothing
		card, _ = game.FindCard("missing")
		assert.Nil(t, card)
	})
}

func TestGame_Clone(t *testing.T) {
	t.Run("Clone is deep", func(t *testing.T) {
		// Given: a game with a seated player and a board card
		game := NewGame(3, 5)
		player := game.AddPlayer("ana", "red")
		player.AddToHand(NewCard("scout", player.ID, 2))
		require.NoError(t, game.Board.Place(1, 1, NewCard("golem", player.ID, 4)))
		game.Targeting = &Targeting{PlayerID: player.ID, Mode: "cell"}

		// When: cloning and mutating the clone
		clone := game.Clone()
		clone.Players[0].Hand[0].Power = 99
		clone.Players[0].Score = 7
		clone.Board.Cells[1][1].AddStatus(StatusFrozen)
		clone.Targeting.Mode = "card"

		// Then: the original is untouched
		assert.Equal(t, 2, game.Players[0].Hand[0].Power)
		assert.Equal(t, 0, game.Players[0].Score)
		assert.Empty(t, game.Board.Cells[1][1].Statuses)
		assert.Equal(t, "cell", game.Targeting.Mode)
	})
}
