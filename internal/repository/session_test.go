package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/catalog"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/testing/suite"
)

func testSessionRecord(t *testing.T) *SessionRecord {
	t.Helper()

	cat := catalog.Builtin()
	game := entity.NewGame(4, 5)
	game.Phase = entity.PhaseMain
	game.Turn = 3
	game.ActivePlayerID = 2

	host := game.AddPlayer("ansel", "#d4a017")
	hostDeck, err := cat.BuildDeck("vanguard", host.ID)
	require.NoError(t, err)
	host.Deck = hostDeck

	guest := game.AddPlayer("mira", "#3a7bd5")
	guestDeck, err := cat.BuildDeck("shadow", guest.ID)
	require.NoError(t, err)
	guest.Deck = guestDeck

	return &SessionRecord{
		State:         game,
		Version:       42,
		LocalPlayerID: 1,
		IsHost:        true,
		PeerID:        "peer-host",
		SavedAt:       time.Now().UTC(),
	}
}

func TestSessionRepository_Save(t *testing.T) {
	ctx, st := suite.New(t)

	sessionRepo := NewSessionRepository(st.Redis)

	// Given: a record with a two player game in progress
	record := testSessionRecord(t)

	// When: Save is called
	err := sessionRepo.Save(ctx, "table-1", record)

	// Then: no error should be returned
	require.NoError(t, err)
}

func TestSessionRepository_Load(t *testing.T) {
	t.Run("Load_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Redis)

		// Given: a saved record with a two player game in progress
		record := testSessionRecord(t)

		err := sessionRepo.Save(ctx, "table-1", record)
		require.NoError(t, err)

		// When: Load is called with the existing ID
		restored, err := sessionRepo.Load(ctx, "table-1")

		// Then: the restored record should match the saved one
		require.NoError(t, err)
		require.Equal(t, record.Version, restored.Version)
		require.Equal(t, record.LocalPlayerID, restored.LocalPlayerID)
		require.Equal(t, record.IsHost, restored.IsHost)
		require.Equal(t, record.PeerID, restored.PeerID)
		assert.WithinDuration(t, record.SavedAt, restored.SavedAt, time.Second)

		// And: the game state should survive the round trip intact
		require.Len(t, restored.State.Players, 2)
		assert.Equal(t, entity.PhaseMain, restored.State.Phase)
		assert.Equal(t, 3, restored.State.Turn)
		assert.Equal(t, 2, restored.State.ActivePlayerID)
		assert.Equal(t, record.State.Board.Rows, restored.State.Board.Rows)
		assert.Equal(t, record.State.Board.Cols, restored.State.Board.Cols)

		savedDeck := record.State.PlayerByID(1).Deck
		restoredDeck := restored.State.PlayerByID(1).Deck
		require.Len(t, restoredDeck, len(savedDeck))
		assert.Equal(t, savedDeck[0].ID, restoredDeck[0].ID)
	})

	t.Run("Load_NotFound", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Redis)

		// When: Load is called with a non-existent ID
		restored, err := sessionRepo.Load(ctx, "no-such-table")

		// Then: an ErrSessionNotFound error should be returned
		require.Error(t, err)
		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
		assert.Nil(t, restored)
	})
}

func TestSessionRepository_Delete(t *testing.T) {
	t.Run("Delete_Success", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Redis)

		// Given: a saved record
		record := testSessionRecord(t)

		err := sessionRepo.Save(ctx, "table-1", record)
		require.NoError(t, err)

		// When: Delete is called with the existing ID
		err = sessionRepo.Delete(ctx, "table-1")

		// Then: no error should be returned and the record is gone
		require.NoError(t, err)

		_, err = sessionRepo.Load(ctx, "table-1")
		require.ErrorIs(t, err, apperror.ErrSessionNotFound)
	})

	t.Run("Delete_Missing", func(t *testing.T) {
		ctx, st := suite.New(t)

		sessionRepo := NewSessionRepository(st.Redis)

		// When: Delete is called with a non-existent ID
		err := sessionRepo.Delete(ctx, "no-such-table")

		// Then: deleting nothing is not an error
		require.NoError(t, err)
	})
}
