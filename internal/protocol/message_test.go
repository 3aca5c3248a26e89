package protocol

import (
	"encoding/json"
	"testing"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/delta"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnown(t *testing.T) {
	t.Run("Every vocabulary type is known", func(t *testing.T) {
		for _, msgType := range []string{
			MsgJoinRequest, MsgJoinAcceptMinimal, MsgJoinAcceptBinary,
			MsgStateUpdate, MsgStateDelta, MsgStateDeltaBinary, MsgStateSyncRequest,
			MsgAction, MsgPlayerReady, MsgGameStart, MsgPhaseChange, MsgTurnChange,
			MsgEffect, MsgReconnectRequest, MsgReconnectAccept, MsgReconnectReject,
			MsgPlayerDisconnected, MsgPlayerReconnected, MsgPlayerConvertedToDummy,
			MsgSessionTerminated,
		} {
			assert.True(t, Known(msgType), msgType)
		}
	})

	t.Run("Anything outside the vocabulary is dropped", func(t *testing.T) {
		assert.False(t, Known("CHAT_MESSAGE"))
		assert.False(t, Known("state_delta"))
		assert.False(t, Known(""))
	})
}

func TestIsBinary(t *testing.T) {
	assert.True(t, IsBinary(MsgStateDeltaBinary))
	assert.True(t, IsBinary(MsgJoinAcceptBinary))
	assert.False(t, IsBinary(MsgStateDelta))
	assert.False(t, IsBinary(MsgStateUpdate))
}

func TestDecodePayload(t *testing.T) {
	t.Run("A valid payload round-trips and passes validation", func(t *testing.T) {
		// Given: a join request envelope
		env, err := NewJSON(MsgJoinRequest, &JoinRequestPayload{Name: "bram", Deck: "shadow"})
		require.NoError(t, err)
		assert.Positive(t, env.Timestamp)

		// When: decoding on the receiving side
		var payload JoinRequestPayload
		err = env.DecodePayload(&payload)

		// Then: the payload is intact
		require.NoError(t, err)
		assert.Equal(t, "bram", payload.Name)
		assert.Equal(t, "shadow", payload.Deck)
	})

	t.Run("Malformed JSON fails soft", func(t *testing.T) {
		// Given: an envelope with a broken payload
		env := New(MsgAction)
		env.Data = json.RawMessage(`{"type":`)

		// When: decoding
		var payload ActionPayload
		err := env.DecodePayload(&payload)

		// Then: the caller logs and drops
		assert.ErrorIs(t, err, apperror.ErrMalformedPayload)
	})

	t.Run("Boundary validation failures look the same as malformed JSON", func(t *testing.T) {
		// Given: a join request with no name
		env, err := NewJSON(MsgJoinRequest, &JoinRequestPayload{})
		require.NoError(t, err)

		// When: decoding
		var payload JoinRequestPayload
		err = env.DecodePayload(&payload)

		// Then: validation rejects it before any handler sees it
		assert.ErrorIs(t, err, apperror.ErrMalformedPayload)
	})

	t.Run("Unknown effect kinds never reach a handler", func(t *testing.T) {
		env, err := NewJSON(MsgEffect, &EffectPayload{Kind: "explosion"})
		require.NoError(t, err)

		var payload EffectPayload
		assert.ErrorIs(t, env.DecodePayload(&payload), apperror.ErrMalformedPayload)
	})
}

func TestDecodeBinaryPayload(t *testing.T) {
	t.Run("A snapshot survives the gob trip", func(t *testing.T) {
		// Given: a full snapshot riding a binary envelope
		snap := &SnapshotPayload{
			Version:  7,
			PlayerID: 2,
			View: &view.GameView{
				RecipientID:    2,
				Rows:           3,
				Cols:           5,
				Phase:          entity.PhaseMain,
				Round:          1,
				Turn:           2,
				ActivePlayerID: 1,
				Players: []view.PlayerView{
					{ID: 1, Name: "host", Hand: view.ZoneView{Count: 2}},
					{ID: 2, Name: "bram", Hand: view.ZoneView{
						Count: 1,
						Cards: []view.CardView{{ID: "c1", BaseID: "golem", Owner: 2, Power: 4}},
					}},
				},
			},
		}
		env, err := NewBinary(MsgJoinAcceptBinary, snap)
		require.NoError(t, err)
		require.NotEmpty(t, env.Binary)

		// When: decoding into a fresh payload
		var got SnapshotPayload
		err = env.DecodeBinaryPayload(&got)

		// Then: everything is intact
		require.NoError(t, err)
		assert.Equal(t, 7, got.Version)
		require.NotNil(t, got.View)
		assert.Equal(t, 2, got.View.RecipientID)
		require.Len(t, got.View.Players, 2)
		assert.Equal(t, 2, got.View.Players[0].Hand.Count)
		require.Len(t, got.View.Players[1].Hand.Cards, 1)
		assert.Equal(t, "golem", got.View.Players[1].Hand.Cards[0].BaseID)
	})

	t.Run("Garbage bytes fail soft", func(t *testing.T) {
		env := New(MsgJoinAcceptBinary)
		env.Binary = []byte{0x01, 0x02, 0x03}

		var got SnapshotPayload
		assert.ErrorIs(t, env.DecodeBinaryPayload(&got), apperror.ErrMalformedPayload)
	})
}

func TestDecodeBinaryJSON(t *testing.T) {
	t.Run("Explicit false keeps its meaning across the trip", func(t *testing.T) {
		// Given: a delta that clears flags, absence and false must differ
		step := false
		ready := false
		d := &delta.StateDelta{
			Version:     3,
			ScoringStep: &step,
			Players:     []delta.PlayerDelta{{ID: 2, IsReady: &ready}},
		}
		env, err := NewBinaryJSON(MsgStateDeltaBinary, d)
		require.NoError(t, err)

		// When: decoding
		var got delta.StateDelta
		err = env.DecodeBinaryJSON(&got)

		// Then: the cleared flags are still explicitly present
		require.NoError(t, err)
		require.NotNil(t, got.ScoringStep)
		assert.False(t, *got.ScoringStep)
		require.Len(t, got.Players, 1)
		require.NotNil(t, got.Players[0].IsReady)
		assert.False(t, *got.Players[0].IsReady)
		assert.Nil(t, got.Phase)
	})
}

func TestActionPayload_DecodeData(t *testing.T) {
	t.Run("The action sub-payload decodes by verb", func(t *testing.T) {
		// Given: a place card action
		raw, err := json.Marshal(&PlaceCardAction{CardID: "c9", Row: 1, Col: 4, FaceUp: true})
		require.NoError(t, err)
		action := &ActionPayload{Type: ActionPlaceCard, Data: raw}

		// When: decoding the sub-payload
		var place PlaceCardAction
		err = action.DecodeData(&place)

		// Then: the coordinates are intact
		require.NoError(t, err)
		assert.Equal(t, "c9", place.CardID)
		assert.Equal(t, 1, place.Row)
		assert.Equal(t, 4, place.Col)
		assert.True(t, place.FaceUp)
	})
}

func TestPayloadValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload Validator
		wantErr bool
	}{
		{name: "turn pass without a player id", payload: &TurnChangePayload{Pass: true}},
		{name: "turn toggle needs a player id", payload: &TurnChangePayload{}, wantErr: true},
		{name: "phase next", payload: &PhaseChangePayload{Direction: DirectionNext}},
		{name: "phase sideways", payload: &PhaseChangePayload{Direction: "sideways"}, wantErr: true},
		{name: "ready without a seat", payload: &PlayerReadyPayload{Ready: true}, wantErr: true},
		{name: "reconnect for seat zero", payload: &ReconnectRequestPayload{}, wantErr: true},
		{name: "reconnect for seat two", payload: &ReconnectRequestPayload{PlayerID: 2}},
		{name: "name at the length cap", payload: &JoinRequestPayload{Name: string(make([]byte, 65))}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
