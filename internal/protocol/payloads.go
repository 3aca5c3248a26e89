package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/view"
)

const maxNameLength = 64

// Action verbs carried inside the generic ACTION message. Anything the
// protocol has not promoted to a first-class type travels as one of these.
const (
	ActionPlaceCard     = "place_card"
	ActionMoveCard      = "move_card"
	ActionDiscardCard   = "discard_card"
	ActionFlipCard      = "flip_card"
	ActionSetPower      = "set_power"
	ActionAddStatus     = "add_status"
	ActionRemoveStatus  = "remove_status"
	ActionUseAbility    = "use_ability"
	ActionAdjustScore   = "adjust_score"
	ActionRequestReveal = "request_reveal"
)

// Visual effect kinds relayed between peers.
const (
	EffectHighlight    = "highlight"
	EffectFloatingText = "floating_text"
	EffectTargeting    = "targeting"
)

// Reconnect rejection reasons.
const (
	ReasonWindowExpired = "window_expired"
	ReasonUnknownPlayer = "unknown_player"
	ReasonSeatOccupied  = "seat_occupied"
)

// Phase navigation directions.
const (
	DirectionNext = "next"
	DirectionPrev = "prev"
)

var (
	errNameRequired     = errors.New("name is required")
	errNameTooLong      = errors.New("name is too long")
	errPlayerRequired   = errors.New("player id is required")
	errActionRequired   = errors.New("action type is required")
	errViewRequired     = errors.New("view is required")
	errUnknownEffect    = errors.New("unknown effect kind")
	errUnknownDirection = errors.New("unknown direction")
)

type JoinRequestPayload struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Deck  string `json:"deck,omitempty"`
}

func (that *JoinRequestPayload) Validate() error {
	if that.Name == "" {
		return errNameRequired
	}
	if len(that.Name) > maxNameLength {
		return errNameTooLong
	}
	return nil
}

type JoinAcceptMinimalPayload struct {
	PlayerID  int    `json:"player_id"`
	SessionID string `json:"session_id,omitempty"`
}

func (that *JoinAcceptMinimalPayload) Validate() error {
	if that.PlayerID <= 0 {
		return errPlayerRequired
	}
	return nil
}

// SnapshotPayload carries a full personalized state. STATE_UPDATE and
// RECONNECT_ACCEPT send it as JSON; JOIN_ACCEPT_BINARY sends it gob-encoded.
type SnapshotPayload struct {
	Version  int            `json:"version"`
	PlayerID int            `json:"player_id,omitempty"`
	View     *view.GameView `json:"view"`
}

func (that *SnapshotPayload) Validate() error {
	if that.View == nil {
		return errViewRequired
	}
	return nil
}

type StateSyncRequestPayload struct {
	Version int    `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type ActionPayload struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (that *ActionPayload) Validate() error {
	if that.Type == "" {
		return errActionRequired
	}
	return nil
}

// DecodeData - unmarshals the action sub-payload into dst.
func (that *ActionPayload) DecodeData(dst any) error {
	if err := json.Unmarshal(that.Data, dst); err != nil {
		return fmt.Errorf("invalid %s data: %w", that.Type, err)
	}
	return nil
}

type PlaceCardAction struct {
	CardID string `json:"card_id"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
	FaceUp bool   `json:"face_up"`
}

type MoveCardAction struct {
	CardID string `json:"card_id"`
	Row    int    `json:"row"`
	Col    int    `json:"col"`
}

type CardAction struct {
	CardID string `json:"card_id"`
}

type SetPowerAction struct {
	CardID string `json:"card_id"`
	Power  int    `json:"power"`
}

type StatusAction struct {
	CardID string `json:"card_id"`
	Status string `json:"status"`
}

type UseAbilityAction struct {
	CardID  string `json:"card_id"`
	Ability string `json:"ability"`
}

type AdjustScoreAction struct {
	PlayerID int `json:"player_id"`
	Points   int `json:"points"`
}

type PlayerReadyPayload struct {
	PlayerID int  `json:"player_id"`
	Ready    bool `json:"ready"`
}

func (that *PlayerReadyPayload) Validate() error {
	if that.PlayerID <= 0 {
		return errPlayerRequired
	}
	return nil
}

type GameStartPayload struct {
	HandSize int `json:"hand_size,omitempty"`
}

type PhaseChangePayload struct {
	Direction string `json:"direction"`
}

func (that *PhaseChangePayload) Validate() error {
	if that.Direction != DirectionNext && that.Direction != DirectionPrev {
		return fmt.Errorf("%w: %q", errUnknownDirection, that.Direction)
	}
	return nil
}

// TurnChangePayload either toggles the named player as active or passes
// the turn to the next seat.
type TurnChangePayload struct {
	PlayerID int  `json:"player_id,omitempty"`
	Pass     bool `json:"pass,omitempty"`
}

func (that *TurnChangePayload) Validate() error {
	if !that.Pass && that.PlayerID <= 0 {
		return errPlayerRequired
	}
	return nil
}

type CellRef struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// EffectPayload is relayed to every other peer verbatim. Effects never
// touch authoritative state, they only synchronize what clients render.
type EffectPayload struct {
	Kind     string    `json:"kind"`
	PlayerID int       `json:"player_id,omitempty"`
	Cells    []CellRef `json:"cells,omitempty"`
	Text     string    `json:"text,omitempty"`
	CardID   string    `json:"card_id,omitempty"`
	Mode     string    `json:"mode,omitempty"`
}

func (that *EffectPayload) Validate() error {
	switch that.Kind {
	case EffectHighlight, EffectFloatingText, EffectTargeting:
		return nil
	default:
		return fmt.Errorf("%w: %q", errUnknownEffect, that.Kind)
	}
}

type ReconnectRequestPayload struct {
	PlayerID int `json:"player_id"`
}

func (that *ReconnectRequestPayload) Validate() error {
	if that.PlayerID <= 0 {
		return errPlayerRequired
	}
	return nil
}

type ReconnectRejectPayload struct {
	Reason string `json:"reason"`
}

// PlayerStatusPayload backs the player lifecycle broadcasts: disconnected,
// reconnected, converted to a stand-in.
type PlayerStatusPayload struct {
	PlayerID int `json:"player_id"`
}

func (that *PlayerStatusPayload) Validate() error {
	if that.PlayerID <= 0 {
		return errPlayerRequired
	}
	return nil
}

type SessionTerminatedPayload struct {
	Reason string `json:"reason,omitempty"`
}
