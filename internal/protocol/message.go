package protocol

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
)

// The message vocabulary is closed: every type a peer may send or receive
// is listed here, and dispatch drops anything else. Types ending in
// _BINARY carry their payload as opaque bytes instead of JSON.
const (
	MsgJoinRequest            = "JOIN_REQUEST"
	MsgJoinAcceptMinimal      = "JOIN_ACCEPT_MINIMAL"
	MsgJoinAcceptBinary       = "JOIN_ACCEPT_BINARY"
	MsgStateUpdate            = "STATE_UPDATE"
	MsgStateDelta             = "STATE_DELTA"
	MsgStateDeltaBinary       = "STATE_DELTA_BINARY"
	MsgStateSyncRequest       = "STATE_SYNC_REQUEST"
	MsgAction                 = "ACTION"
	MsgPlayerReady            = "PLAYER_READY"
	MsgGameStart              = "GAME_START"
	MsgPhaseChange            = "PHASE_CHANGE"
	MsgTurnChange             = "TURN_CHANGE"
	MsgEffect                 = "EFFECT"
	MsgReconnectRequest       = "RECONNECT_REQUEST"
	MsgReconnectAccept        = "RECONNECT_ACCEPT"
	MsgReconnectReject        = "RECONNECT_REJECT"
	MsgPlayerDisconnected     = "PLAYER_DISCONNECTED"
	MsgPlayerReconnected      = "PLAYER_RECONNECTED"
	MsgPlayerConvertedToDummy = "PLAYER_CONVERTED_TO_DUMMY"
	MsgSessionTerminated      = "SESSION_TERMINATED"
)

const binarySuffix = "_BINARY"

var knownTypes = map[string]struct{}{
	MsgJoinRequest:            {},
	MsgJoinAcceptMinimal:      {},
	MsgJoinAcceptBinary:       {},
	MsgStateUpdate:            {},
	MsgStateDelta:             {},
	MsgStateDeltaBinary:       {},
	MsgStateSyncRequest:       {},
	MsgAction:                 {},
	MsgPlayerReady:            {},
	MsgGameStart:              {},
	MsgPhaseChange:            {},
	MsgTurnChange:             {},
	MsgEffect:                 {},
	MsgReconnectRequest:       {},
	MsgReconnectAccept:        {},
	MsgReconnectReject:        {},
	MsgPlayerDisconnected:     {},
	MsgPlayerReconnected:      {},
	MsgPlayerConvertedToDummy: {},
	MsgSessionTerminated:      {},
}

func Known(msgType string) bool {
	_, ok := knownTypes[msgType]
	return ok
}

// IsBinary - reports whether the type's payload travels as opaque bytes.
// Receivers branch on the suffix, never on the transport frame kind alone.
func IsBinary(msgType string) bool {
	return strings.HasSuffix(msgType, binarySuffix)
}

// Envelope is the one message shape on the wire. Data holds the typed JSON
// payload; Binary holds the opaque payload of _BINARY types and never
// appears inside the JSON header.
type Envelope struct {
	Type      string          `json:"type"`
	SenderID  string          `json:"sender_id,omitempty"`
	PlayerID  int             `json:"player_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Binary    []byte          `json:"-"`
	Timestamp int64           `json:"ts,omitempty"`
}

func New(msgType string) *Envelope {
	return &Envelope{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewJSON - builds an envelope with a JSON payload.
func NewJSON(msgType string, payload any) (*Envelope, error) {
	env := New(msgType)
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
		}
		env.Data = raw
	}
	return env, nil
}

// NewBinary - builds an envelope whose payload is gob-encoded bytes. gob
// drops zero-valued fields, so it only suits payloads decoded into a fresh
// zero struct, like full snapshots.
func NewBinary(msgType string, payload any) (*Envelope, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(payload); err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	env := New(msgType)
	env.Binary = buf.Bytes()
	return env, nil
}

// NewBinaryJSON - builds a _BINARY envelope whose opaque payload is JSON.
// Deltas need JSON field-presence semantics, a pointer set to false must
// survive the trip; the binary frame spares the transport the per-frame
// UTF-8 scan on large messages.
func NewBinaryJSON(msgType string, payload any) (*Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", msgType, err)
	}
	env := New(msgType)
	env.Binary = raw
	return env, nil
}

// Validator is implemented by payloads that carry boundary rules.
type Validator interface {
	Validate() error
}

// DecodePayload - unmarshals the JSON payload into dst and runs its
// boundary validation. Handlers never see a payload that failed here.
func (that *Envelope) DecodePayload(dst any) error {
	if err := json.Unmarshal(that.Data, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", apperror.ErrMalformedPayload, that.Type, err)
	}
	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", apperror.ErrMalformedPayload, that.Type, err)
		}
	}
	return nil
}

// DecodeBinaryPayload - gob-decodes the opaque payload into dst.
func (that *Envelope) DecodeBinaryPayload(dst any) error {
	if err := gob.NewDecoder(bytes.NewReader(that.Binary)).Decode(dst); err != nil {
		return fmt.Errorf("%w: %s: %v", apperror.ErrMalformedPayload, that.Type, err)
	}
	return nil
}

// DecodeBinaryJSON - unmarshals an opaque payload that carries JSON bytes
// and runs its boundary validation.
func (that *Envelope) DecodeBinaryJSON(dst any) error {
	if err := json.Unmarshal(that.Binary, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", apperror.ErrMalformedPayload, that.Type, err)
	}
	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", apperror.ErrMalformedPayload, that.Type, err)
		}
	}
	return nil
}
