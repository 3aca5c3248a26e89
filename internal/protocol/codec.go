package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
)

const headerLenSize = 4

// Codec turns envelopes into wire frames and back. JSON messages become a
// single JSON document; _BINARY messages become a length-prefixed frame of
// [uint32 header length][JSON header][opaque payload], so the header stays
// introspectable while the payload bytes pass through untouched.
type Codec struct {
	maxMessageBytes int
}

// NewCodec - maxMessageBytes caps the encoded frame size; zero disables
// the cap. The limit models the transport's hard per-message ceiling, so
// hitting it is a programming error on the sending side, not a runtime
// condition to recover from.
func NewCodec(maxMessageBytes int) *Codec {
	return &Codec{maxMessageBytes: maxMessageBytes}
}

// Encode - renders the envelope. The second return value reports whether
// the frame must travel on a binary transport frame.
func (that *Codec) Encode(env *Envelope) ([]byte, bool, error) {
	if !Known(env.Type) {
		return nil, false, fmt.Errorf("%w: %q", apperror.ErrUnknownMessageType, env.Type)
	}

	if !IsBinary(env.Type) {
		frame, err := json.Marshal(env)
		if err != nil {
			return nil, false, fmt.Errorf("failed to marshal %s: %w", env.Type, err)
		}
		if err = that.checkSize(env.Type, len(frame)); err != nil {
			return nil, false, err
		}
		return frame, false, nil
	}

	header := *env
	header.Data = nil
	headerBytes, err := json.Marshal(&header)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal %s header: %w", env.Type, err)
	}

	frame := make([]byte, headerLenSize, headerLenSize+len(headerBytes)+len(env.Binary))
	binary.BigEndian.PutUint32(frame, uint32(len(headerBytes)))
	frame = append(frame, headerBytes...)
	frame = append(frame, env.Binary...)

	if err = that.checkSize(env.Type, len(frame)); err != nil {
		return nil, false, err
	}

	return frame, true, nil
}

// Decode - parses a wire frame. isBinary reflects the transport frame kind
// and must agree with the type suffix inside.
func (that *Codec) Decode(frame []byte, isBinary bool) (*Envelope, error) {
	if err := that.checkSize("inbound", len(frame)); err != nil {
		return nil, err
	}

	var env Envelope
	if !isBinary {
		if err := json.Unmarshal(frame, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", apperror.ErrMalformedPayload, err)
		}
		if !Known(env.Type) {
			return nil, fmt.Errorf("%w: %q", apperror.ErrUnknownMessageType, env.Type)
		}
		if IsBinary(env.Type) {
			return nil, fmt.Errorf("%w: %s on a text frame", apperror.ErrMalformedPayload, env.Type)
		}
		return &env, nil
	}

	if len(frame) < headerLenSize {
		return nil, fmt.Errorf("%w: truncated binary frame", apperror.ErrMalformedPayload)
	}
	headerLen := int(binary.BigEndian.Uint32(frame))
	if headerLen < 0 || headerLenSize+headerLen > len(frame) {
		return nil, fmt.Errorf("%w: binary header length %d out of range", apperror.ErrMalformedPayload, headerLen)
	}

	if err := json.Unmarshal(frame[headerLenSize:headerLenSize+headerLen], &env); err != nil {
		return nil, fmt.Errorf("%w: %v", apperror.ErrMalformedPayload, err)
	}
	if !Known(env.Type) {
		return nil, fmt.Errorf("%w: %q", apperror.ErrUnknownMessageType, env.Type)
	}
	if !IsBinary(env.Type) {
		return nil, fmt.Errorf("%w: %s on a binary frame", apperror.ErrMalformedPayload, env.Type)
	}

	env.Binary = frame[headerLenSize+headerLen:]

	return &env, nil
}

func (that *Codec) checkSize(msgType string, size int) error {
	if that.maxMessageBytes > 0 && size > that.maxMessageBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", apperror.ErrMessageTooLarge, msgType, size, that.maxMessageBytes)
	}
	return nil
}
