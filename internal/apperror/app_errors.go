package apperror

import "errors"

var (
	ErrSessionFull           = errors.New("session is full")
	ErrSessionTerminated     = errors.New("session is already terminated")
	ErrGameNotStarted        = errors.New("game is not started")
	ErrGameAlreadyStarted    = errors.New("game is already started")
	ErrNoPlayers             = errors.New("no players in session")
	ErrNotYourTurn           = errors.New("it's not your turn")
	ErrNotYourCard           = errors.New("card belongs to another player")
	ErrNotAuthorized         = errors.New("player is not allowed to do that")
	ErrAbilityNotReady       = errors.New("ability is not ready")
	ErrUnknownPlayer         = errors.New("unknown player")
	ErrUnknownCard           = errors.New("unknown card")
	ErrCellOccupied          = errors.New("cell is already occupied")
	ErrInvalidCell           = errors.New("invalid cell coordinates")
	ErrUnknownMessageType    = errors.New("unknown message type")
	ErrMalformedPayload      = errors.New("malformed message payload")
	ErrMessageTooLarge       = errors.New("message exceeds transport limit")
	ErrReconnectWindowClosed = errors.New("reconnection window is closed")
	ErrSessionNotFound       = errors.New("session not found")
)
