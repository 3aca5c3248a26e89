package entity

import (
	"fmt"
	"math/rand"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
)

const (
	PhasePreparation = "preparation"
	PhaseSetup       = "setup"
	PhaseMain        = "main"
	PhaseCommit      = "commit"
	PhaseScoring     = "scoring"
)

// HostPlayerID - the host always takes the first seat.
const HostPlayerID = 1

// Targeting mirrors a client's targeting-mode overlay so every peer renders
// the same selection prompt.
type Targeting struct {
	PlayerID int    `json:"player_id"`
	Mode     string `json:"mode"`
}

// RevealRequest is a pending ask to flip a face-down card face up.
type RevealRequest struct {
	CardID   string `json:"card_id"`
	PlayerID int    `json:"player_id"`
}

type Board struct {
	Rows  int       `json:"rows"`
	Cols  int       `json:"cols"`
	Cells [][]*Card `json:"cells"`
}

func NewBoard(rows, cols int) *Board {
	cells := make([][]*Card, rows)
	for r := range cells {
		cells[r] = make([]*Card, cols)
	}
	return &Board{Rows: rows, Cols: cols, Cells: cells}
}

func (that *Board) InBounds(row, col int) bool {
	return row >= 0 && row < that.Rows && col >= 0 && col < that.Cols
}

func (that *Board) At(row, col int) (*Card, error) {
	if !that.InBounds(row, col) {
		return nil, fmt.Errorf("%w: %d,%d", apperror.ErrInvalidCell, row, col)
	}
	return that.Cells[row][col], nil
}

// Place - puts a card onto an empty cell. A cell holds at most one card.
func (that *Board) Place(row, col int, card *Card) error {
	if !that.InBounds(row, col) {
		return fmt.Errorf("%w: %d,%d", apperror.ErrInvalidCell, row, col)
	}
	if that.Cells[row][col] != nil {
		return fmt.Errorf("%w: %d,%d", apperror.ErrCellOccupied, row, col)
	}
	that.Cells[row][col] = card
	return nil
}

// Find - locates a card on the board by id.
func (that *Board) Find(cardID string) (int, int, *Card) {
	for r := range that.Cells {
		for c := range that.Cells[r] {
			if card := that.Cells[r][c]; card != nil && card.ID == cardID {
				return r, c, card
			}
		}
	}
	return -1, -1, nil
}

func (that *Board) RemoveAt(row, col int) *Card {
	if !that.InBounds(row, col) {
		return nil
	}
	card := that.Cells[row][col]
	that.Cells[row][col] = nil
	return card
}

// Each - visits every occupied cell.
func (that *Board) Each(visit func(row, col int, card *Card)) {
	for r := range that.Cells {
		for c := range that.Cells[r] {
			if that.Cells[r][c] != nil {
				visit(r, c, that.Cells[r][c])
			}
		}
	}
}

func (that *Board) Clone() *Board {
	clone := NewBoard(that.Rows, that.Cols)
	that.Each(func(row, col int, card *Card) {
		clone.Cells[row][col] = card.Clone()
	})
	return clone
}

// Game is the authoritative session state. Exactly one instance lives
// inside the host orchestrator; guests hold personalized reconstructions.
type Game struct {
	Players        []*Player       `json:"players"`
	Board          *Board          `json:"board"`
	Phase          string          `json:"phase,omitempty"`
	Round          int             `json:"round"`
	Turn           int             `json:"turn"`
	ActivePlayerID int             `json:"active_player_id"`
	ScoringStep    bool            `json:"scoring_step"`
	Targeting      *Targeting      `json:"targeting,omitempty"`
	RevealRequests []RevealRequest `json:"reveal_requests,omitempty"`
}

func NewGame(rows, cols int) *Game {
	return &Game{
		Board: NewBoard(rows, cols),
	}
}

func (that *Game) PlayerByID(id int) *Player {
	for _, player := range that.Players {
		if player.ID == id {
			return player
		}
	}
	return nil
}

func (that *Game) ActivePlayer() *Player {
	if that.ActivePlayerID == 0 {
		return nil
	}
	return that.PlayerByID(that.ActivePlayerID)
}

// AddPlayer - seats a new player at the lowest unused id and returns it.
// A leaving player keeps the seat as a stand-in, so ids stay stable for
// the life of the session.
func (that *Game) AddPlayer(name, color string) *Player {
	id := 1
	for that.PlayerByID(id) != nil {
		id++
	}
	player := NewPlayer(id, name, color)
	that.Players = append(that.Players, player)
	return player
}

// FindCard - looks a card up across every player zone and the board.
func (that *Game) FindCard(cardID string) (*Card, string) {
	for _, player := range that.Players {
		if card, zone, _ := player.FindCard(cardID); card != nil {
			return card, zone
		}
	}
	var found *Card
	that.Board.Each(func(_, _ int, card *Card) {
		if card.ID == cardID {
			found = card
		}
	})
	if found != nil {
		return found, ZoneBoard
	}
	return nil, ""
}

func (that *Game) IsStarted() bool {
	return that.Phase != ""
}

// ConfirmStarted - guards operations that need a running game.
func (that *Game) ConfirmStarted() error {
	if !that.IsStarted() {
		return apperror.ErrGameNotStarted
	}
	return nil
}

// ShuffleDeck - randomizes a player's deck order in place.
func (that *Game) ShuffleDeck(playerID int) {
	player := that.PlayerByID(playerID)
	if player == nil {
		return
	}
	//nolint: gosec // it's ok
	rand.Shuffle(len(player.Deck), func(i, j int) {
		player.Deck[i], player.Deck[j] = player.Deck[j], player.Deck[i]
	})
}

func (that *Game) Clone() *Game {
	clone := &Game{
		Phase:          that.Phase,
		Round:          that.Round,
		Turn:           that.Turn,
		ActivePlayerID: that.ActivePlayerID,
		ScoringStep:    that.ScoringStep,
	}
	clone.Players = make([]*Player, len(that.Players))
	for i, player := range that.Players {
		clone.Players[i] = player.Clone()
	}
	if that.Board != nil {
		clone.Board = that.Board.Clone()
	}
	if that.Targeting != nil {
		targeting := *that.Targeting
		clone.Targeting = &targeting
	}
	if that.RevealRequests != nil {
		clone.RevealRequests = make([]RevealRequest, len(that.RevealRequests))
		copy(clone.RevealRequests, that.RevealRequests)
	}
	return clone
}
