package delta

import (
	"slices"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
)

// StateDelta is the minimal difference between two authoritative states.
// Scalar fields use pointers so an unset field means "unchanged" and a set
// field wins over whatever the recipient holds.
type StateDelta struct {
	Version        int                     `json:"version,omitempty"`
	Origin         int                     `json:"origin,omitempty"`
	Players        []PlayerDelta           `json:"players,omitempty"`
	Board          []CellDelta             `json:"board,omitempty"`
	Phase          *string                 `json:"phase,omitempty"`
	Round          *int                    `json:"round,omitempty"`
	Turn           *int                    `json:"turn,omitempty"`
	ActivePlayerID *int                    `json:"active_player_id,omitempty"`
	ScoringStep    *bool                   `json:"scoring_step,omitempty"`
	Targeting      *TargetingDelta         `json:"targeting,omitempty"`
	RevealRequests *[]entity.RevealRequest `json:"reveal_requests,omitempty"`
}

type PlayerDelta struct {
	ID             int            `json:"id"`
	Joined         *entity.Player `json:"joined,omitempty"`
	Score          *int           `json:"score,omitempty"`
	IsDummy        *bool          `json:"is_dummy,omitempty"`
	IsDisconnected *bool          `json:"is_disconnected,omitempty"`
	IsReady        *bool          `json:"is_ready,omitempty"`
	Hand           *ZoneDelta     `json:"hand,omitempty"`
	Deck           *ZoneDelta     `json:"deck,omitempty"`
	Discard        *ZoneDelta     `json:"discard,omitempty"`
}

// ZoneDelta describes one zone. Cards is a full ordered replacement, used
// when membership or order changed; Updated carries in-place card changes
// merged by id. Size always holds the zone length after the change, so the
// receiver can detect a stale local copy before touching anything.
type ZoneDelta struct {
	Size    int            `json:"size"`
	Cards   []*entity.Card `json:"cards,omitempty"`
	Updated []*entity.Card `json:"updated,omitempty"`
}

type CellDelta struct {
	Row  int          `json:"row"`
	Col  int          `json:"col"`
	Card *entity.Card `json:"card,omitempty"`
}

// TargetingDelta - Set replaces the targeting overlay, Clear removes it.
type TargetingDelta struct {
	Set   *entity.Targeting `json:"set,omitempty"`
	Clear bool              `json:"clear,omitempty"`
}

// Diff - computes the delta that turns old into new. The origin player id
// is carried so receivers can attribute the change.
func Diff(oldGame, newGame *entity.Game, origin int) *StateDelta {
	d := &StateDelta{Origin: origin}

	if oldGame.Phase != newGame.Phase {
		phase := newGame.Phase
		d.Phase = &phase
	}
	if oldGame.Round != newGame.Round {
		round := newGame.Round
		d.Round = &round
	}
	if oldGame.Turn != newGame.Turn {
		turn := newGame.Turn
		d.Turn = &turn
	}
	if oldGame.ActivePlayerID != newGame.ActivePlayerID {
		active := newGame.ActivePlayerID
		d.ActivePlayerID = &active
	}
	if oldGame.ScoringStep != newGame.ScoringStep {
		step := newGame.ScoringStep
		d.ScoringStep = &step
	}

	d.Targeting = diffTargeting(oldGame.Targeting, newGame.Targeting)

	if !slices.Equal(oldGame.RevealRequests, newGame.RevealRequests) {
		// an emptied list must travel as [], null decodes to an absent field
		requests := slices.Clone(newGame.RevealRequests)
		if requests == nil {
			requests = []entity.RevealRequest{}
		}
		d.RevealRequests = &requests
	}

	for _, newPlayer := range newGame.Players {
		oldPlayer := oldGame.PlayerByID(newPlayer.ID)
		// a seat the transition never staged is the same pointer on both sides
		if oldPlayer == newPlayer {
			continue
		}
		if pd := diffPlayer(oldPlayer, newPlayer); pd != nil {
			d.Players = append(d.Players, *pd)
		}
	}

	d.Board = diffBoard(oldGame.Board, newGame.Board)

	return d
}

// IsEmpty - an empty delta is skipped entirely, it never goes on the wire.
func (that *StateDelta) IsEmpty() bool {
	return len(that.Players) == 0 &&
		len(that.Board) == 0 &&
		that.Phase == nil &&
		that.Round == nil &&
		that.Turn == nil &&
		that.ActivePlayerID == nil &&
		that.ScoringStep == nil &&
		that.Targeting == nil &&
		that.RevealRequests == nil
}

func diffTargeting(oldT, newT *entity.Targeting) *TargetingDelta {
	switch {
	case oldT == nil && newT == nil:
		return nil
	case newT == nil:
		return &TargetingDelta{Clear: true}
	case oldT == nil || *oldT != *newT:
		targeting := *newT
		return &TargetingDelta{Set: &targeting}
	default:
		return nil
	}
}

func diffPlayer(oldPlayer, newPlayer *entity.Player) *PlayerDelta {
	if oldPlayer == nil {
		return &PlayerDelta{ID: newPlayer.ID, Joined: newPlayer.Clone()}
	}

	pd := PlayerDelta{ID: newPlayer.ID}
	changed := false

	if oldPlayer.Score != newPlayer.Score {
		score := newPlayer.Score
		pd.Score = &score
		changed = true
	}
	if oldPlayer.IsDummy != newPlayer.IsDummy {
		dummy := newPlayer.IsDummy
		pd.IsDummy = &dummy
		changed = true
	}
	if oldPlayer.IsDisconnected != newPlayer.IsDisconnected {
		disconnected := newPlayer.IsDisconnected
		pd.IsDisconnected = &disconnected
		changed = true
	}
	if oldPlayer.IsReady != newPlayer.IsReady {
		ready := newPlayer.IsReady
		pd.IsReady = &ready
		changed = true
	}

	if zd := diffZone(oldPlayer.Hand, newPlayer.Hand); zd != nil {
		pd.Hand = zd
		changed = true
	}
	if zd := diffZone(oldPlayer.Deck, newPlayer.Deck); zd != nil {
		pd.Deck = zd
		changed = true
	}
	if zd := diffZone(oldPlayer.Discard, newPlayer.Discard); zd != nil {
		pd.Discard = zd
		changed = true
	}

	if !changed {
		return nil
	}
	return &pd
}

func diffZone(oldCards, newCards []*entity.Card) *ZoneDelta {
	sameShape := len(oldCards) == len(newCards)
	if sameShape {
		for i := range newCards {
			if oldCards[i].ID != newCards[i].ID {
				sameShape = false
				break
			}
		}
	}

	// membership or order changed: ship the whole zone, order matters
	if !sameShape {
		zd := &ZoneDelta{Size: len(newCards), Cards: make([]*entity.Card, len(newCards))}
		for i, card := range newCards {
			zd.Cards[i] = card.Clone()
		}
		return zd
	}

	var updated []*entity.Card
	for i := range newCards {
		if !cardEqual(oldCards[i], newCards[i]) {
			updated = append(updated, newCards[i].Clone())
		}
	}
	if updated == nil {
		return nil
	}
	return &ZoneDelta{Size: len(newCards), Updated: updated}
}

func diffBoard(oldBoard, newBoard *entity.Board) []CellDelta {
	if oldBoard == newBoard {
		return nil
	}

	var cells []CellDelta
	for r := 0; r < newBoard.Rows; r++ {
		for c := 0; c < newBoard.Cols; c++ {
			oldCard := oldBoard.Cells[r][c]
			newCard := newBoard.Cells[r][c]
			switch {
			case oldCard == nil && newCard == nil:
			case oldCard == nil || newCard == nil || !cardEqual(oldCard, newCard):
				cells = append(cells, CellDelta{Row: r, Col: c, Card: newCard.Clone()})
			}
		}
	}
	return cells
}

func cardEqual(a, b *entity.Card) bool {
	if a == b {
		return true
	}
	return a.ID == b.ID &&
		a.BaseID == b.BaseID &&
		a.Owner == b.Owner &&
		a.Power == b.Power &&
		a.FaceUp == b.FaceUp &&
		slices.Equal(a.Statuses, b.Statuses) &&
		slices.Equal(a.Ready, b.Ready)
}
