package view

import (
	"slices"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
)

// CardView is the wire tuple of a card: gameplay state only, static flavor
// stays in the catalog on every peer.
type CardView struct {
	ID       string   `json:"id"`
	BaseID   string   `json:"base_id"`
	Owner    int      `json:"owner"`
	Power    int      `json:"power"`
	Statuses []string `json:"statuses,omitempty"`
	Ready    []string `json:"ready,omitempty"`
	FaceUp   bool     `json:"face_up"`
}

// CardAt pins a revealed card to its position inside a hidden zone.
type CardAt struct {
	Index int      `json:"index"`
	Card  CardView `json:"card"`
}

// ZoneView preserves the zone size in every case. Cards holds the full
// ordered content when the zone is visible to the recipient; for hidden
// zones only Revealed entries carry content.
type ZoneView struct {
	Count    int        `json:"count"`
	Cards    []CardView `json:"cards,omitempty"`
	Revealed []CardAt   `json:"revealed,omitempty"`
}

type PlayerView struct {
	ID             int      `json:"id"`
	Name           string   `json:"name"`
	Color          string   `json:"color,omitempty"`
	IsDummy        bool     `json:"is_dummy"`
	IsDisconnected bool     `json:"is_disconnected"`
	IsReady        bool     `json:"is_ready"`
	Score          int      `json:"score"`
	Hand           ZoneView `json:"hand"`
	Deck           ZoneView `json:"deck"`
	Discard        ZoneView `json:"discard"`
}

type CellView struct {
	Row  int      `json:"row"`
	Col  int      `json:"col"`
	Card CardView `json:"card"`
}

// GameView is a personalized projection of the authoritative state for one
// recipient.
type GameView struct {
	RecipientID    int                    `json:"recipient_id"`
	Players        []PlayerView           `json:"players"`
	Rows           int                    `json:"rows"`
	Cols           int                    `json:"cols"`
	Cells          []CellView             `json:"cells,omitempty"`
	Phase          string                 `json:"phase,omitempty"`
	Round          int                    `json:"round"`
	Turn           int                    `json:"turn"`
	ActivePlayerID int                    `json:"active_player_id"`
	ScoringStep    bool                   `json:"scoring_step"`
	Targeting      *entity.Targeting      `json:"targeting,omitempty"`
	RevealRequests []entity.RevealRequest `json:"reveal_requests,omitempty"`
}

// visibleTo - a zone's content is visible to its owner, and stand-in
// players are an open book for everyone.
func visibleTo(owner *entity.Player, recipientID int) bool {
	return owner.ID == recipientID || owner.IsDummy
}

// Snapshot - projects the state for one recipient. Pure: the same state
// and recipient always produce the same view, and the state is never
// touched.
func Snapshot(game *entity.Game, recipientID int) *GameView {
	gv := &GameView{
		RecipientID:    recipientID,
		Rows:           game.Board.Rows,
		Cols:           game.Board.Cols,
		Phase:          game.Phase,
		Round:          game.Round,
		Turn:           game.Turn,
		ActivePlayerID: game.ActivePlayerID,
		ScoringStep:    game.ScoringStep,
	}

	if game.Targeting != nil {
		targeting := *game.Targeting
		gv.Targeting = &targeting
	}
	if game.RevealRequests != nil {
		gv.RevealRequests = slices.Clone(game.RevealRequests)
	}

	gv.Players = make([]PlayerView, 0, len(game.Players))
	for _, player := range game.Players {
		visible := visibleTo(player, recipientID)
		gv.Players = append(gv.Players, PlayerView{
			ID:             player.ID,
			Name:           player.Name,
			Color:          player.Color,
			IsDummy:        player.IsDummy,
			IsDisconnected: player.IsDisconnected,
			IsReady:        player.IsReady,
			Score:          player.Score,
			Hand:           zoneView(player.Hand, visible),
			Deck:           zoneView(player.Deck, visible),
			Discard:        zoneView(player.Discard, visible),
		})
	}

	game.Board.Each(func(row, col int, card *entity.Card) {
		gv.Cells = append(gv.Cells, CellView{Row: row, Col: col, Card: cardView(card)})
	})

	return gv
}

func zoneView(cards []*entity.Card, visible bool) ZoneView {
	zv := ZoneView{Count: len(cards)}
	if visible {
		zv.Cards = make([]CardView, len(cards))
		for i, card := range cards {
			zv.Cards[i] = cardView(card)
		}
		return zv
	}
	for i, card := range cards {
		if card.IsRevealed() {
			zv.Revealed = append(zv.Revealed, CardAt{Index: i, Card: cardView(card)})
		}
	}
	return zv
}

func cardView(card *entity.Card) CardView {
	return CardView{
		ID:       card.ID,
		BaseID:   card.BaseID,
		Owner:    card.Owner,
		Power:    card.Power,
		Statuses: slices.Clone(card.Statuses),
		Ready:    slices.Clone(card.Ready),
		FaceUp:   card.FaceUp,
	}
}

// Inflate - reconstructs a local game state from a personalized view.
// Hidden zone slots become id-less placeholder cards that only keep the
// owner, so zone sizes stay exact without carrying content.
func Inflate(gv *GameView) *entity.Game {
	game := entity.NewGame(gv.Rows, gv.Cols)
	game.Phase = gv.Phase
	game.Round = gv.Round
	game.Turn = gv.Turn
	game.ActivePlayerID = gv.ActivePlayerID
	game.ScoringStep = gv.ScoringStep

	if gv.Targeting != nil {
		targeting := *gv.Targeting
		game.Targeting = &targeting
	}
	if gv.RevealRequests != nil {
		game.RevealRequests = slices.Clone(gv.RevealRequests)
	}

	game.Players = make([]*entity.Player, 0, len(gv.Players))
	for i := range gv.Players {
		pv := &gv.Players[i]
		player := &entity.Player{
			ID:             pv.ID,
			Name:           pv.Name,
			Color:          pv.Color,
			IsDummy:        pv.IsDummy,
			IsDisconnected: pv.IsDisconnected,
			IsReady:        pv.IsReady,
			Score:          pv.Score,
			Hand:           inflateZone(pv.Hand, pv.ID),
			Deck:           inflateZone(pv.Deck, pv.ID),
			Discard:        inflateZone(pv.Discard, pv.ID),
		}
		game.Players = append(game.Players, player)
	}

	for _, cv := range gv.Cells {
		if game.Board.InBounds(cv.Row, cv.Col) {
			game.Board.Cells[cv.Row][cv.Col] = inflateCard(cv.Card)
		}
	}

	return game
}

func inflateZone(zv ZoneView, ownerID int) []*entity.Card {
	if zv.Count == 0 {
		return nil
	}

	cards := make([]*entity.Card, zv.Count)
	for i := range cards {
		cards[i] = &entity.Card{Owner: ownerID}
	}
	if zv.Cards != nil {
		for i := range zv.Cards {
			if i < zv.Count {
				cards[i] = inflateCard(zv.Cards[i])
			}
		}
		return cards
	}
	for _, at := range zv.Revealed {
		if at.Index >= 0 && at.Index < len(cards) {
			cards[at.Index] = inflateCard(at.Card)
		}
	}
	return cards
}

func inflateCard(cv CardView) *entity.Card {
	return &entity.Card{
		ID:       cv.ID,
		BaseID:   cv.BaseID,
		Owner:    cv.Owner,
		Power:    cv.Power,
		Statuses: slices.Clone(cv.Statuses),
		Ready:    slices.Clone(cv.Ready),
		FaceUp:   cv.FaceUp,
	}
}
