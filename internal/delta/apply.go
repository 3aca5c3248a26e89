package delta

import (
	"errors"
	"fmt"
	"slices"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
)

// ErrZoneMismatch means the delta assumes a zone shape the local copy does
// not have. The local state is stale; the only safe recovery is a full
// resync, never a partial merge.
var ErrZoneMismatch = errors.New("zone length mismatch")

// Apply - builds the next state the delta describes and returns it. Only
// the players and cells the delta names are copied; everything else is
// carried over from base by reference and never written again. base is
// never touched, and an error means no new state at all: a delta applies
// fully or not at all.
func Apply(base *entity.Game, d *StateDelta) (*entity.Game, error) {
	shallow := *base
	next := &shallow
	next.Players = slices.Clone(base.Players)

	if d.Phase != nil {
		next.Phase = *d.Phase
	}
	if d.Round != nil {
		next.Round = *d.Round
	}
	if d.Turn != nil {
		next.Turn = *d.Turn
	}
	if d.ActivePlayerID != nil {
		next.ActivePlayerID = *d.ActivePlayerID
	}
	if d.ScoringStep != nil {
		next.ScoringStep = *d.ScoringStep
	}
	if d.Targeting != nil {
		switch {
		case d.Targeting.Clear:
			next.Targeting = nil
		case d.Targeting.Set != nil:
			targeting := *d.Targeting.Set
			next.Targeting = &targeting
		}
	}
	if d.RevealRequests != nil {
		next.RevealRequests = append([]entity.RevealRequest(nil), (*d.RevealRequests)...)
	}

	for i := range d.Players {
		if err := applyPlayer(next, &d.Players[i]); err != nil {
			return nil, err
		}
	}

	if len(d.Board) > 0 {
		board, err := applyBoard(base.Board, d.Board)
		if err != nil {
			return nil, err
		}
		next.Board = board
	}

	return next, nil
}

// applyBoard - rebuilds the grid with the delta's cells swapped in. The
// cards in untouched cells stay shared with the base board.
func applyBoard(base *entity.Board, cells []CellDelta) (*entity.Board, error) {
	board := &entity.Board{Rows: base.Rows, Cols: base.Cols, Cells: make([][]*entity.Card, len(base.Cells))}
	for r := range base.Cells {
		board.Cells[r] = slices.Clone(base.Cells[r])
	}

	for _, cell := range cells {
		if !board.InBounds(cell.Row, cell.Col) {
			return nil, fmt.Errorf("%w: %d,%d", apperror.ErrInvalidCell, cell.Row, cell.Col)
		}
		board.Cells[cell.Row][cell.Col] = cell.Card.Clone()
	}
	return board, nil
}

// applyPlayer - merges one player's delta onto a staged copy of that seat.
func applyPlayer(next *entity.Game, pd *PlayerDelta) error {
	if pd.Joined != nil {
		if next.PlayerByID(pd.ID) != nil {
			return fmt.Errorf("%w: player %d joined twice", ErrZoneMismatch, pd.ID)
		}
		next.Players = append(next.Players, pd.Joined.Clone())
		return nil
	}

	var player *entity.Player
	for i, p := range next.Players {
		if p.ID == pd.ID {
			player = p.Clone()
			next.Players[i] = player
			break
		}
	}
	if player == nil {
		return fmt.Errorf("%w: %d", apperror.ErrUnknownPlayer, pd.ID)
	}

	if pd.Score != nil {
		player.Score = *pd.Score
	}
	if pd.IsDummy != nil {
		player.IsDummy = *pd.IsDummy
	}
	if pd.IsDisconnected != nil {
		player.IsDisconnected = *pd.IsDisconnected
	}
	if pd.IsReady != nil {
		player.IsReady = *pd.IsReady
	}

	zones := []struct {
		zd   *ZoneDelta
		name string
	}{
		{pd.Hand, entity.ZoneHand},
		{pd.Deck, entity.ZoneDeck},
		{pd.Discard, entity.ZoneDiscard},
	}
	for _, zone := range zones {
		if zone.zd == nil {
			continue
		}
		cards, err := applyZone(player.Zone(zone.name), zone.zd, pd.ID, zone.name)
		if err != nil {
			return err
		}
		switch zone.name {
		case entity.ZoneHand:
			player.Hand = cards
		case entity.ZoneDeck:
			player.Deck = cards
		case entity.ZoneDiscard:
			player.Discard = cards
		}
	}

	return nil
}

func applyZone(current []*entity.Card, zd *ZoneDelta, playerID int, zoneName string) ([]*entity.Card, error) {
	// full ordered replacement
	if zd.Cards != nil {
		if len(zd.Cards) != zd.Size {
			return nil, fmt.Errorf("%w: player %d %s carries %d cards, size says %d",
				ErrZoneMismatch, playerID, zoneName, len(zd.Cards), zd.Size)
		}
		if zd.Size == 0 {
			return nil, nil
		}
		cards := make([]*entity.Card, len(zd.Cards))
		for i, card := range zd.Cards {
			cards[i] = card.Clone()
		}
		return cards, nil
	}

	// in-place updates merged by id
	if zd.Updated != nil {
		if len(current) != zd.Size {
			return nil, fmt.Errorf("%w: player %d %s has %d cards locally, delta expects %d",
				ErrZoneMismatch, playerID, zoneName, len(current), zd.Size)
		}
		for _, updated := range zd.Updated {
			merged := false
			for i, card := range current {
				if card.ID == updated.ID {
					current[i] = updated.Clone()
					merged = true
					break
				}
			}
			if !merged {
				return nil, fmt.Errorf("%w: player %d %s misses card %s",
					ErrZoneMismatch, playerID, zoneName, updated.ID)
			}
		}
		return current, nil
	}

	// size-only delta for a zone whose content the recipient may not see:
	// resize with placeholders, keeping whatever prefix is already held
	if zd.Size == 0 {
		return nil, nil
	}
	if len(current) > zd.Size {
		current = current[:zd.Size]
	}
	for len(current) < zd.Size {
		current = append(current, &entity.Card{Owner: playerID})
	}
	return current, nil
}
