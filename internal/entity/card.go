package entity

import (
	"slices"

	"github.com/google/uuid"
)

const (
	StatusRevealed = "revealed"
	StatusShielded = "shielded"
	StatusFrozen   = "frozen"
	StatusMarked   = "marked"
)

// Card is a single card instance in play. BaseID points into the content
// catalog; everything static (name, text, art) stays there and is never
// carried on the card itself.
type Card struct {
	ID       string   `json:"id"`
	BaseID   string   `json:"base_id"`
	Owner    int      `json:"owner"`
	Power    int      `json:"power"`
	Statuses []string `json:"statuses,omitempty"`
	Ready    []string `json:"ready,omitempty"`
	FaceUp   bool     `json:"face_up"`
}

func NewCard(baseID string, owner, power int) *Card {
	return &Card{
		ID:     uuid.NewString(),
		BaseID: baseID,
		Owner:  owner,
		Power:  power,
	}
}

func (that *Card) HasStatus(status string) bool {
	return slices.Contains(that.Statuses, status)
}

func (that *Card) AddStatus(status string) {
	if that.HasStatus(status) {
		return
	}
	that.Statuses = append(that.Statuses, status)
}

func (that *Card) RemoveStatus(status string) {
	that.Statuses = slices.DeleteFunc(that.Statuses, func(s string) bool {
		return s == status
	})
}

// IsRevealed - reports whether the card content is visible to everyone
// regardless of the zone it sits in.
func (that *Card) IsRevealed() bool {
	return that.FaceUp || that.HasStatus(StatusRevealed)
}

func (that *Card) HasReady(ability string) bool {
	return slices.Contains(that.Ready, ability)
}

func (that *Card) Clone() *Card {
	if that == nil {
		return nil
	}
	clone := *that
	clone.Statuses = slices.Clone(that.Statuses)
	clone.Ready = slices.Clone(that.Ready)
	return &clone
}
