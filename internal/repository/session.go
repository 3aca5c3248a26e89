package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/entity"
)

// SessionRecord is everything needed to resume a session after the
// process restarts: the authoritative state, the replication version it
// was at and who this node was in it.
type SessionRecord struct {
	State         *entity.Game `json:"state"`
	Version       int          `json:"version"`
	LocalPlayerID int          `json:"local_player_id"`
	IsHost        bool         `json:"is_host"`
	PeerID        string       `json:"peer_id,omitempty"`
	SavedAt       time.Time    `json:"saved_at"`
}

type SessionRepository interface {
	Save(ctx context.Context, id string, record *SessionRecord) error
	Load(ctx context.Context, id string) (*SessionRecord, error)
	Delete(ctx context.Context, id string) error
}

type dbSession struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) SessionRepository {
	return &dbSession{
		client: client,
	}
}

func sessionKey(id string) string {
	return "session:" + id
}

func (that *dbSession) Save(ctx context.Context, id string, record *SessionRecord) error {
	recordJSON, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("could not marshal session record: %w", err)
	}

	if err = that.client.Set(ctx, sessionKey(id), recordJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to set session: %w", err)
	}

	return nil
}

func (that *dbSession) Load(ctx context.Context, id string) (*SessionRecord, error) {
	response, err := that.client.Get(ctx, sessionKey(id)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", apperror.ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var record SessionRecord
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record: %w", err)
	}

	return &record, nil
}

func (that *dbSession) Delete(ctx context.Context, id string) error {
	if err := that.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return nil
}

// NewNoop - persistence disabled: saves vanish, loads miss. Keeps the
// orchestrator free of nil checks when no redis is configured.
func NewNoop() SessionRepository {
	return noopSession{}
}

type noopSession struct{}

func (noopSession) Save(context.Context, string, *SessionRecord) error { return nil }

func (noopSession) Load(_ context.Context, id string) (*SessionRecord, error) {
	return nil, fmt.Errorf("%w: %s", apperror.ErrSessionNotFound, id)
}

func (noopSession) Delete(context.Context, string) error { return nil }
