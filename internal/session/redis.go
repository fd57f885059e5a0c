// internal/session/redis.go
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"clarity-agent/internal/common/logger"
	"clarity-agent/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a JSON document under session:{id}.
// Every write refreshes the TTL, so active conversations stay alive and
// abandoned ones age out.
type RedisStore struct {
	client       *redis.Client
	ttl          time.Duration
	historyLimit int
	logger       logger.Logger
}

func NewRedisStore(client *redis.Client, ttl time.Duration, historyLimit int, log logger.Logger) *RedisStore {
	return &RedisStore{
		client:       client,
		ttl:          ttl,
		historyLimit: historyLimit,
		logger:       log.WithFields(map[string]interface{}{"component": "session-store"}),
	}
}

func (r *RedisStore) GetOrCreate(ctx context.Context, conversationID string) (*models.Session, error) {
	s, err := r.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if s != nil {
		return s, nil
	}

	s = models.NewSession(conversationID)
	if err := r.save(ctx, s); err != nil {
		return nil, err
	}
	r.logger.Debug("session created", map[string]interface{}{
		"conversationId": conversationID,
	})
	return s, nil
}

func (r *RedisStore) AppendTurn(ctx context.Context, conversationID string, turn models.Turn, decision *models.DecisionRecord) (*models.Session, error) {
	return r.update(ctx, conversationID, func(s *models.Session) {
		applyTurn(s, turn, decision, r.historyLimit)
	})
}

func (r *RedisStore) LatchRisk(ctx context.Context, conversationID string, level models.RiskLevel, reason string) (*models.Session, error) {
	return r.update(ctx, conversationID, func(s *models.Session) {
		applyLatch(s, level, reason)
	})
}

func (r *RedisStore) ResetRisk(ctx context.Context, conversationID, actor, reason string) (*models.Session, error) {
	s, err := r.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, ErrNotFound
	}

	applyReset(s, actor, reason)
	s.UpdatedAt = time.Now().UTC()
	if err := r.save(ctx, s); err != nil {
		return nil, err
	}

	r.logger.Info("risk level reset", map[string]interface{}{
		"conversationId": conversationID,
		"actor":          actor,
		"reason":         reason,
	})
	return s, nil
}

func (r *RedisStore) SetPendingTool(ctx context.Context, conversationID string, pending *models.PendingToolRequest) error {
	_, err := r.update(ctx, conversationID, func(s *models.Session) {
		if pending == nil {
			s.PendingTool = nil
			return
		}
		p := *pending
		s.PendingTool = &p
	})
	return err
}

// update runs a read-modify-write cycle. Missing documents (first contact
// or TTL expiry mid-conversation) start from a fresh session rather than
// failing the turn.
func (r *RedisStore) update(ctx context.Context, conversationID string, mutate func(*models.Session)) (*models.Session, error) {
	s, err := r.load(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		s = models.NewSession(conversationID)
	}

	mutate(s)
	s.UpdatedAt = time.Now().UTC()

	if err := r.save(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *RedisStore) load(ctx context.Context, conversationID string) (*models.Session, error) {
	data, err := r.client.Get(ctx, sessionKey(conversationID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", conversationID, err)
	}

	var s models.Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", conversationID, err)
	}
	return &s, nil
}

func (r *RedisStore) save(ctx context.Context, s *models.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ConversationID, err)
	}
	if err := r.client.Set(ctx, sessionKey(s.ConversationID), string(data), r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", s.ConversationID, err)
	}
	return nil
}

func sessionKey(conversationID string) string {
	return "session:" + conversationID
}
