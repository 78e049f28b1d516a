package session

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/groupquest/internal/domain"
)

var errNoSession = stderrors.New("session not found")

// redisStore keeps session payloads in Redis. Every read extends the expiry,
// so a session expires after ttl of inactivity.
//
// Records outlive the process but the entities they refer to do not. Each
// record carries the instance id of the entity store it was created against
// and is ignored by any other instance.
type redisStore struct {
	redis    redis.UniversalClient
	prefix   string
	ttl      time.Duration
	instance string
}

type record struct {
	Instance string `json:"instance"`
	UserID   int64  `json:"userId"`
	GroupID  int64  `json:"groupId"`
}

func (s *redisStore) create(ctx context.Context, userID, groupID int64) (domain.Session, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Session{}, fmt.Errorf("generate session ID: %w", err)
	}

	b, err := json.Marshal(record{Instance: s.instance, UserID: userID, GroupID: groupID})
	if err != nil {
		return domain.Session{}, fmt.Errorf("marshal session: %w", err)
	}

	if err := s.redis.Set(ctx, s.key(id.String()), b, s.ttl).Err(); err != nil {
		return domain.Session{}, fmt.Errorf("save session: %w", err)
	}

	return domain.Session{
		ID:      id.String(),
		UserID:  userID,
		GroupID: groupID,
	}, nil
}

func (s *redisStore) get(ctx context.Context, id string) (domain.Session, error) {
	b, err := s.redis.GetEx(ctx, s.key(id), s.ttl).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return domain.Session{}, errNoSession
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}

	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}

	if r.Instance != s.instance {
		return domain.Session{}, errNoSession
	}

	return domain.Session{
		ID:      id,
		UserID:  r.UserID,
		GroupID: r.GroupID,
	}, nil
}

func (s *redisStore) delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

func (s *redisStore) key(id string) string {
	return fmt.Sprintf("%s:session:%s", s.prefix, id)
}
