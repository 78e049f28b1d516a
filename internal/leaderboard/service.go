package leaderboard

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/groupquest/internal/domain"
	"github.com/victornm/groupquest/internal/event"
	"github.com/victornm/groupquest/internal/store"
)

const (
	defaultPublishInterval = 200 * time.Millisecond
)

type Config struct {
	EventBus *event.Bus
	Store    *store.Store
	Redis    redis.UniversalClient
	Prefix   string
	// PublishInterval is the minimum time between two leaderboard.updated events of a group.
	// It must stay below the event bus handler timeout.
	PublishInterval time.Duration
}

type Service struct {
	eb       *event.Bus
	store    *store.Store
	redis    redis.UniversalClient
	prefix   string
	interval time.Duration
}

func NewService(c Config) *Service {
	s := &Service{
		eb:       c.EventBus,
		store:    c.Store,
		redis:    c.Redis,
		prefix:   c.Prefix,
		interval: c.PublishInterval,
	}

	if s.interval <= 0 {
		s.interval = defaultPublishInterval
	}

	s.eb.Subscribe(domain.EventNameChallengeCompleted, func(ctx context.Context, e event.Event) error {
		return s.UpdateLeaderboard(ctx, e.(domain.EventChallengeCompleted))
	})

	return s
}

type GetLeaderboardRequest struct {
	GroupID int64
}

// GetLeaderboard returns the members of a group sorted by points in descending order.
// Members with equal points keep the order in which they joined.
func (s *Service) GetLeaderboard(_ context.Context, req GetLeaderboardRequest) (*domain.Leaderboard, error) {
	users := s.store.GetUsersByGroup(req.GroupID)

	slices.SortStableFunc(users, func(a, b domain.User) int {
		switch {
		case a.Points > b.Points:
			return -1
		case a.Points < b.Points:
			return 1
		default:
			return 0
		}
	})

	return &domain.Leaderboard{
		GroupID: req.GroupID,
		Entries: users,
	}, nil
}

// UpdateLeaderboard reacts to a completed challenge by publishing the group's leaderboard.
func (s *Service) UpdateLeaderboard(ctx context.Context, e domain.EventChallengeCompleted) error {
	return s.schedulePublishLeaderboard(ctx, e.GroupID, e.Completion.CompletedAt)
}

// schedulePublishLeaderboard publishes the leaderboard at most once per interval and group.
// The first completion publishes immediately. Completions within the interval
// after a publication schedule one more publication when the interval ends,
// so the last state of a burst is always published.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, groupID int64, at time.Time) error {
	// The keys are shared by every instance of the service, so only one of them publishes.
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(groupID), at.UnixMilli(), s.interval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if ok {
		return s.publishLeaderboard(ctx, groupID)
	}

	// Only one completion per interval waits for its end.
	ok, err = s.redis.SetNX(ctx, s.getLeaderboardPendingKey(groupID), at.UnixMilli(), 2*s.interval).Result()
	if err != nil {
		return fmt.Errorf("setnx pending: %w", err)
	}

	if !ok {
		return nil
	}

	wait, err := s.redis.PTTL(ctx, s.getLeaderboardTimeKey(groupID)).Result()
	if err != nil {
		return fmt.Errorf("pttl: %w", err)
	}

	if wait > 0 {
		t := time.NewTimer(wait)
		defer t.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}

	// Completions arriving from here on schedule their own publication.
	if err := s.redis.Del(ctx, s.getLeaderboardPendingKey(groupID)).Err(); err != nil {
		return fmt.Errorf("del pending: %w", err)
	}

	if err := s.redis.Set(ctx, s.getLeaderboardTimeKey(groupID), time.Now().UnixMilli(), s.interval).Err(); err != nil {
		return fmt.Errorf("set: %w", err)
	}

	return s.publishLeaderboard(ctx, groupID)
}

func (s *Service) publishLeaderboard(ctx context.Context, groupID int64) error {
	l, err := s.GetLeaderboard(ctx, GetLeaderboardRequest{
		GroupID: groupID,
	})
	if err != nil {
		return fmt.Errorf("get leaderboard failed: group=%d: %w", groupID, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardPendingKey(groupID int64) string {
	return fmt.Sprintf("%s:%d:leaderboard:pending", s.prefix, groupID)
}

func (s *Service) getLeaderboardTimeKey(groupID int64) string {
	return fmt.Sprintf("%s:%d:leaderboard:time", s.prefix, groupID)
}
