package api

import (
	"context"
	"encoding/json"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/victornm/groupquest/internal/domain"
)

const maxConcurrent = 100

type (
	Notification struct {
		Event string `json:"event"`
		Data  any    `json:"data"`
	}

	Leaderboard struct {
		GroupID int64              `json:"groupId"`
		Entries []LeaderboardEntry `json:"entries"`
	}

	LeaderboardEntry struct {
		Rank     int    `json:"rank"`
		UserID   int64  `json:"userId"`
		Username string `json:"username"`
		Points   int64  `json:"points"`
	}
)

// PublishLeaderboardUpdated notifies the group channel and every member's channel.
func (a *API) PublishLeaderboardUpdated(ctx context.Context, e domain.EventLeaderboardUpdated) error {
	l := e.Leaderboard

	data := Leaderboard{
		GroupID: l.GroupID,
		Entries: make([]LeaderboardEntry, 0, len(l.Entries)),
	}

	for i, u := range l.Entries {
		data.Entries = append(data.Entries, LeaderboardEntry{
			Rank:     i + 1,
			UserID:   u.ID,
			Username: u.Username,
			Points:   u.Points,
		})
	}

	b, err := json.Marshal(Notification{Event: e.Name(), Data: data})
	if err != nil {
		return fmt.Errorf("pubsub: marshal %s: %w", e.Name(), err)
	}

	var eg errgroup.Group
	eg.SetLimit(maxConcurrent)

	eg.Go(func() error {
		return a.publish(ctx, fmt.Sprintf("%s:group:%d", a.prefix, l.GroupID), b)
	})

	for _, entry := range data.Entries {
		eg.Go(func() error {
			return a.publish(ctx, fmt.Sprintf("%s:user:%d", a.prefix, entry.UserID), b)
		})
	}

	return eg.Wait()
}

func (a *API) publish(ctx context.Context, channel string, b []byte) error {
	if err := a.redis.Publish(ctx, channel, b).Err(); err != nil {
		return fmt.Errorf("pubsub: publish %s: %w", channel, err)
	}

	return nil
}
