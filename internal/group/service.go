package group

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/victornm/groupquest/internal/domain"
	"github.com/victornm/groupquest/internal/errors"
	"github.com/victornm/groupquest/internal/event"
	"github.com/victornm/groupquest/internal/store"
)

type Config struct {
	Store    *store.Store
	EventBus *event.Bus
}

type Service struct {
	store *store.Store
	eb    *event.Bus
}

func NewService(c Config) *Service {
	return &Service{
		store: c.Store,
		eb:    c.EventBus,
	}
}

type CreateGroupRequest struct {
	Name string
}

// CreateGroup creates a group with a unique invite code.
// The caller is not added to the group, joining is a separate login with the returned code.
func (s *Service) CreateGroup(ctx context.Context, req CreateGroupRequest) (*domain.Group, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.Validation("group name is required")
	}

	g, err := s.store.CreateGroup(req.Name)
	if err != nil {
		return nil, fmt.Errorf("group: create: %w", err)
	}

	slog.InfoContext(ctx, "group: created", "group_id", g.ID)

	s.eb.Publish(ctx, domain.EventGroupCreated{Group: g})

	return &g, nil
}

type GetStatsRequest struct {
	GroupID int64
}

// GetStats summarizes a group. CompletedToday is always 0, completions are not tracked per day.
func (s *Service) GetStats(_ context.Context, req GetStatsRequest) (*domain.Stats, error) {
	var (
		challenges = s.store.GetChallengesByGroup(req.GroupID)
		users      = s.store.GetUsersByGroup(req.GroupID)
		total      int64
	)

	for _, u := range users {
		total += u.Points
	}

	var avg int64
	if len(users) > 0 {
		avg = int64(math.Round(float64(total) / float64(len(users))))
	}

	return &domain.Stats{
		TotalChallenges: len(challenges),
		ActiveMembers:   len(users),
		CompletedToday:  0,
		AverageScore:    avg,
		GroupScore:      total,
	}, nil
}
