package challenge

import (
	"context"
	"fmt"
	"log/slog"
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

type CreateChallengeRequest struct {
	// GroupID is the group of the creator's session.
	GroupID     int64
	Title       string
	Description string
	Points      int64
	Difficulty  string
	Icon        string
}

func (r CreateChallengeRequest) validate() (domain.Challenge, error) {
	if strings.TrimSpace(r.Title) == "" {
		return domain.Challenge{}, errors.Validation("title is required")
	}
	if strings.TrimSpace(r.Description) == "" {
		return domain.Challenge{}, errors.Validation("description is required")
	}
	if r.Points < domain.MinChallengePoints || r.Points > domain.MaxChallengePoints {
		return domain.Challenge{}, errors.Validation("points must be between %d and %d", domain.MinChallengePoints, domain.MaxChallengePoints)
	}

	d, ok := domain.ParseDifficulty(r.Difficulty)
	if !ok {
		return domain.Challenge{}, errors.Validation("invalid difficulty: %q", r.Difficulty)
	}

	icon := domain.Icon(r.Icon)
	if !icon.Valid() {
		return domain.Challenge{}, errors.Validation("invalid icon: %q", r.Icon)
	}

	return domain.Challenge{
		GroupID:     r.GroupID,
		Title:       r.Title,
		Description: r.Description,
		Points:      r.Points,
		Difficulty:  d,
		Icon:        icon,
	}, nil
}

// CreateChallenge creates a challenge in the group of the creator.
func (s *Service) CreateChallenge(ctx context.Context, req CreateChallengeRequest) (*domain.Challenge, error) {
	c, err := req.validate()
	if err != nil {
		return nil, err
	}

	c = s.store.CreateChallenge(c)
	slog.InfoContext(ctx, "challenge: created", "challenge_id", c.ID, "group_id", c.GroupID)

	s.eb.Publish(ctx, domain.EventChallengeCreated{Challenge: c})

	return &c, nil
}

type DeleteChallengeRequest struct {
	ChallengeID int64
}

// DeleteChallenge deletes a challenge of any group.
// Points already awarded for the challenge are kept.
// TODO: restrict deletion to members of the owning group.
func (s *Service) DeleteChallenge(ctx context.Context, req DeleteChallengeRequest) error {
	c, ok := s.store.GetChallengeByID(req.ChallengeID)
	if !ok || !s.store.DeleteChallenge(req.ChallengeID) {
		return errors.NotFound("challenge not found: id=%d", req.ChallengeID)
	}

	slog.InfoContext(ctx, "challenge: deleted", "challenge_id", c.ID, "group_id", c.GroupID)

	s.eb.Publish(ctx, domain.EventChallengeDeleted{ChallengeID: c.ID, GroupID: c.GroupID})

	return nil
}

type CompleteChallengeRequest struct {
	UserID      int64
	GroupID     int64
	ChallengeID int64
}

type CompleteChallengeResponse struct {
	Completion    domain.Completion
	PointsAwarded int64
	TotalPoints   int64
}

// CompleteChallenge records that a user finished a challenge and awards its points.
// Completions of one group are serialized, so a user can never complete the
// same challenge twice and concurrent awards are never lost.
func (s *Service) CompleteChallenge(ctx context.Context, req CompleteChallengeRequest) (*CompleteChallengeResponse, error) {
	var resp CompleteChallengeResponse

	err := s.store.WithGroupLock(req.GroupID, func() error {
		if s.store.IsUserChallengeCompleted(req.UserID, req.ChallengeID) {
			return errors.AlreadyCompleted(req.UserID, req.ChallengeID)
		}

		c, ok := s.store.GetChallengeByID(req.ChallengeID)
		if !ok {
			return errors.NotFound("challenge not found: id=%d", req.ChallengeID)
		}

		u, err := s.store.AddUserPoints(req.UserID, c.Points)
		if err != nil {
			return fmt.Errorf("award points: %w", err)
		}

		resp = CompleteChallengeResponse{
			Completion:    s.store.CreateCompletion(req.UserID, req.ChallengeID),
			PointsAwarded: c.Points,
			TotalPoints:   u.Points,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "challenge: completed",
		"challenge_id", req.ChallengeID,
		"user_id", req.UserID,
		"points", resp.PointsAwarded,
	)

	s.eb.Publish(ctx, domain.EventChallengeCompleted{
		Completion:    resp.Completion,
		GroupID:       req.GroupID,
		PointsAwarded: resp.PointsAwarded,
		TotalPoints:   resp.TotalPoints,
	})

	return &resp, nil
}

type ListChallengesRequest struct {
	GroupID int64
	UserID  int64
}

// ListChallenges returns the challenges of a group, annotated with whether the
// user completed them and how many users did.
func (s *Service) ListChallenges(_ context.Context, req ListChallengesRequest) ([]domain.ChallengeView, error) {
	challenges := s.store.GetChallengesByGroup(req.GroupID)

	views := make([]domain.ChallengeView, 0, len(challenges))
	for _, c := range challenges {
		views = append(views, domain.ChallengeView{
			Challenge:      c,
			IsCompleted:    s.store.IsUserChallengeCompleted(req.UserID, c.ID),
			CompletedCount: s.store.CountCompletionsByChallenge(c.ID),
		})
	}

	return views, nil
}
