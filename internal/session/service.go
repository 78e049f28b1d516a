package session

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/groupquest/internal/domain"
	"github.com/victornm/groupquest/internal/errors"
	"github.com/victornm/groupquest/internal/store"
)

const defaultTTL = 24 * time.Hour

type Config struct {
	Store  *store.Store
	Redis  redis.UniversalClient
	Prefix string
	// TTL is the inactivity window after which a session expires.
	TTL time.Duration
}

type Service struct {
	store    *store.Store
	sessions *redisStore
}

func NewService(c Config) *Service {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Service{
		store: c.Store,
		sessions: &redisStore{
			redis:    c.Redis,
			prefix:   c.Prefix,
			ttl:      ttl,
			instance: c.Store.InstanceID(),
		},
	}
}

// LoginRequest represents a request to join a group.
type LoginRequest struct {
	Username string
	// Password is required but not verified, there are no stored credentials.
	Password  string
	GroupCode string
}

type LoginResponse struct {
	Session domain.Session
	User    domain.User
	Group   domain.Group
}

// Login resolves the group by its invite code and signs the user in.
// A user that does not exist in the group yet is created, so joining a group
// and signing up are the same operation.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	switch {
	case strings.TrimSpace(req.Username) == "":
		return nil, errors.Validation("username is required")
	case req.Password == "":
		return nil, errors.Validation("password is required")
	case strings.TrimSpace(req.GroupCode) == "":
		return nil, errors.Validation("group code is required")
	}

	g, ok := s.store.GetGroupByInviteCode(req.GroupCode)
	if !ok {
		return nil, errors.InvalidGroupCode(req.GroupCode)
	}

	var u domain.User
	err := s.store.WithGroupLock(g.ID, func() error {
		var found bool
		if u, found = s.store.GetUserByUsernameAndGroup(req.Username, g.ID); found {
			return nil
		}

		u = s.store.CreateUser(req.Username, g.ID)
		slog.InfoContext(ctx, "session: user joined group", "user_id", u.ID, "group_id", g.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("session: login: %w", err)
	}

	ss, err := s.sessions.create(ctx, u.ID, g.ID)
	if err != nil {
		return nil, fmt.Errorf("session: login: %w", err)
	}

	return &LoginResponse{
		Session: ss,
		User:    u,
		Group:   g,
	}, nil
}

// Logout discards a session. Unknown sessions are ignored.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}

	if err := s.sessions.delete(ctx, sessionID); err != nil {
		return fmt.Errorf("session: logout: %w", err)
	}

	return nil
}

// Resolve returns the session bound to sessionID and extends its expiry.
// The session is rejected when its user or group no longer exists.
func (s *Service) Resolve(ctx context.Context, sessionID string) (domain.Session, error) {
	ss, _, err := s.resolve(ctx, sessionID)
	return ss, err
}

type MeResponse struct {
	User  domain.User
	Group domain.Group
}

// Me returns the user and group of a session.
func (s *Service) Me(ctx context.Context, sessionID string) (*MeResponse, error) {
	_, resp, err := s.resolve(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	return resp, nil
}

func (s *Service) resolve(ctx context.Context, sessionID string) (domain.Session, *MeResponse, error) {
	if sessionID == "" {
		return domain.Session{}, nil, errors.Unauthenticated("authentication required")
	}

	ss, err := s.sessions.get(ctx, sessionID)
	if stderrors.Is(err, errNoSession) {
		return domain.Session{}, nil, errors.Unauthenticated("authentication required")
	}
	if err != nil {
		return domain.Session{}, nil, fmt.Errorf("session: resolve: %w", err)
	}

	u, uok := s.store.GetUserByID(ss.UserID)
	g, gok := s.store.GetGroupByID(ss.GroupID)
	if !uok || !gok || u.GroupID != g.ID {
		return domain.Session{}, nil, errors.Unauthenticated("invalid session")
	}

	return ss, &MeResponse{User: u, Group: g}, nil
}
