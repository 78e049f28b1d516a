package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/groupquest/internal/challenge"
	"github.com/victornm/groupquest/internal/domain"
	"github.com/victornm/groupquest/internal/errors"
	"github.com/victornm/groupquest/internal/event"
	"github.com/victornm/groupquest/internal/group"
	"github.com/victornm/groupquest/internal/leaderboard"
	"github.com/victornm/groupquest/internal/session"
	"github.com/victornm/groupquest/internal/telemetry"
)

const (
	sessionIDKey  = "sid"
	ctxSessionKey = "api.session"
)

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Session      *session.Service
	Group        *group.Service
	Challenge    *challenge.Service
	Leaderboard  *leaderboard.Service
	Redis        Redis
	PubsubPrefix string
	Cookie       CookieConfig
}

type CookieConfig struct {
	Name   string
	Secret string
	// MaxAge matches the session inactivity window. The cookie is renewed on every authenticated request.
	MaxAge time.Duration
	Secure bool
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	ss *session.Service
	gs *group.Service
	cs *challenge.Service
	ls *leaderboard.Service

	redis  Redis
	prefix string
}

func New(c Config) *API {
	a := &API{
		ss:     c.Session,
		gs:     c.Group,
		cs:     c.Challenge,
		ls:     c.Leaderboard,
		redis:  c.Redis,
		prefix: c.PubsubPrefix,
	}

	store := cookie.NewStore([]byte(c.Cookie.Secret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(c.Cookie.MaxAge.Seconds()),
		Secure:   c.Cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	r := c.Router.Group("/api")
	r.Use(sessions.Sessions(c.Cookie.Name, store))

	r.POST("/auth/login", a.Login)
	r.POST("/auth/logout", a.Logout)
	r.GET("/auth/me", a.Me)
	r.POST("/groups", a.CreateGroup)

	authenticated := r.Group("/")
	authenticated.Use(a.RequireSession)
	{
		authenticated.GET("/challenges", a.ListChallenges)
		authenticated.POST("/challenges", a.CreateChallenge)
		authenticated.DELETE("/challenges/:id", a.DeleteChallenge)
		authenticated.POST("/challenges/:id/complete", a.CompleteChallenge)
		authenticated.GET("/users", a.ListUsers)
		authenticated.GET("/stats", a.GetStats)
	}

	// Register event handlers
	c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
		return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
	})

	return a
}

// RequireSession aborts with 401 unless the request carries a live session.
func (a *API) RequireSession(c *gin.Context) {
	s := sessions.Default(c)
	sid, _ := s.Get(sessionIDKey).(string)

	ss, err := a.ss.Resolve(c.Request.Context(), sid)
	if err != nil {
		a.abort(c, err)
		return
	}

	// Renew the cookie together with the server side expiry.
	if err := s.Save(); err != nil {
		a.abort(c, err)
		return
	}

	c.Set(ctxSessionKey, ss)
	c.Set(telemetry.UserIDKey, ss.UserID)
	c.Next()
}

func currentSession(c *gin.Context) domain.Session {
	return c.MustGet(ctxSessionKey).(domain.Session)
}

type errorResponse struct {
	Code    errors.Code `json:"code"`
	Reason  string      `json:"reason,omitempty"`
	Message string      `json:"message"`
}

// abort converts err into a JSON error response. Causes of internal errors are logged, not returned.
func (a *API) abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	_ = c.Error(err)

	resp := errorResponse{Code: e.Code, Reason: e.Reason, Message: e.Message}
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: internal error", "route", c.FullPath(), "error", err)
		resp.Message = "internal error"
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), resp)
}
