package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/groupquest/internal/api"
	"github.com/victornm/groupquest/internal/challenge"
	"github.com/victornm/groupquest/internal/event"
	"github.com/victornm/groupquest/internal/group"
	"github.com/victornm/groupquest/internal/leaderboard"
	"github.com/victornm/groupquest/internal/logging"
	"github.com/victornm/groupquest/internal/session"
	"github.com/victornm/groupquest/internal/store"
	"github.com/victornm/groupquest/internal/telemetry"
)

type Config struct {
	HTTP struct {
		Port int32
		// AllowOrigins enables CORS with credentials for browser clients served from other origins.
		AllowOrigins []string
	}

	Log logging.Config

	Session struct {
		CookieName string
		Secret     string
		TTL        time.Duration
		Secure     bool
	}

	Redis struct {
		Session struct {
			Addrs  []string
			Pass   string
			Prefix string
		}

		Pubsub struct {
			Addrs  []string
			Pass   string
			Prefix string
		}
	}

	Leaderboard struct {
		PublishInterval time.Duration
	}
}

// DefaultConfig returns the values used for keys absent from the config file and environment.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.Log.Level = "info"
	c.Log.Format = "text"
	c.Session.CookieName = "groupquest"
	c.Session.TTL = 24 * time.Hour
	c.Redis.Session.Prefix = "groupquest"
	c.Redis.Pubsub.Prefix = "groupquest:pubsub"
	c.Leaderboard.PublishInterval = 200 * time.Millisecond
	return c
}

type Server struct {
	c Config

	eb    *event.Bus
	store *store.Store
	reg   *prometheus.Registry

	infra struct {
		redis struct {
			session redis.UniversalClient
			pubsub  redis.UniversalClient
		}
	}

	service struct {
		session     *session.Service
		group       *group.Service
		challenge   *challenge.Service
		leaderboard *leaderboard.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	if c.Session.Secret == "" {
		return nil, fmt.Errorf("server: session secret is required")
	}

	s := &Server{c: c}

	s.eb = event.NewBus()
	s.store = store.New()
	s.reg = prometheus.NewRegistry()
	s.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	connect := func(name string, addrs []string, pass string) (redis.UniversalClient, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		r := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    addrs,
			Password: pass,
		})

		if err := telemetry.MonitorRedis(r, name); err != nil {
			return nil, err
		}

		if err := r.Ping(ctx).Err(); err != nil {
			return nil, err
		}

		return r, nil
	}

	var err error
	s.infra.redis.session, err = connect("session", s.c.Redis.Session.Addrs, s.c.Redis.Session.Pass)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.infra.redis.pubsub, err = connect("pubsub", s.c.Redis.Pubsub.Addrs, s.c.Redis.Pubsub.Pass)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

func (s *Server) initService() {
	telemetry.NewDomainMetrics(s.reg, s.eb)

	s.service.session = session.NewService(session.Config{
		Store:  s.store,
		Redis:  s.infra.redis.session,
		Prefix: s.c.Redis.Session.Prefix,
		TTL:    s.c.Session.TTL,
	})

	s.service.group = group.NewService(group.Config{
		Store:    s.store,
		EventBus: s.eb,
	})

	s.service.challenge = challenge.NewService(challenge.Config{
		Store:    s.store,
		EventBus: s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus:        s.eb,
		Store:           s.store,
		Redis:           s.infra.redis.session,
		Prefix:          s.c.Redis.Session.Prefix,
		PublishInterval: s.c.Leaderboard.PublishInterval,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{})))
	e.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery(), telemetry.HTTPServerMiddleware(telemetry.NewHTTPMetrics(s.reg)))
	if len(s.c.HTTP.AllowOrigins) > 0 {
		e.Use(cors.New(cors.Config{
			AllowOrigins:     s.c.HTTP.AllowOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Session:      s.service.session,
		Group:        s.service.group,
		Challenge:    s.service.challenge,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
		Cookie: api.CookieConfig{
			Name:   s.c.Session.CookieName,
			Secret: s.c.Session.Secret,
			MaxAge: s.c.Session.TTL,
			Secure: s.c.Session.Secure,
		},
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() {
	ctx := context.TODO()

	slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	for name, r := range map[string]redis.UniversalClient{
		"session": s.infra.redis.session,
		"pubsub":  s.infra.redis.pubsub,
	} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "client", name, "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
