package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/victornm/groupquest/internal/challenge"
	"github.com/victornm/groupquest/internal/domain"
	"github.com/victornm/groupquest/internal/errors"
	"github.com/victornm/groupquest/internal/group"
	"github.com/victornm/groupquest/internal/leaderboard"
	"github.com/victornm/groupquest/internal/session"
)

type (
	LoginRequest struct {
		Username  string `json:"username"`
		Password  string `json:"password"`
		GroupCode string `json:"groupCode"`
	}

	AuthResponse struct {
		User  domain.User  `json:"user"`
		Group domain.Group `json:"group"`
	}

	CreateGroupRequest struct {
		Name string `json:"name"`
	}

	CreateChallengeRequest struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Points      int64  `json:"points"`
		Difficulty  string `json:"difficulty"`
		Icon        string `json:"icon"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}

	CompleteChallengeResponse struct {
		Message       string `json:"message"`
		PointsAwarded int64  `json:"pointsAwarded"`
		TotalPoints   int64  `json:"totalPoints"`
	}
)

func (a *API) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.abort(c, errors.Validation("invalid request data"))
		return
	}

	resp, err := a.ss.Login(c.Request.Context(), session.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		GroupCode: req.GroupCode,
	})
	if err != nil {
		a.abort(c, err)
		return
	}

	s := sessions.Default(c)
	if old, ok := s.Get(sessionIDKey).(string); ok {
		if err := a.ss.Logout(c.Request.Context(), old); err != nil {
			slog.WarnContext(c.Request.Context(), "api: discard previous session failed", "error", err)
		}
	}
	s.Set(sessionIDKey, resp.Session.ID)
	if err := s.Save(); err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{User: resp.User, Group: resp.Group})
}

// Logout always succeeds. The cookie is cleared even when the session record could not be removed.
func (a *API) Logout(c *gin.Context) {
	s := sessions.Default(c)
	sid, _ := s.Get(sessionIDKey).(string)

	if err := a.ss.Logout(c.Request.Context(), sid); err != nil {
		slog.WarnContext(c.Request.Context(), "api: logout failed", "error", err)
	}

	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := s.Save(); err != nil {
		slog.WarnContext(c.Request.Context(), "api: clear session cookie failed", "error", err)
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}

func (a *API) Me(c *gin.Context) {
	sid, _ := sessions.Default(c).Get(sessionIDKey).(string)

	resp, err := a.ss.Me(c.Request.Context(), sid)
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, AuthResponse{User: resp.User, Group: resp.Group})
}

func (a *API) CreateGroup(c *gin.Context) {
	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.abort(c, errors.Validation("invalid request data"))
		return
	}

	g, err := a.gs.CreateGroup(c.Request.Context(), group.CreateGroupRequest{Name: req.Name})
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, g)
}

func (a *API) ListChallenges(c *gin.Context) {
	ss := currentSession(c)

	views, err := a.cs.ListChallenges(c.Request.Context(), challenge.ListChallengesRequest{
		GroupID: ss.GroupID,
		UserID:  ss.UserID,
	})
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, views)
}

func (a *API) CreateChallenge(c *gin.Context) {
	var req CreateChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		a.abort(c, errors.Validation("invalid request data"))
		return
	}

	ch, err := a.cs.CreateChallenge(c.Request.Context(), challenge.CreateChallengeRequest{
		GroupID:     currentSession(c).GroupID,
		Title:       req.Title,
		Description: req.Description,
		Points:      req.Points,
		Difficulty:  req.Difficulty,
		Icon:        req.Icon,
	})
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, ch)
}

func (a *API) DeleteChallenge(c *gin.Context) {
	id, err := challengeID(c)
	if err != nil {
		a.abort(c, err)
		return
	}

	if err := a.cs.DeleteChallenge(c.Request.Context(), challenge.DeleteChallengeRequest{ChallengeID: id}); err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "Challenge deleted successfully"})
}

func (a *API) CompleteChallenge(c *gin.Context) {
	id, err := challengeID(c)
	if err != nil {
		a.abort(c, err)
		return
	}

	ss := currentSession(c)
	resp, err := a.cs.CompleteChallenge(c.Request.Context(), challenge.CompleteChallengeRequest{
		UserID:      ss.UserID,
		GroupID:     ss.GroupID,
		ChallengeID: id,
	})
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, CompleteChallengeResponse{
		Message:       "Challenge completed successfully",
		PointsAwarded: resp.PointsAwarded,
		TotalPoints:   resp.TotalPoints,
	})
}

func (a *API) ListUsers(c *gin.Context) {
	l, err := a.ls.GetLeaderboard(c.Request.Context(), leaderboard.GetLeaderboardRequest{
		GroupID: currentSession(c).GroupID,
	})
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, l.Entries)
}

func (a *API) GetStats(c *gin.Context) {
	stats, err := a.gs.GetStats(c.Request.Context(), group.GetStatsRequest{
		GroupID: currentSession(c).GroupID,
	})
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func challengeID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validation("invalid challenge id: %q", c.Param("id"))
	}

	return id, nil
}
