package main

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	slogecho "github.com/samber/slog-echo"

	"github.com/cardhouse/linesman/chatmod/engine"
	"github.com/cardhouse/linesman/chatmod/ledger"
)

func (s *Server) buildAPI(adminPassword string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(s.logger))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("linesman"))

	// keep-alive; external uptime checkers poll this
	e.GET("/", s.HandleHealthCheck)
	e.GET("/_health", s.HandleHealthCheck)
	e.GET("/metrics", echoprometheus.NewHandler())

	admin := e.Group("/admin", adminAuthMiddleware(adminPassword))
	admin.GET("/users/:id/warnings", s.HandleUserWarnings)
	admin.POST("/broadcast", s.HandleBroadcastSubmit)
	admin.POST("/broadcast/confirm", s.HandleBroadcastConfirm)
	return e
}

func (s *Server) RunAPI(listen string) error {
	s.logger.Info("starting HTTP API", "bind", listen)
	if err := s.echo.Start(listen); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// crude auth middleware to require "admin password" authentication on the
// admin endpoints. With no password configured the endpoints stay closed.
func adminAuthMiddleware(adminPassword string) echo.MiddlewareFunc {
	return middleware.BasicAuthWithConfig(middleware.BasicAuthConfig{
		Validator: func(username, password string, c echo.Context) (bool, error) {
			if adminPassword == "" {
				return false, nil
			}
			if username != "admin" {
				return false, nil
			}
			return subtle.ConstantTimeCompare([]byte(password), []byte(adminPassword)) == 1, nil
		},
	})
}

func (s *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type warningsResponse struct {
	UserID  string         `json:"userID"`
	Count   int            `json:"count"`
	Recent  []ledger.Entry `json:"recent"`
	Outcome string         `json:"outcome"`
}

// HandleUserWarnings reports a user's warning count and the five most recent
// history entries.
func (s *Server) HandleUserWarnings(c echo.Context) error {
	userID := c.Param("id")
	rec, err := s.engine.Ledger.Get(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "ledger lookup failed")
	}

	recent := rec.History
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	outcome := "clean"
	if rec.Count >= s.engine.Policy.MaxWarnings {
		outcome = string(engine.OutcomeBanned)
	} else if rec.Count > 0 {
		outcome = string(engine.OutcomeWarned)
	}
	return c.JSON(http.StatusOK, warningsResponse{
		UserID:  userID,
		Count:   rec.Count,
		Recent:  recent,
		Outcome: outcome,
	})
}

type broadcastRequest struct {
	CommunityID   string `json:"communityID"`
	ChannelID     string `json:"channelID"`
	AuthorID      string `json:"authorID"`
	AuthorDisplay string `json:"authorDisplay"`
	Mention       string `json:"mention"`
	Content       string `json:"content"`
}

func (r broadcastRequest) toBroadcast() engine.Broadcast {
	return engine.Broadcast{
		CommunityID:   r.CommunityID,
		ChannelID:     r.ChannelID,
		AuthorID:      r.AuthorID,
		AuthorDisplay: r.AuthorDisplay,
		Mention:       r.Mention,
		Content:       r.Content,
	}
}

// HandleBroadcastSubmit screens a draft announcement. A blocked draft has
// already escalated its author by the time this responds.
func (s *Server) HandleBroadcastSubmit(c echo.Context) error {
	var req broadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid broadcast body")
	}
	err := s.engine.SubmitBroadcast(c.Request().Context(), req.toBroadcast())
	if errors.Is(err, engine.ErrDraftBlocked) {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{
			"status": "blocked",
			"reason": err.Error(),
		})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "draft screening failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "screened"})
}

// HandleBroadcastConfirm sends a screened announcement, at most once per
// cooldown period per author.
func (s *Server) HandleBroadcastConfirm(c echo.Context) error {
	var req broadcastRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid broadcast body")
	}
	err := s.engine.ConfirmBroadcast(c.Request().Context(), req.toBroadcast())
	var cooled *engine.CooldownError
	if errors.As(err, &cooled) {
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(cooled.Remaining.Seconds())+1))
		return c.JSON(http.StatusTooManyRequests, map[string]string{
			"status": "cooldown",
			"retry":  cooled.Remaining.String(),
		})
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "broadcast send failed")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "sent"})
}
