// Package server exposes the board store and toast queue over REST and a
// per-board websocket channel.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/satyaki-up/sprintboard/internal/board"
	"github.com/satyaki-up/sprintboard/internal/db"
	"github.com/satyaki-up/sprintboard/internal/notify"
)

// ActivitySource lists logged changes. *db.Repository satisfies it.
type ActivitySource interface {
	RecentChanges(ctx context.Context, kind board.EntityKind, entityID string, limit int) ([]db.ChangeRecord, error)
}

type Options struct {
	// User is the acting user when a request carries no X-User header.
	User         string
	DeletePolicy string
	Activity     ActivitySource
	Logger       *zap.Logger
}

type Server struct {
	store  *board.Store
	toasts *notify.Queue
	hub    *Hub
	opts   Options
	router *gin.Engine
	logger *zap.Logger
}

func New(store *board.Store, toasts *notify.Queue, hub *Hub, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		store:  store,
		toasts: toasts,
		hub:    hub,
		opts:   opts,
		router: router,
		logger: logger,
	}

	api := router.Group("/api")
	{
		api.GET("/epics", s.handleListEpics)
		api.POST("/epics", s.handleCreateEpic)
		api.GET("/epics/:id", s.handleGetEpic)
		api.PATCH("/epics/:id", s.handleUpdateEpic)
		api.PUT("/epics/:id/status", s.handleEpicStatus)
		api.DELETE("/epics/:id", s.handleDeleteEpic)
		api.POST("/epics/:id/restore", s.handleRestoreEpic)

		api.GET("/sprints", s.handleListSprints)
		api.GET("/sprints/selectable", s.handleSelectableSprints)
		api.POST("/sprints", s.handleSaveSprint)
		api.PUT("/sprints/:id", s.handleSaveSprint)
		api.PUT("/sprints/:id/state", s.handleSprintState)
		api.DELETE("/sprints/:id", s.handleDeleteSprint)
		api.POST("/sprints/:id/restore", s.handleRestoreSprint)

		api.GET("/items", s.handleListItems)
		api.POST("/items", s.handleCreateItem)
		api.GET("/items/:id", s.handleGetItem)
		api.PATCH("/items/:id", s.handleUpdateItem)
		api.POST("/items/:id/comments", s.handleAddComment)
		api.POST("/items/:id/watch", s.handleWatch)
		api.DELETE("/items/:id/watch", s.handleUnwatch)

		api.GET("/toasts", s.handleListToasts)
		api.DELETE("/toasts/:id", s.handleDismissToast)

		api.GET("/views", s.handleListViews)
		api.POST("/views", s.handleSaveView)
		api.DELETE("/views/:id", s.handleDeleteView)

		api.GET("/notifications", s.handleListNotifications)
		api.POST("/notifications/:id/read", s.handleMarkRead)

		api.POST("/teams", s.handleCreateTeam)
		api.POST("/teams/:id/invites", s.handleInvite)
		api.POST("/invites/:id/respond", s.handleRespondInvite)

		api.GET("/activity", s.handleActivity)
	}
	if hub != nil {
		router.GET("/ws/boards/:boardID", hub.ServeWS)
	}

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}

func (s *Server) actor(c *gin.Context) string {
	if u := c.GetHeader("X-User"); u != "" {
		return u
	}
	return s.opts.User
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, board.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, board.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, board.ErrConflict), errors.Is(err, board.ErrInvalidStateTransition):
		status = http.StatusConflict
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}
