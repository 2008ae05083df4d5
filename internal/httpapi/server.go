// Package httpapi assembles the Echo application: the websocket route plus
// small read-only endpoints for health checks and state inspection. There is
// no REST CRUD surface for rooms or users here; all state changes flow
// through the websocket commands.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"parley/server/internal/core"
	"parley/server/internal/protocol"
	"parley/server/internal/ws"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Server is the Echo application.
type Server struct {
	echo     *echo.Echo
	registry *core.Registry
}

// New constructs the Echo app with websocket and inspection routes.
func New(registry *core.Registry, wsHandler *ws.Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, registry: registry}
	e.GET("/health", s.handleHealth)
	e.GET("/api/state", s.handleState)
	wsHandler.Register(e)
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Online   int    `json:"online_users"`
}

func (s *Server) handleHealth(c echo.Context) error {
	stats := s.registry.Stats()
	return c.JSON(http.StatusOK, healthResponse{
		Status:   "ok",
		Sessions: stats.Sessions,
		Online:   stats.OnlineUsers,
	})
}

type stateResponse struct {
	Users []protocol.OnlineUser `json:"users"`
	Rooms []protocol.Room       `json:"rooms"`
}

func (s *Server) handleState(c echo.Context) error {
	users := s.registry.OnlineUsers()
	if users == nil {
		users = []protocol.OnlineUser{}
	}
	rooms := s.registry.ListRooms(true)
	out := make([]protocol.Room, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, protocol.Room{
			ID:           r.ID,
			Name:         r.Name,
			Description:  r.Description,
			MaxUsers:     r.MaxUsers,
			CreatedBy:    r.CreatedBy,
			IsActive:     r.IsActive,
			MemberCount:  r.MemberCount,
			MessageCount: r.MessageCount,
			CreatedTS:    r.CreatedAt.UnixMilli(),
			UpdatedTS:    r.UpdatedAt.UnixMilli(),
		})
	}
	return c.JSON(http.StatusOK, stateResponse{Users: users, Rooms: out})
}
