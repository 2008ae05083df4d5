// Package ws owns the websocket transport: the handshake authentication
// gate, the per-connection session loop, and the push of queued offline
// messages to freshly connected clients.
package ws

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"parley/server/internal/auth"
	"parley/server/internal/core"
	"parley/server/internal/protocol"
	"parley/server/internal/store"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	writeTimeout = 5 * time.Second
	maxFrameSize = 1 << 20

	// Drained offline messages are pushed in batches so a long backlog does
	// not saturate the transport. Delivery is at-least-once; clients dedupe
	// by message id.
	offlineBatchSize  = 10
	offlineBatchDelay = 100 * time.Millisecond
)

// UserDirectory resolves user ids to directory entries. The session overlays
// the directory display name over the token claim when an entry exists.
type UserDirectory interface {
	UserByID(ctx context.Context, id string) (store.User, error)
}

// Handler owns websocket transport for the messaging core.
type Handler struct {
	registry  *core.Registry
	verifier  *auth.Verifier
	directory UserDirectory
	upgrader  websocket.Upgrader
}

// NewHandler creates a websocket handler. directory may be nil, in which
// case token claims are used as-is.
func NewHandler(registry *core.Registry, verifier *auth.Verifier, directory UserDirectory) *Handler {
	return &Handler{
		registry:  registry,
		verifier:  verifier,
		directory: directory,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Register binds websocket routes on an Echo router.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket authenticates the handshake, then upgrades and serves the
// connection until disconnect. A bad token refuses the connection outright;
// nothing is registered for an unauthenticated peer.
func (h *Handler) HandleWebSocket(c echo.Context) error {
	identity, err := h.authenticate(c.Request())
	if err != nil {
		slog.Info("handshake refused", "remote", c.Request().RemoteAddr, "err", err)
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}
	h.serveConn(conn, identity)
	return nil
}

// authenticate extracts the bearer token from the Authorization header or
// the token query parameter (clients use either, as the reference client
// does) and verifies it.
func (h *Handler) authenticate(r *http.Request) (auth.Identity, error) {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if header := r.Header.Get(echo.HeaderAuthorization); header != "" {
		if rest, ok := strings.CutPrefix(header, "Bearer "); ok {
			token = strings.TrimSpace(rest)
		}
	}

	identity, err := h.verifier.Verify(token)
	if err != nil {
		return auth.Identity{}, err
	}

	if h.directory != nil {
		u, dirErr := h.directory.UserByID(r.Context(), identity.UserID)
		switch {
		case dirErr == nil:
			identity.Username = u.Username
			identity.IsAdmin = identity.IsAdmin || u.IsAdmin
		case errors.Is(dirErr, store.ErrUserNotFound):
			// Token-only users keep their claimed name.
		default:
			return auth.Identity{}, fmt.Errorf("resolve user: %w", dirErr)
		}
	}
	return identity, nil
}

func (h *Handler) serveConn(conn *websocket.Conn, identity auth.Identity) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Time{})
	conn.SetReadLimit(maxFrameSize)

	session := h.registry.Connect(identity.UserID, identity.Username)

	defer func() {
		rooms := h.registry.MemberRooms(identity.UserID)
		h.registry.Disconnect(session.HandleID)

		// Membership survives disconnects; only presence is cleared. Rooms
		// are told the user went away so UIs can update.
		ts := time.Now().UnixMilli()
		for _, roomID := range rooms {
			h.registry.BroadcastToRoom(roomID, protocol.Envelope{
				Type:     protocol.EvtUserLeft,
				RoomID:   roomID,
				UserID:   identity.UserID,
				Username: identity.Username,
				TS:       ts,
			}, identity.UserID)
		}
		h.broadcastOnlineUsers()
	}()

	// Writer: the session send channel is the only path to this socket.
	go func() {
		for out := range session.Send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(out); err != nil {
				return
			}
		}
	}()

	h.broadcastOnlineUsers()
	go h.pushOfflineMessages(session)

	sess := &sessionState{handler: h, session: session, identity: identity}
	for {
		var in protocol.Envelope
		if err := conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("read error", "user_id", identity.UserID, "err", err)
			}
			return
		}
		sess.dispatch(in)
	}
}

// pushOfflineMessages drains the mailbox and pushes the backlog in spaced
// batches. Runs once per connection, concurrently with the read loop.
func (h *Handler) pushOfflineMessages(session *core.Session) {
	backlog := h.registry.Drain(session.UserID)
	if len(backlog) == 0 {
		return
	}

	total := (len(backlog) + offlineBatchSize - 1) / offlineBatchSize
	for i := 0; i < len(backlog); i += offlineBatchSize {
		end := i + offlineBatchSize
		if end > len(backlog) {
			end = len(backlog)
		}
		delivered := h.registry.SendToHandle(session.HandleID, protocol.Envelope{
			Type:         protocol.EvtOfflineMessageBatch,
			Messages:     toWireMessages(backlog[i:end]),
			BatchIndex:   i / offlineBatchSize,
			TotalBatches: total,
		})
		if !delivered {
			slog.Warn("offline batch dropped, client gone", "user_id", session.UserID, "batch", i/offlineBatchSize)
			return
		}
		if end < len(backlog) {
			time.Sleep(offlineBatchDelay)
		}
	}
	slog.Info("offline backlog pushed", "user_id", session.UserID, "messages", len(backlog), "batches", total)
}

func (h *Handler) broadcastOnlineUsers() {
	h.registry.Broadcast(protocol.Envelope{
		Type:  protocol.EvtOnlineUsersUpdated,
		Users: h.registry.OnlineUsers(),
	}, "")
}
