package core

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"parley/server/internal/protocol"
)

// Session is one live websocket connection bound to an authenticated user.
// A user may hold several sessions at once (multi-device); the user counts as
// online while at least one remains.
type Session struct {
	HandleID    string
	UserID      string
	Username    string
	ConnectedAt time.Time
	Send        chan protocol.Envelope
}

type session struct {
	handleID    string
	userID      string
	username    string
	connectedAt time.Time
	send        chan protocol.Envelope
}

// Connect registers a new session for userID and returns it. Presence state
// is volatile: nothing survives a restart and every user starts offline.
func (r *Registry) Connect(userID, username string) *Session {
	handleID := fmt.Sprintf("h%d", r.nextHandle.Add(1))
	s := &session{
		handleID:    handleID,
		userID:      userID,
		username:    username,
		connectedAt: time.Now(),
		send:        make(chan protocol.Envelope, defaultSendBuf),
	}

	r.mu.Lock()
	r.sessions[handleID] = s
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]*session)
	}
	r.byUser[userID][handleID] = s
	handles := len(r.byUser[userID])
	total := len(r.sessions)
	r.mu.Unlock()

	slog.Info("session connected", "handle_id", handleID, "user_id", userID, "username", username, "handles", handles, "total_sessions", total)
	return &Session{
		HandleID:    handleID,
		UserID:      userID,
		Username:    username,
		ConnectedAt: s.connectedAt,
		Send:        s.send,
	}
}

// Disconnect removes exactly one session. It reports the owning user and
// whether that user is now fully offline. The session's send channel is
// closed; late pushes are absorbed by trySend.
func (r *Registry) Disconnect(handleID string) (userID string, offline bool) {
	r.mu.Lock()
	s, ok := r.sessions[handleID]
	if !ok {
		r.mu.Unlock()
		return "", false
	}
	delete(r.sessions, handleID)
	delete(r.byUser[s.userID], handleID)
	if len(r.byUser[s.userID]) == 0 {
		delete(r.byUser, s.userID)
		offline = true
	}
	remaining := len(r.sessions)
	r.mu.Unlock()

	close(s.send)
	slog.Info("session disconnected", "handle_id", handleID, "user_id", s.userID, "offline", offline, "remaining_sessions", remaining)
	return s.userID, offline
}

// IsOnline reports whether userID has at least one open session.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// HandlesFor returns the handle ids currently open for userID.
func (r *Registry) HandlesFor(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.byUser[userID]))
	for id := range r.byUser[userID] {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// OnlineUsers returns a stable snapshot of everyone online, one entry per
// user (earliest connection wins for the timestamp).
func (r *Registry) OnlineUsers() []protocol.OnlineUser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]protocol.OnlineUser, 0, len(r.byUser))
	for userID, handles := range r.byUser {
		var first *session
		for _, s := range handles {
			if first == nil || s.connectedAt.Before(first.connectedAt) {
				first = s
			}
		}
		out = append(out, protocol.OnlineUser{
			UserID:      userID,
			Username:    first.username,
			ConnectedTS: first.connectedAt.UnixMilli(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Broadcast pushes msg to every session except exceptHandle ("" for all).
func (r *Registry) Broadcast(msg protocol.Envelope, exceptHandle string) {
	r.mu.RLock()
	targets := make([]chan protocol.Envelope, 0, len(r.sessions))
	for id, s := range r.sessions {
		if exceptHandle != "" && id == exceptHandle {
			continue
		}
		targets = append(targets, s.send)
	}
	r.mu.RUnlock()

	sent := 0
	for _, ch := range targets {
		if trySend(ch, msg) {
			sent++
		}
	}
	slog.Debug("broadcast", "type", msg.Type, "recipients", sent, "total", len(targets))
}

// BroadcastToRoom pushes msg to the online sessions of every member of
// roomID, skipping exceptUserID ("" for none). Membership, not connection,
// scopes the fan-out: members without an open session are simply absent.
func (r *Registry) BroadcastToRoom(roomID string, msg protocol.Envelope, exceptUserID string) {
	r.mu.RLock()
	var targets []chan protocol.Envelope
	for userID := range r.members[roomID] {
		if exceptUserID != "" && userID == exceptUserID {
			continue
		}
		for _, s := range r.byUser[userID] {
			targets = append(targets, s.send)
		}
	}
	r.mu.RUnlock()

	sent := 0
	for _, ch := range targets {
		if trySend(ch, msg) {
			sent++
		}
	}
	slog.Debug("broadcast_to_room", "type", msg.Type, "room_id", roomID, "recipients", sent, "total", len(targets))
}

// SendToUser pushes msg to every session of userID. Returns true if at least
// one session accepted it.
func (r *Registry) SendToUser(userID string, msg protocol.Envelope) bool {
	r.mu.RLock()
	targets := make([]chan protocol.Envelope, 0, len(r.byUser[userID]))
	for _, s := range r.byUser[userID] {
		targets = append(targets, s.send)
	}
	r.mu.RUnlock()

	delivered := false
	for _, ch := range targets {
		if trySend(ch, msg) {
			delivered = true
		}
	}
	return delivered
}

// SendToHandle pushes msg to one specific session.
func (r *Registry) SendToHandle(handleID string, msg protocol.Envelope) bool {
	r.mu.RLock()
	s, ok := r.sessions[handleID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return trySend(s.send, msg)
}

// trySend never blocks the caller beyond SendTimeout and absorbs sends to a
// channel closed by a concurrent Disconnect.
func trySend(ch chan protocol.Envelope, msg protocol.Envelope) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case ch <- msg:
		return true
	case <-time.After(SendTimeout):
		slog.Debug("trySend timeout", "type", msg.Type)
		return false
	}
}
