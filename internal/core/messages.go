package core

import (
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageTypeText is the default message kind; MessageTypeSystem marks
// server-originated notices. Other application-defined kinds pass through
// untouched.
const (
	MessageTypeText   = "text"
	MessageTypeSystem = "system"
)

type message struct {
	id             string
	conversationID string
	senderID       string
	senderName     string
	content        string
	msgType        string
	timestamp      time.Time
	readBy         map[string]struct{}
}

// Message is an immutable view of one stored message. Only the reader set
// grows after creation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderName     string
	Content        string
	Type           string
	Timestamp      time.Time
	ReadBy         []string
}

// Append stores a new message at the tail of the conversation's log and
// returns it. The id and timestamp are assigned here and never change.
func (r *Registry) Append(conversationID, senderID, senderName, content, msgType string) Message {
	r.mu.Lock()
	m := r.appendLocked(conversationID, senderID, senderName, content, msgType)
	r.mu.Unlock()
	return messageView(m)
}

func (r *Registry) appendLocked(conversationID, senderID, senderName, content, msgType string) *message {
	if msgType == "" {
		msgType = MessageTypeText
	}
	m := &message{
		id:             uuid.NewString(),
		conversationID: conversationID,
		senderID:       senderID,
		senderName:     senderName,
		content:        content,
		msgType:        msgType,
		timestamp:      time.Now(),
		readBy:         make(map[string]struct{}),
	}
	r.messages[m.id] = m
	r.logs[conversationID] = append(r.logs[conversationID], m.id)
	slog.Debug("message appended", "msg_id", m.id, "conversation_id", conversationID, "sender", senderID, "type", msgType)
	return m
}

// History returns up to limit messages preceding the offset-th most recent
// one, newest first. hasMore is true exactly when limit messages came back.
func (r *Registry) History(conversationID string, limit, offset int) (msgs []Message, hasMore bool) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.logs[conversationID]
	end := len(log) - offset
	if end <= 0 {
		return nil, false
	}
	start := end - limit
	if start < 0 {
		start = 0
	}
	msgs = make([]Message, 0, end-start)
	for i := end - 1; i >= start; i-- {
		if m, ok := r.messages[log[i]]; ok {
			msgs = append(msgs, messageView(m))
		}
	}
	return msgs, len(msgs) == limit
}

// Search scans the conversation's log for a case-insensitive substring match
// and returns up to limit hits, newest first. An empty query matches nothing.
func (r *Registry) Search(conversationID, query string, limit int) []Message {
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}
	needle := strings.ToLower(query)

	r.mu.RLock()
	defer r.mu.RUnlock()

	log := r.logs[conversationID]
	var out []Message
	for i := len(log) - 1; i >= 0 && len(out) < limit; i-- {
		m, ok := r.messages[log[i]]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(m.content), needle) {
			out = append(out, messageView(m))
		}
	}
	return out
}

// MessageByID returns one message.
func (r *Registry) MessageByID(id string) (Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.messages[id]
	if !ok {
		return Message{}, ErrMessageNotFound
	}
	return messageView(m), nil
}

// MarkRead records that readerID has read the message. Marking twice is a
// no-op success.
func (r *Registry) MarkRead(messageID, readerID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	m.readBy[readerID] = struct{}{}
	return nil
}

// DeleteMessage removes a message from the store and from its conversation's
// log. Only the sender or an administrator may delete.
func (r *Registry) DeleteMessage(messageID, actorID string, isAdmin bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.messages[messageID]
	if !ok {
		return ErrMessageNotFound
	}
	if m.senderID != actorID && !isAdmin {
		return ErrForbidden
	}

	r.dropMessageLocked(m)
	slog.Info("message deleted", "msg_id", messageID, "actor", actorID)
	return nil
}

// PurgeOlderThan deletes every message older than now-d across all
// conversations and returns how many were removed. Maintenance path, not hot.
func (r *Registry) PurgeOlderThan(d time.Duration) int {
	cutoff := time.Now().Add(-d)

	r.mu.Lock()
	defer r.mu.Unlock()

	var doomed []*message
	for _, m := range r.messages {
		if m.timestamp.Before(cutoff) {
			doomed = append(doomed, m)
		}
	}
	for _, m := range doomed {
		r.dropMessageLocked(m)
	}
	if len(doomed) > 0 {
		slog.Info("messages purged", "count", len(doomed), "cutoff", cutoff)
	}
	return len(doomed)
}

func (r *Registry) dropMessageLocked(m *message) {
	delete(r.messages, m.id)
	log := r.logs[m.conversationID]
	for i, id := range log {
		if id == m.id {
			r.logs[m.conversationID] = append(log[:i], log[i+1:]...)
			break
		}
	}
}

func messageView(m *message) Message {
	readBy := make([]string, 0, len(m.readBy))
	for id := range m.readBy {
		readBy = append(readBy, id)
	}
	sort.Strings(readBy)
	return Message{
		ID:             m.id,
		ConversationID: m.conversationID,
		SenderID:       m.senderID,
		SenderName:     m.senderName,
		Content:        m.content,
		Type:           m.msgType,
		Timestamp:      m.timestamp,
		ReadBy:         readBy,
	}
}
