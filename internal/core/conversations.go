package core

import (
	"log/slog"
	"sort"
	"strings"
	"time"
)

// conversationPrefix keys private logs apart from room logs in the shared
// message store.
const conversationPrefix = "conversation_"

type conversation struct {
	id           string
	participants [2]string
	createdAt    time.Time
	updatedAt    time.Time
	lastMsgID    string
}

// Conversation is a view of one private two-party conversation.
type Conversation struct {
	ID           string
	Participants []string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	LastMessage  *Message
}

// ConversationID derives the canonical id for a pair of users. The pair is
// sorted lexicographically first, so both participants resolve to the same
// id no matter who initiates.
func ConversationID(userA, userB string) string {
	if userB < userA {
		userA, userB = userB, userA
	}
	return conversationPrefix + userA + "_" + userB
}

// IsPrivateConversationID reports whether id names a private conversation
// log rather than a room log.
func IsPrivateConversationID(id string) bool {
	return strings.HasPrefix(id, conversationPrefix)
}

// GetOrCreate returns the private conversation for the pair, creating it
// lazily on first use. Conversations live for the process lifetime.
func (r *Registry) GetOrCreate(userA, userB string) Conversation {
	id := ConversationID(userA, userB)

	r.mu.Lock()
	c := r.getOrCreateLocked(id, userA, userB)
	view := r.conversationViewLocked(c)
	r.mu.Unlock()
	return view
}

func (r *Registry) getOrCreateLocked(id, userA, userB string) *conversation {
	if c, ok := r.conversations[id]; ok {
		return c
	}
	if userB < userA {
		userA, userB = userB, userA
	}
	now := time.Now()
	c := &conversation{
		id:           id,
		participants: [2]string{userA, userB},
		createdAt:    now,
		updatedAt:    now,
	}
	r.conversations[id] = c
	for _, userID := range c.participants {
		if r.byParticipant[userID] == nil {
			r.byParticipant[userID] = make(map[string]struct{})
		}
		r.byParticipant[userID][id] = struct{}{}
	}
	slog.Info("conversation created", "conversation_id", id)
	return c
}

// SendPrivate resolves (or creates) the pair's conversation, appends the
// message to its log, and refreshes the last-message pointer under one lock
// so no reader observes the conversation ahead of its message.
func (r *Registry) SendPrivate(senderID, senderName, receiverID, content, msgType string) (Message, Conversation) {
	id := ConversationID(senderID, receiverID)

	r.mu.Lock()
	c := r.getOrCreateLocked(id, senderID, receiverID)
	m := r.appendLocked(id, senderID, senderName, content, msgType)
	c.lastMsgID = m.id
	c.updatedAt = m.timestamp
	msgView := messageView(m)
	convView := r.conversationViewLocked(c)
	r.mu.Unlock()

	return msgView, convView
}

// ConversationsFor returns userID's conversations, most recently updated
// first.
func (r *Registry) ConversationsFor(userID string) []Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Conversation, 0, len(r.byParticipant[userID]))
	for id := range r.byParticipant[userID] {
		if c, ok := r.conversations[id]; ok {
			out = append(out, r.conversationViewLocked(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ConversationByID returns one conversation.
func (r *Registry) ConversationByID(id string) (Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[id]
	if !ok {
		return Conversation{}, ErrConversationNotFound
	}
	return r.conversationViewLocked(c), nil
}

// OtherParticipant returns the peer of userID in the conversation.
func (r *Registry) OtherParticipant(conversationID, userID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return "", ErrConversationNotFound
	}
	if c.participants[0] == userID {
		return c.participants[1], nil
	}
	if c.participants[1] == userID {
		return c.participants[0], nil
	}
	return "", ErrConversationNotFound
}

// IsParticipant reports whether userID belongs to the conversation. Used as
// the authorization guard before conversation detail or history is exposed.
func (r *Registry) IsParticipant(userID, conversationID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.conversations[conversationID]
	if !ok {
		return false
	}
	return c.participants[0] == userID || c.participants[1] == userID
}

func (r *Registry) conversationViewLocked(c *conversation) Conversation {
	view := Conversation{
		ID:           c.id,
		Participants: []string{c.participants[0], c.participants[1]},
		CreatedAt:    c.createdAt,
		UpdatedAt:    c.updatedAt,
	}
	if m, ok := r.messages[c.lastMsgID]; ok {
		mv := messageView(m)
		view.LastMessage = &mv
	}
	return view
}
