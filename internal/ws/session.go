package ws

import (
	"errors"
	"log/slog"
	"strings"
	"time"

	"parley/server/internal/auth"
	"parley/server/internal/core"
	"parley/server/internal/protocol"
)

// sessionState binds one authenticated connection to the registry and
// processes its commands one at a time. Many sessions run in parallel; no
// command here blocks on network I/O while registry locks are held, since
// every push goes through bounded send channels.
type sessionState struct {
	handler  *Handler
	session  *core.Session
	identity auth.Identity
}

func (s *sessionState) dispatch(in protocol.Envelope) {
	switch in.Type {
	case protocol.CmdJoinRoom:
		s.handleJoinRoom(in)
	case protocol.CmdLeaveRoom:
		s.handleLeaveRoom(in)
	case protocol.CmdSendMessage:
		s.handleSendMessage(in)
	case protocol.CmdSendPrivateMessage:
		s.handleSendPrivateMessage(in)
	case protocol.CmdGetChatHistory:
		s.handleGetChatHistory(in)
	case protocol.CmdGetConversations:
		s.handleGetConversations()
	case protocol.CmdGetConversationDetail:
		s.handleGetConversationDetail(in)
	case protocol.CmdGetOfflineMessages:
		s.handleGetOfflineMessages()
	case protocol.CmdMarkMessageRead:
		s.handleMarkMessageRead(in)
	case protocol.CmdTypingStart:
		s.handleTyping(in, protocol.EvtUserTyping)
	case protocol.CmdTypingStop:
		s.handleTyping(in, protocol.EvtUserStopTyping)
	case protocol.CmdGetOnlineUsers:
		s.handleGetOnlineUsers()
	case protocol.CmdSearchMessages:
		s.handleSearchMessages(in)
	default:
		s.sendError("unsupported message type")
	}
}

func (s *sessionState) handleJoinRoom(in protocol.Envelope) {
	if strings.TrimSpace(in.RoomID) == "" {
		s.sendError("room_id is required")
		return
	}

	count, err := s.registry().Join(in.RoomID, s.identity.UserID)
	if err != nil {
		s.sendError(errText(err))
		return
	}

	s.registry().BroadcastToRoom(in.RoomID, protocol.Envelope{
		Type:     protocol.EvtUserJoined,
		RoomID:   in.RoomID,
		UserID:   s.identity.UserID,
		Username: s.identity.Username,
		TS:       time.Now().UnixMilli(),
	}, s.identity.UserID)

	s.send(protocol.Envelope{
		Type:        protocol.EvtJoinSuccess,
		RoomID:      in.RoomID,
		MemberCount: count,
	})
}

func (s *sessionState) handleLeaveRoom(in protocol.Envelope) {
	if strings.TrimSpace(in.RoomID) == "" {
		s.sendError("room_id is required")
		return
	}

	count, err := s.registry().Leave(in.RoomID, s.identity.UserID)
	if err != nil {
		s.sendError(errText(err))
		return
	}

	s.registry().BroadcastToRoom(in.RoomID, protocol.Envelope{
		Type:     protocol.EvtUserLeft,
		RoomID:   in.RoomID,
		UserID:   s.identity.UserID,
		Username: s.identity.Username,
		TS:       time.Now().UnixMilli(),
	}, s.identity.UserID)

	s.send(protocol.Envelope{
		Type:        protocol.EvtRoomLeft,
		RoomID:      in.RoomID,
		MemberCount: count,
	})
}

func (s *sessionState) handleSendMessage(in protocol.Envelope) {
	if strings.TrimSpace(in.RoomID) == "" || strings.TrimSpace(in.Content) == "" {
		s.sendError("room_id and content are required")
		return
	}
	if _, err := s.registry().Room(in.RoomID); err != nil {
		s.sendError(errText(err))
		return
	}

	msg := s.registry().Append(in.RoomID, s.identity.UserID, s.identity.Username, in.Content, in.MessageType)
	wire := toWireMessage(msg)

	s.registry().BroadcastToRoom(in.RoomID, protocol.Envelope{
		Type:    protocol.EvtNewMessage,
		RoomID:  in.RoomID,
		Message: &wire,
	}, "")

	s.send(protocol.Envelope{
		Type:      protocol.EvtMessageSent,
		RoomID:    in.RoomID,
		MessageID: msg.ID,
	})
}

func (s *sessionState) handleSendPrivateMessage(in protocol.Envelope) {
	if strings.TrimSpace(in.To) == "" || strings.TrimSpace(in.Content) == "" {
		s.sendError("to and content are required")
		return
	}

	msg, conv := s.registry().SendPrivate(s.identity.UserID, s.identity.Username, in.To, in.Content, in.MessageType)
	wireMsg := toWireMessage(msg)
	wireConv := toWireConversation(conv, in.To)

	if s.registry().IsOnline(in.To) {
		delivered := s.registry().SendToUser(in.To, protocol.Envelope{
			Type:         protocol.EvtNewPrivateMessage,
			Message:      &wireMsg,
			Conversation: &wireConv,
			UserID:       s.identity.UserID,
			Username:     s.identity.Username,
		})
		if delivered {
			s.send(protocol.Envelope{
				Type:      protocol.EvtMessageDelivered,
				MessageID: msg.ID,
				To:        in.To,
				TS:        time.Now().UnixMilli(),
			})
		} else {
			// All of the receiver's sessions refused the push; fall back to
			// the mailbox rather than silently dropping.
			s.registry().Enqueue(in.To, msg.ID)
		}
	} else {
		s.registry().Enqueue(in.To, msg.ID)
		slog.Debug("receiver offline, message queued", "to", in.To, "msg_id", msg.ID)
	}

	s.send(protocol.Envelope{
		Type:           protocol.EvtPrivateMessageSent,
		MessageID:      msg.ID,
		ConversationID: conv.ID,
	})
}

func (s *sessionState) handleGetChatHistory(in protocol.Envelope) {
	if strings.TrimSpace(in.RoomID) == "" {
		s.sendError("room_id is required")
		return
	}
	if !s.authorizeConversation(in.RoomID) {
		return
	}

	msgs, hasMore := s.registry().History(in.RoomID, in.Limit, in.Offset)
	s.send(protocol.Envelope{
		Type:     protocol.EvtChatHistory,
		RoomID:   in.RoomID,
		Messages: toWireMessages(msgs),
		HasMore:  hasMore,
	})
}

func (s *sessionState) handleGetConversations() {
	convs := s.registry().ConversationsFor(s.identity.UserID)
	out := make([]protocol.Conversation, 0, len(convs))
	for _, c := range convs {
		other, _ := s.registry().OtherParticipant(c.ID, s.identity.UserID)
		out = append(out, toWireConversation(c, other))
	}
	s.send(protocol.Envelope{
		Type:          protocol.EvtConversationsList,
		Conversations: out,
	})
}

func (s *sessionState) handleGetConversationDetail(in protocol.Envelope) {
	if strings.TrimSpace(in.ConversationID) == "" {
		s.sendError("conversation_id is required")
		return
	}
	if !s.registry().IsParticipant(s.identity.UserID, in.ConversationID) {
		s.sendError("not a participant of this conversation")
		return
	}

	conv, err := s.registry().ConversationByID(in.ConversationID)
	if err != nil {
		s.sendError(errText(err))
		return
	}
	other, _ := s.registry().OtherParticipant(conv.ID, s.identity.UserID)
	wireConv := toWireConversation(conv, other)
	msgs, _ := s.registry().History(conv.ID, 50, 0)

	s.send(protocol.Envelope{
		Type:           protocol.EvtConversationDetail,
		ConversationID: conv.ID,
		Conversation:   &wireConv,
		Messages:       toWireMessages(msgs),
	})
}

func (s *sessionState) handleGetOfflineMessages() {
	msgs := s.registry().Drain(s.identity.UserID)
	s.send(protocol.Envelope{
		Type:     protocol.EvtOfflineMessages,
		Messages: toWireMessages(msgs),
		Count:    len(msgs),
	})
}

func (s *sessionState) handleMarkMessageRead(in protocol.Envelope) {
	if strings.TrimSpace(in.MessageID) == "" || strings.TrimSpace(in.RoomID) == "" {
		s.sendError("message_id and room_id are required")
		return
	}

	if err := s.registry().MarkRead(in.MessageID, s.identity.UserID); err != nil {
		s.sendError(errText(err))
		return
	}

	s.registry().BroadcastToRoom(in.RoomID, protocol.Envelope{
		Type:      protocol.EvtMessageRead,
		MessageID: in.MessageID,
		RoomID:    in.RoomID,
		UserID:    s.identity.UserID,
		Username:  s.identity.Username,
		TS:        time.Now().UnixMilli(),
	}, s.identity.UserID)
}

// handleTyping relays an ephemeral typing notification; nothing is stored
// and an empty room id is silently ignored.
func (s *sessionState) handleTyping(in protocol.Envelope, event string) {
	if strings.TrimSpace(in.RoomID) == "" {
		return
	}
	s.registry().BroadcastToRoom(in.RoomID, protocol.Envelope{
		Type:     event,
		RoomID:   in.RoomID,
		UserID:   s.identity.UserID,
		Username: s.identity.Username,
	}, s.identity.UserID)
}

func (s *sessionState) handleGetOnlineUsers() {
	s.send(protocol.Envelope{
		Type:  protocol.EvtOnlineUsers,
		Users: s.registry().OnlineUsers(),
	})
}

func (s *sessionState) handleSearchMessages(in protocol.Envelope) {
	target := in.ConversationID
	if target == "" {
		target = in.RoomID
	}
	if strings.TrimSpace(target) == "" {
		s.sendError("conversation_id or room_id is required")
		return
	}
	if !s.authorizeConversation(target) {
		return
	}

	msgs := s.registry().Search(target, in.Query, in.Limit)
	s.send(protocol.Envelope{
		Type:           protocol.EvtSearchResults,
		ConversationID: target,
		Query:          in.Query,
		Messages:       toWireMessages(msgs),
		Count:          len(msgs),
	})
}

// authorizeConversation guards private logs: only participants may read
// them. Room logs are open to any authenticated user.
func (s *sessionState) authorizeConversation(id string) bool {
	if !core.IsPrivateConversationID(id) {
		return true
	}
	if !s.registry().IsParticipant(s.identity.UserID, id) {
		s.sendError("not a participant of this conversation")
		return false
	}
	return true
}

func (s *sessionState) registry() *core.Registry {
	return s.handler.registry
}

func (s *sessionState) send(msg protocol.Envelope) {
	if !s.handler.registry.SendToHandle(s.session.HandleID, msg) {
		slog.Debug("send failed, session gone", "handle_id", s.session.HandleID, "type", msg.Type)
	}
}

func (s *sessionState) sendError(text string) {
	s.send(protocol.Envelope{Type: protocol.EvtError, Error: text})
}

// errText maps registry errors to client-facing text. Unknown errors get a
// generic message so internals never leak to the wire.
func errText(err error) string {
	switch {
	case errors.Is(err, core.ErrRoomNotFound),
		errors.Is(err, core.ErrRoomExists),
		errors.Is(err, core.ErrInvalidRoomID),
		errors.Is(err, core.ErrInvalidRoomName),
		errors.Is(err, core.ErrRoomFull),
		errors.Is(err, core.ErrForbidden),
		errors.Is(err, core.ErrMessageNotFound),
		errors.Is(err, core.ErrConversationNotFound):
		return err.Error()
	default:
		return "internal error"
	}
}

func toWireMessage(m core.Message) protocol.ChatMessage {
	return protocol.ChatMessage{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		SenderName:     m.SenderName,
		Content:        m.Content,
		Type:           m.Type,
		TS:             m.Timestamp.UnixMilli(),
		ReadBy:         m.ReadBy,
	}
}

func toWireMessages(msgs []core.Message) []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toWireMessage(m))
	}
	return out
}

func toWireConversation(c core.Conversation, otherUserID string) protocol.Conversation {
	out := protocol.Conversation{
		ID:           c.ID,
		Participants: c.Participants,
		CreatedTS:    c.CreatedAt.UnixMilli(),
		UpdatedTS:    c.UpdatedAt.UnixMilli(),
		OtherUserID:  otherUserID,
	}
	if c.LastMessage != nil {
		wire := toWireMessage(*c.LastMessage)
		out.LastMessage = &wire
	}
	return out
}
