package protocol

// Inbound command types accepted over the websocket.
const (
	CmdJoinRoom              = "join_room"
	CmdLeaveRoom             = "leave_room"
	CmdSendMessage           = "send_message"
	CmdSendPrivateMessage    = "send_private_message"
	CmdGetChatHistory        = "get_chat_history"
	CmdGetConversations      = "get_conversations"
	CmdGetConversationDetail = "get_conversation_detail"
	CmdGetOfflineMessages    = "get_offline_messages"
	CmdMarkMessageRead       = "mark_message_read"
	CmdTypingStart           = "typing_start"
	CmdTypingStop            = "typing_stop"
	CmdGetOnlineUsers        = "get_online_users"
	CmdSearchMessages        = "search_messages"
)

// Outbound event types pushed to clients.
const (
	EvtJoinSuccess         = "join_success"
	EvtRoomLeft            = "room_left"
	EvtNewMessage          = "new_message"
	EvtMessageSent         = "message_sent"
	EvtNewPrivateMessage   = "new_private_message"
	EvtMessageDelivered    = "message_delivered"
	EvtPrivateMessageSent  = "private_message_sent"
	EvtChatHistory         = "chat_history"
	EvtConversationsList   = "conversations_list"
	EvtConversationDetail  = "conversation_detail"
	EvtOfflineMessages     = "offline_messages"
	EvtOfflineMessageBatch = "offline_messages_batch"
	EvtMessageRead         = "message_read"
	EvtUserJoined          = "user_joined"
	EvtUserLeft            = "user_left"
	EvtUserTyping          = "user_typing"
	EvtUserStopTyping      = "user_stop_typing"
	EvtOnlineUsers         = "online_users"
	EvtOnlineUsersUpdated  = "online_users_updated"
	EvtSearchResults       = "search_results"
	EvtError               = "error"
)

// Envelope is the JSON frame exchanged over the websocket. Type selects the
// command or event; the remaining fields are populated per type and validated
// at the session boundary before any registry is touched.
type Envelope struct {
	Type           string `json:"type"`
	RoomID         string `json:"room_id,omitempty"`
	To             string `json:"to,omitempty"`
	Content        string `json:"content,omitempty"`
	MessageType    string `json:"message_type,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
	Query          string `json:"query,omitempty"`
	TS             int64  `json:"ts,omitempty"`
	Error          string `json:"error,omitempty"`

	// Event payloads.
	UserID        string         `json:"user_id,omitempty"`
	Username      string         `json:"username,omitempty"`
	MemberCount   int            `json:"member_count,omitempty"`
	HasMore       bool           `json:"has_more,omitempty"`
	Count         int            `json:"count,omitempty"`
	BatchIndex    int            `json:"batch_index,omitempty"`
	TotalBatches  int            `json:"total_batches,omitempty"`
	Message       *ChatMessage   `json:"message,omitempty"`
	Messages      []ChatMessage  `json:"messages,omitempty"`
	Conversation  *Conversation  `json:"conversation,omitempty"`
	Conversations []Conversation `json:"conversations,omitempty"`
	Users         []OnlineUser   `json:"users,omitempty"`
}

// ChatMessage is one message as seen on the wire.
type ChatMessage struct {
	ID             string   `json:"id"`
	ConversationID string   `json:"conversation_id"`
	SenderID       string   `json:"sender_id"`
	SenderName     string   `json:"sender_name"`
	Content        string   `json:"content"`
	Type           string   `json:"type"`
	TS             int64    `json:"ts"`
	ReadBy         []string `json:"read_by,omitempty"`
}

// Conversation is one private conversation as seen on the wire.
type Conversation struct {
	ID           string       `json:"id"`
	Participants []string     `json:"participants"`
	CreatedTS    int64        `json:"created_ts"`
	UpdatedTS    int64        `json:"updated_ts"`
	LastMessage  *ChatMessage `json:"last_message,omitempty"`
	OtherUserID  string       `json:"other_user_id,omitempty"`
}

// Room is one chat room as seen on the wire.
type Room struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	MaxUsers     int    `json:"max_users"`
	CreatedBy    string `json:"created_by"`
	IsActive     bool   `json:"is_active"`
	MemberCount  int    `json:"member_count"`
	MessageCount int    `json:"message_count"`
	CreatedTS    int64  `json:"created_ts"`
	UpdatedTS    int64  `json:"updated_ts"`
}

// OnlineUser is one entry of a presence snapshot.
type OnlineUser struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	ConnectedTS int64  `json:"connected_ts,omitempty"`
}
