package core

import "log/slog"

// Enqueue queues a message id for delivery when recipientID next connects.
// The queue is FIFO and capped at maxMailboxDepth; when full, the oldest
// entry is evicted and logged.
func (r *Registry) Enqueue(recipientID, messageID string) {
	r.mu.Lock()
	q := r.mailboxes[recipientID]
	if len(q) >= maxMailboxDepth {
		evicted := q[0]
		q = q[1:]
		slog.Warn("offline mailbox full, evicting oldest", "user_id", recipientID, "evicted_msg_id", evicted)
	}
	r.mailboxes[recipientID] = append(q, messageID)
	depth := len(r.mailboxes[recipientID])
	r.mu.Unlock()

	slog.Debug("offline message queued", "user_id", recipientID, "msg_id", messageID, "depth", depth)
}

// Drain removes and returns all queued messages for recipientID in enqueue
// order, resolving ids through the message store. The read-and-clear is one
// critical section: an Enqueue racing with Drain lands either in this result
// or in the next one, never both and never neither. Ids whose message was
// deleted or purged in the meantime are skipped.
func (r *Registry) Drain(recipientID string) []Message {
	r.mu.Lock()
	ids := r.mailboxes[recipientID]
	delete(r.mailboxes, recipientID)

	out := make([]Message, 0, len(ids))
	for _, id := range ids {
		if m, ok := r.messages[id]; ok {
			out = append(out, messageView(m))
		}
	}
	r.mu.Unlock()

	if len(ids) > 0 {
		slog.Info("offline mailbox drained", "user_id", recipientID, "queued", len(ids), "delivered", len(out))
	}
	return out
}

// MailboxDepth returns how many messages are queued for recipientID.
func (r *Registry) MailboxDepth(recipientID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.mailboxes[recipientID])
}
