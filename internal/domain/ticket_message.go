package domain

import "time"

// MessageSender indicates who authored a message.
type MessageSender string

const (
	SenderUser  MessageSender = "user"
	SenderAI    MessageSender = "ai"
	SenderAdmin MessageSender = "admin"
)

// TicketMessage captures communications in a ticket thread. Messages are
// append-only; Seq is the arrival order within the ticket.
type TicketMessage struct {
	ID         string
	TicketID   string
	Seq        int64
	Sender     MessageSender
	SenderID   *string
	SenderName string
	SenderRole string
	Body       string
	IsRead     bool
	Options    []DialogOption
	CreatedAt  time.Time
}

// UnreadFor reports whether the message is unread from the reader's side.
func (m TicketMessage) UnreadFor(reader ReaderSide) bool {
	if m.IsRead {
		return false
	}
	switch reader {
	case ReaderUser:
		return m.Sender == SenderAI || m.Sender == SenderAdmin
	case ReaderStaff:
		return m.Sender == SenderUser
	}
	return false
}

// ReaderSide differentiates the two consumers of read state.
type ReaderSide string

const (
	ReaderUser  ReaderSide = "user"
	ReaderStaff ReaderSide = "staff"
)
