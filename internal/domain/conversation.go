package domain

import "time"

// Conversation pairs two users with their ordered message history.
// Participants are stored normalised so that the lower id comes first.
type Conversation struct {
	ID           int64
	Participants [2]int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Has reports whether userID takes part in the conversation.
func (c Conversation) Has(userID int64) bool {
	return c.Participants[0] == userID || c.Participants[1] == userID
}

// Pair returns the participant ids of a and b in storage order.
func Pair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

// Message is a single immutable direct message.
type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Body       string
	CreatedAt  time.Time
}
