package repository

import (
	"context"

	"direct-chat/internal/domain"
)

// ConversationRepository stores conversations and the messages they reference.
type ConversationRepository interface {
	Init(ctx context.Context) error
	// FindOrCreate returns the conversation between a and b, creating it on
	// first contact. Concurrent callers for the same pair get the same row.
	FindOrCreate(ctx context.Context, a, b int64) (*domain.Conversation, error)
	// Find returns ErrNotFound when a and b never exchanged a message.
	Find(ctx context.Context, a, b int64) (*domain.Conversation, error)
	// AppendMessage persists msg and appends its reference to the
	// conversation in a single transaction.
	AppendMessage(ctx context.Context, conversationID int64, msg *domain.Message) error
	// Messages lists the conversation's messages in append order.
	Messages(ctx context.Context, conversationID int64) ([]domain.Message, error)
}
