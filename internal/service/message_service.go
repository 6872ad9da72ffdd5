package service

import (
	"context"
	"errors"
	"strings"

	"direct-chat/internal/domain"
	"direct-chat/internal/repository"
)

// Notifier pushes a freshly stored message to its receiver if they are online.
// Delivery is best-effort; implementations must not block on slow peers.
type Notifier interface {
	NotifyMessage(ctx context.Context, msg domain.Message) bool
}

// MessageService coordinates direct messaging between two users.
type MessageService interface {
	Send(ctx context.Context, senderID, receiverID int64, body string) (*domain.Message, error)
	Conversation(ctx context.Context, userID, otherID int64) ([]domain.Message, error)
}

type messageService struct {
	users    repository.UserRepository
	convs    repository.ConversationRepository
	notifier Notifier
}

func NewMessageService(users repository.UserRepository, convs repository.ConversationRepository, notifier Notifier) MessageService {
	return &messageService{
		users:    users,
		convs:    convs,
		notifier: notifier,
	}
}

func (s *messageService) Send(ctx context.Context, senderID, receiverID int64, body string) (*domain.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, invalid("message is required")
	}
	if senderID == receiverID {
		return nil, invalid("cannot send a message to yourself")
	}
	if _, err := s.users.GetByID(ctx, receiverID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	conv, err := s.convs.FindOrCreate(ctx, senderID, receiverID)
	if err != nil {
		return nil, err
	}

	msg := &domain.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
	}
	if err := s.convs.AppendMessage(ctx, conv.ID, msg); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyMessage(ctx, *msg)
	}
	return msg, nil
}

func (s *messageService) Conversation(ctx context.Context, userID, otherID int64) ([]domain.Message, error) {
	conv, err := s.convs.Find(ctx, userID, otherID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return []domain.Message{}, nil
		}
		return nil, err
	}
	return s.convs.Messages(ctx, conv.ID)
}
