package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"direct-chat/internal/domain"
	"direct-chat/internal/repository"
)

const createConversationTables = `
CREATE TABLE IF NOT EXISTS conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	participant_lo INTEGER NOT NULL,
	participant_hi INTEGER NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	UNIQUE(participant_lo, participant_hi),
	FOREIGN KEY(participant_lo) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY(participant_hi) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	sender_id INTEGER NOT NULL,
	receiver_id INTEGER NOT NULL,
	body TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY(sender_id) REFERENCES users(id) ON DELETE CASCADE,
	FOREIGN KEY(receiver_id) REFERENCES users(id) ON DELETE CASCADE
);
CREATE TABLE IF NOT EXISTS conversation_messages (
	conversation_id INTEGER NOT NULL,
	message_id INTEGER NOT NULL UNIQUE,
	position INTEGER NOT NULL,
	PRIMARY KEY(conversation_id, position),
	FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE,
	FOREIGN KEY(message_id) REFERENCES messages(id) ON DELETE CASCADE
);
`

type ConversationRepository struct {
	db *sql.DB
}

func NewConversationRepository(db *sql.DB) repository.ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createConversationTables); err != nil {
		return fmt.Errorf("create conversation tables: %w", err)
	}
	return nil
}

func (r *ConversationRepository) FindOrCreate(ctx context.Context, a, b int64) (*domain.Conversation, error) {
	lo, hi := domain.Pair(a, b)
	now := time.Now().UTC()

	if _, err := r.db.ExecContext(ctx, `
INSERT INTO conversations (participant_lo, participant_hi, created_at, updated_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(participant_lo, participant_hi) DO NOTHING`,
		lo,
		hi,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	return r.Find(ctx, lo, hi)
}

func (r *ConversationRepository) Find(ctx context.Context, a, b int64) (*domain.Conversation, error) {
	lo, hi := domain.Pair(a, b)
	row := r.db.QueryRowContext(ctx, `
SELECT id, participant_lo, participant_hi, created_at, updated_at
FROM conversations
WHERE participant_lo = ? AND participant_hi = ?`,
		lo,
		hi,
	)

	var conv domain.Conversation
	if err := row.Scan(
		&conv.ID,
		&conv.Participants[0],
		&conv.Participants[1],
		&conv.CreatedAt,
		&conv.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("conversation: %w", repository.ErrNotFound)
		}
		return nil, fmt.Errorf("scan conversation: %w", err)
	}
	return &conv, nil
}

func (r *ConversationRepository) AppendMessage(ctx context.Context, conversationID int64, msg *domain.Message) error {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // safe no-op on commit

	res, err := tx.ExecContext(ctx, `
INSERT INTO messages (sender_id, receiver_id, body, created_at)
VALUES (?, ?, ?, ?)`,
		msg.SenderID,
		msg.ReceiverID,
		msg.Body,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("message last insert id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO conversation_messages (conversation_id, message_id, position)
SELECT ?, ?, COALESCE(MAX(position), 0) + 1
FROM conversation_messages
WHERE conversation_id = ?`,
		conversationID,
		id,
		conversationID,
	); err != nil {
		return fmt.Errorf("append message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
UPDATE conversations SET updated_at = ? WHERE id = ?`,
		msg.CreatedAt,
		conversationID,
	); err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	msg.ID = id
	return nil
}

func (r *ConversationRepository) Messages(ctx context.Context, conversationID int64) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT m.id, m.sender_id, m.receiver_id, m.body, m.created_at
FROM conversation_messages cm
JOIN messages m ON m.id = cm.message_id
WHERE cm.conversation_id = ?
ORDER BY cm.position ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		var msg domain.Message
		if err := rows.Scan(&msg.ID, &msg.SenderID, &msg.ReceiverID, &msg.Body, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}
