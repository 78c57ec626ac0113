package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
	"gwi.com/chat-sync/internal/stream"
)

// ObserveMessages streams a conversation's messages oldest first. Messages
// with equal timestamps keep insertion order.
func (s *SQLiteStore) ObserveMessages(ctx context.Context, conversationID string) *stream.Stream[[]models.ChatMessage] {
	if conversationID == "" {
		return stream.Failed[[]models.ChatMessage](result.Validation("conversation id is required"))
	}
	return observe(ctx, s.hub, messagesTopic(conversationID), func(ctx context.Context) ([]models.ChatMessage, error) {
		return s.listMessages(ctx, conversationID)
	})
}

func (s *SQLiteStore) listMessages(ctx context.Context, conversationID string) ([]models.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, conversation_id, content, is_from_user, is_error, timestamp
        FROM messages WHERE conversation_id = ?
        ORDER BY timestamp ASC, rowid ASC`, conversationID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query messages")
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0)
	for rows.Next() {
		var m models.ChatMessage
		var ts int64
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Content, &m.IsFromUser, &m.IsError, &ts); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		m.Timestamp = fromMicros(ts)
		messages = append(messages, m)
	}
	return messages, errors.Wrap(rows.Err(), "failed to iterate messages")
}

// AddMessage inserts m and bumps the parent's updatedAt in the same
// transaction. Nothing is written if the conversation does not exist.
func (s *SQLiteStore) AddMessage(ctx context.Context, m models.ChatMessage) result.Result[string] {
	if m.ConversationID == "" {
		return failed[string](s.logger, "add_message", result.Validation("conversation id is required"))
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := s.now()
	if m.Timestamp.IsZero() {
		m.Timestamp = now
	}

	var userID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		userID, err = conversationOwner(ctx, tx, m.ConversationID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (id, conversation_id, content, is_from_user, is_error, timestamp) VALUES (?, ?, ?, ?, ?, ?)",
			m.ID, m.ConversationID, m.Content, m.IsFromUser, m.IsError, toMicros(m.Timestamp))
		if err != nil {
			return errors.Wrap(err, "failed to insert message")
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE conversations SET updated_at = MAX(updated_at, ?) WHERE id = ?",
			toMicros(now), m.ConversationID)
		return errors.Wrap(err, "failed to touch conversation")
	})
	if err != nil {
		return failed[string](s.logger, "add_message", err)
	}

	s.hub.publish(messagesTopic(m.ConversationID), conversationsTopic(userID))
	return result.Success(m.ID)
}

// DeleteMessage removes one message. Deleting a missing message succeeds.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id string) result.Result[result.Unit] {
	var conversationID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, "SELECT conversation_id FROM messages WHERE id = ?", id).Scan(&conversationID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "failed to query message")
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE id = ?", id)
		return errors.Wrap(err, "failed to delete message")
	})
	if err != nil {
		return failed[result.Unit](s.logger, "delete_message", err)
	}

	if conversationID != "" {
		s.hub.publish(messagesTopic(conversationID))
	}
	return result.Success(result.Unit{})
}

// ClearMessages deletes every message of the conversation as one batch and
// leaves the conversation itself in place.
func (s *SQLiteStore) ClearMessages(ctx context.Context, conversationID string) result.Result[result.Unit] {
	if conversationID == "" {
		return failed[result.Unit](s.logger, "clear_messages", result.Validation("conversation id is required"))
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", conversationID)
		return errors.Wrap(err, "failed to clear messages")
	})
	if err != nil {
		return failed[result.Unit](s.logger, "clear_messages", err)
	}

	s.hub.publish(messagesTopic(conversationID))
	return result.Success(result.Unit{})
}
