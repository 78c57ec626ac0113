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

const conversationColumns = "id, title, user_id, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (models.Conversation, error) {
	var c models.Conversation
	var createdAt, updatedAt int64
	if err := row.Scan(&c.ID, &c.Title, &c.UserID, &createdAt, &updatedAt); err != nil {
		return c, err
	}
	c.CreatedAt = fromMicros(createdAt)
	c.UpdatedAt = fromMicros(updatedAt)
	return c, nil
}

// ObserveConversations streams the user's conversations, most recently
// updated first.
func (s *SQLiteStore) ObserveConversations(ctx context.Context, userID string) *stream.Stream[[]models.Conversation] {
	if userID == "" {
		return stream.Failed[[]models.Conversation](result.Validation("user id is required"))
	}
	return observe(ctx, s.hub, conversationsTopic(userID), func(ctx context.Context) ([]models.Conversation, error) {
		return s.listConversations(ctx, userID)
	})
}

func (s *SQLiteStore) listConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE user_id = ? ORDER BY updated_at DESC, rowid DESC", userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query conversations")
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan conversation")
		}
		conversations = append(conversations, c)
	}
	return conversations, errors.Wrap(rows.Err(), "failed to iterate conversations")
}

func (s *SQLiteStore) GetConversation(ctx context.Context, id string) result.Result[models.Conversation] {
	c, err := scanConversation(s.db.QueryRowContext(ctx,
		"SELECT "+conversationColumns+" FROM conversations WHERE id = ?", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = result.NotFound("conversation not found")
		} else {
			err = errors.Wrap(err, "failed to get conversation")
		}
		return failed[models.Conversation](s.logger, "get_conversation", err)
	}
	return result.Success(c)
}

// CreateConversation stores c under its id, generating one when empty. An
// existing conversation with the same id is overwritten except for its
// creation time, and its updatedAt never moves backwards.
func (s *SQLiteStore) CreateConversation(ctx context.Context, c models.Conversation) result.Result[string] {
	if c.UserID == "" {
		return failed[string](s.logger, "create_conversation", result.Validation("user id is required"))
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}

	var previousOwner string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		owner, err := conversationOwner(ctx, tx, c.ID)
		if err != nil && !result.IsKind(err, result.KindNotFound) {
			return err
		}
		previousOwner = owner
		_, err = tx.ExecContext(ctx, `
        INSERT INTO conversations (id, title, user_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            user_id = excluded.user_id,
            updated_at = MAX(conversations.updated_at, excluded.updated_at)`,
			c.ID, c.Title, c.UserID, toMicros(c.CreatedAt), toMicros(c.UpdatedAt))
		return errors.Wrap(err, "failed to insert conversation")
	})
	if err != nil {
		return failed[string](s.logger, "create_conversation", err)
	}

	if previousOwner != "" && previousOwner != c.UserID {
		s.hub.publish(conversationsTopic(previousOwner))
	}
	s.hub.publish(conversationsTopic(c.UserID))
	return result.Success(c.ID)
}

// UpdateConversation sets the title and bumps updatedAt to the store clock.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, c models.Conversation) result.Result[result.Unit] {
	var userID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		userID, err = conversationOwner(ctx, tx, c.ID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE conversations SET title = ?, updated_at = MAX(updated_at, ?) WHERE id = ?",
			c.Title, toMicros(s.now()), c.ID)
		return errors.Wrap(err, "failed to update conversation")
	})
	if err != nil {
		return failed[result.Unit](s.logger, "update_conversation", err)
	}

	s.hub.publish(conversationsTopic(userID))
	return result.Success(result.Unit{})
}

// DeleteConversation removes the conversation and all of its messages in
// one transaction. Deleting a missing conversation succeeds.
func (s *SQLiteStore) DeleteConversation(ctx context.Context, id string) result.Result[result.Unit] {
	var userID string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		userID, err = conversationOwner(ctx, tx, id)
		if result.IsKind(err, result.KindNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", id); err != nil {
			return errors.Wrap(err, "failed to delete messages")
		}
		_, err = tx.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
		return errors.Wrap(err, "failed to delete conversation")
	})
	if err != nil {
		return failed[result.Unit](s.logger, "delete_conversation", err)
	}

	if userID != "" {
		s.hub.publish(conversationsTopic(userID), messagesTopic(id))
	}
	return result.Success(result.Unit{})
}

func conversationOwner(ctx context.Context, tx *sql.Tx, id string) (string, error) {
	var userID string
	err := tx.QueryRowContext(ctx, "SELECT user_id FROM conversations WHERE id = ?", id).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", result.NotFound("conversation not found")
		}
		return "", errors.Wrap(err, "failed to query conversation")
	}
	return userID, nil
}
