package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
)

func (s *SQLiteStore) GetUser(ctx context.Context, id string) result.Result[models.User] {
	var u models.User
	var createdAt int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, email, profile_picture_url, created_at FROM users WHERE id = ?", id).
		Scan(&u.ID, &u.Username, &u.Email, &u.ProfilePictureURL, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = result.NotFound("user not found")
		} else {
			err = errors.Wrap(err, "failed to get user")
		}
		return failed[models.User](s.logger, "get_user", err)
	}
	u.CreatedAt = fromMicros(createdAt)
	return result.Success(u)
}

// CreateUser writes the profile, replacing any existing one with the same id.
func (s *SQLiteStore) CreateUser(ctx context.Context, u models.User) result.Result[string] {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO users (id, username, email, profile_picture_url, created_at) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            username = excluded.username,
            email = excluded.email,
            profile_picture_url = excluded.profile_picture_url`,
		u.ID, u.Username, u.Email, u.ProfilePictureURL, toMicros(u.CreatedAt))
	if err != nil {
		return failed[string](s.logger, "create_user", errors.Wrap(err, "failed to insert user"))
	}
	return result.Success(u.ID)
}

// UpdateUserProfile changes the editable profile fields. Only the owner of
// the profile may change it.
func (s *SQLiteStore) UpdateUserProfile(ctx context.Context, actorID string, u models.User) result.Result[models.User] {
	if actorID == "" || actorID != u.ID {
		return failed[models.User](s.logger, "update_user_profile", result.Permission("no permission to update this profile"))
	}
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET username = ?, email = ?, profile_picture_url = ? WHERE id = ?",
		u.Username, u.Email, u.ProfilePictureURL, u.ID)
	if err != nil {
		return failed[models.User](s.logger, "update_user_profile", errors.Wrap(err, "failed to update user"))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return failed[models.User](s.logger, "update_user_profile", result.NotFound("user not found"))
	}
	return s.GetUser(ctx, u.ID)
}
