package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"gwi.com/chat-sync/internal/models"
	"gwi.com/chat-sync/internal/result"
	"gwi.com/chat-sync/internal/stream"
)

const (
	conversationsCollection = "conversations"
	messagesCollection      = "messages"
	usersCollection         = "users"
)

// FirestoreStore keeps conversations, messages and profiles in Cloud
// Firestore and observes them through snapshot listeners. updatedAt is
// always written as the server timestamp.
type FirestoreStore struct {
	client *firestore.Client
	logger *zap.Logger
}

type conversationDoc struct {
	Title     string    `firestore:"title"`
	UserID    string    `firestore:"userId"`
	CreatedAt time.Time `firestore:"createdAt,serverTimestamp"`
	UpdatedAt time.Time `firestore:"updatedAt,serverTimestamp"`
}

type messageDoc struct {
	Content        string    `firestore:"content"`
	IsFromUser     bool      `firestore:"isFromUser"`
	Timestamp      time.Time `firestore:"timestamp,serverTimestamp"`
	ConversationID string    `firestore:"conversationId"`
	IsError        bool      `firestore:"isError"`
}

type userDoc struct {
	Username          string    `firestore:"username"`
	Email             string    `firestore:"email"`
	ProfilePictureURL string    `firestore:"profilePictureUrl"`
	CreatedAt         time.Time `firestore:"createdAt,serverTimestamp"`
}

// NewFirestoreStore connects to projectID. credentialsFile may be empty to
// use application default credentials.
func NewFirestoreStore(ctx context.Context, projectID, credentialsFile string, logger *zap.Logger) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create firestore client")
	}
	return &FirestoreStore{
		client: client,
		logger: logger.With(zap.String("component", "firestore_store")),
	}, nil
}

func (s *FirestoreStore) Close() error {
	return s.client.Close()
}

func isNotFound(err error) bool {
	return status.Code(errors.Cause(err)) == codes.NotFound
}

// snapshots turns a query listener into a stream. Each snapshot is decoded
// in full so subscribers always see complete state.
func snapshots[T any](ctx context.Context, q firestore.Query, decode func(*firestore.DocumentSnapshot) (T, error)) *stream.Stream[[]T] {
	return stream.New(ctx, func(ctx context.Context, emit func([]T) bool) error {
		it := q.Snapshots(ctx)
		defer it.Stop()

		for {
			snap, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return nil
				}
				return errors.Wrap(err, "snapshot listener failed")
			}
			docs, err := snap.Documents.GetAll()
			if err != nil {
				return errors.Wrap(err, "failed to read snapshot")
			}
			out := make([]T, 0, len(docs))
			for _, doc := range docs {
				v, err := decode(doc)
				if err != nil {
					return err
				}
				out = append(out, v)
			}
			if !emit(out) {
				return nil
			}
		}
	})
}

func decodeConversation(doc *firestore.DocumentSnapshot) (models.Conversation, error) {
	var d conversationDoc
	if err := doc.DataTo(&d); err != nil {
		return models.Conversation{}, errors.Wrapf(err, "decoding conversation %s", doc.Ref.ID)
	}
	return models.Conversation{
		ID:        doc.Ref.ID,
		Title:     d.Title,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}, nil
}

func decodeMessage(doc *firestore.DocumentSnapshot) (models.ChatMessage, error) {
	var d messageDoc
	if err := doc.DataTo(&d); err != nil {
		return models.ChatMessage{}, errors.Wrapf(err, "decoding message %s", doc.Ref.ID)
	}
	return models.ChatMessage{
		ID:             doc.Ref.ID,
		Content:        d.Content,
		IsFromUser:     d.IsFromUser,
		Timestamp:      d.Timestamp.UTC(),
		ConversationID: d.ConversationID,
		IsError:        d.IsError,
	}, nil
}

func (s *FirestoreStore) ObserveConversations(ctx context.Context, userID string) *stream.Stream[[]models.Conversation] {
	if userID == "" {
		return stream.Failed[[]models.Conversation](result.Validation("user id is required"))
	}
	q := s.client.Collection(conversationsCollection).
		Where("userId", "==", userID).
		OrderBy("updatedAt", firestore.Desc)
	return snapshots(ctx, q, decodeConversation)
}

func (s *FirestoreStore) GetConversation(ctx context.Context, id string) result.Result[models.Conversation] {
	doc, err := s.client.Collection(conversationsCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return failed[models.Conversation](s.logger, "get_conversation", result.NotFound("conversation not found"))
		}
		return failed[models.Conversation](s.logger, "get_conversation", errors.Wrap(err, "failed to get conversation"))
	}
	c, err := decodeConversation(doc)
	if err != nil {
		return failed[models.Conversation](s.logger, "get_conversation", err)
	}
	return result.Success(c)
}

func (s *FirestoreStore) CreateConversation(ctx context.Context, c models.Conversation) result.Result[string] {
	if c.UserID == "" {
		return failed[string](s.logger, "create_conversation", result.Validation("user id is required"))
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if !c.CreatedAt.IsZero() && c.UpdatedAt.Before(c.CreatedAt) {
		c.UpdatedAt = c.CreatedAt
	}
	_, err := s.client.Collection(conversationsCollection).Doc(c.ID).Set(ctx, conversationDoc{
		Title:     c.Title,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	})
	if err != nil {
		return failed[string](s.logger, "create_conversation", errors.Wrap(err, "failed to set conversation"))
	}
	return result.Success(c.ID)
}

func (s *FirestoreStore) UpdateConversation(ctx context.Context, c models.Conversation) result.Result[result.Unit] {
	if c.ID == "" {
		return failed[result.Unit](s.logger, "update_conversation", result.NotFound("conversation not found"))
	}
	_, err := s.client.Collection(conversationsCollection).Doc(c.ID).Update(ctx, []firestore.Update{
		{Path: "title", Value: c.Title},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	})
	if err != nil {
		if isNotFound(err) {
			return failed[result.Unit](s.logger, "update_conversation", result.NotFound("conversation not found"))
		}
		return failed[result.Unit](s.logger, "update_conversation", errors.Wrap(err, "failed to update conversation"))
	}
	return result.Success(result.Unit{})
}

func (s *FirestoreStore) DeleteConversation(ctx context.Context, id string) result.Result[result.Unit] {
	conversations := s.client.Collection(conversationsCollection)
	messages := s.client.Collection(messagesCollection).Where("conversationId", "==", id)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(messages).GetAll()
		if err != nil {
			return errors.Wrap(err, "failed to list messages")
		}
		for _, doc := range docs {
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(conversations.Doc(id))
	})
	if err != nil {
		return failed[result.Unit](s.logger, "delete_conversation", errors.Wrap(err, "failed to delete conversation"))
	}
	return result.Success(result.Unit{})
}

func (s *FirestoreStore) ObserveMessages(ctx context.Context, conversationID string) *stream.Stream[[]models.ChatMessage] {
	if conversationID == "" {
		return stream.Failed[[]models.ChatMessage](result.Validation("conversation id is required"))
	}
	q := s.client.Collection(messagesCollection).
		Where("conversationId", "==", conversationID).
		OrderBy("timestamp", firestore.Asc)
	return snapshots(ctx, q, decodeMessage)
}

// AddMessage writes the message and touches the parent conversation in one
// transaction.
func (s *FirestoreStore) AddMessage(ctx context.Context, m models.ChatMessage) result.Result[string] {
	if m.ConversationID == "" {
		return failed[string](s.logger, "add_message", result.Validation("conversation id is required"))
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	convRef := s.client.Collection(conversationsCollection).Doc(m.ConversationID)
	msgRef := s.client.Collection(messagesCollection).Doc(m.ID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(convRef); err != nil {
			if isNotFound(err) {
				return result.NotFound("conversation not found")
			}
			return errors.Wrap(err, "failed to read conversation")
		}
		if err := tx.Set(msgRef, messageDoc{
			Content:        m.Content,
			IsFromUser:     m.IsFromUser,
			Timestamp:      m.Timestamp,
			ConversationID: m.ConversationID,
			IsError:        m.IsError,
		}); err != nil {
			return err
		}
		return tx.Update(convRef, []firestore.Update{{Path: "updatedAt", Value: firestore.ServerTimestamp}})
	})
	if err != nil {
		return failed[string](s.logger, "add_message", err)
	}
	return result.Success(m.ID)
}

func (s *FirestoreStore) DeleteMessage(ctx context.Context, id string) result.Result[result.Unit] {
	if _, err := s.client.Collection(messagesCollection).Doc(id).Delete(ctx); err != nil {
		return failed[result.Unit](s.logger, "delete_message", errors.Wrap(err, "failed to delete message"))
	}
	return result.Success(result.Unit{})
}

func (s *FirestoreStore) ClearMessages(ctx context.Context, conversationID string) result.Result[result.Unit] {
	if conversationID == "" {
		return failed[result.Unit](s.logger, "clear_messages", result.Validation("conversation id is required"))
	}
	messages := s.client.Collection(messagesCollection).Where("conversationId", "==", conversationID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docs, err := tx.Documents(messages).GetAll()
		if err != nil {
			return errors.Wrap(err, "failed to list messages")
		}
		for _, doc := range docs {
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return failed[result.Unit](s.logger, "clear_messages", errors.Wrap(err, "failed to clear messages"))
	}
	return result.Success(result.Unit{})
}

func (s *FirestoreStore) GetUser(ctx context.Context, id string) result.Result[models.User] {
	doc, err := s.client.Collection(usersCollection).Doc(id).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return failed[models.User](s.logger, "get_user", result.NotFound("user not found"))
		}
		return failed[models.User](s.logger, "get_user", errors.Wrap(err, "failed to get user"))
	}
	var d userDoc
	if err := doc.DataTo(&d); err != nil {
		return failed[models.User](s.logger, "get_user", errors.Wrap(err, "decoding user"))
	}
	return result.Success(models.User{
		ID:                doc.Ref.ID,
		Username:          d.Username,
		Email:             d.Email,
		ProfilePictureURL: d.ProfilePictureURL,
		CreatedAt:         d.CreatedAt.UTC(),
	})
}

func (s *FirestoreStore) CreateUser(ctx context.Context, u models.User) result.Result[string] {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.client.Collection(usersCollection).Doc(u.ID).Set(ctx, userDoc{
		Username:          u.Username,
		Email:             u.Email,
		ProfilePictureURL: u.ProfilePictureURL,
		CreatedAt:         u.CreatedAt,
	})
	if err != nil {
		return failed[string](s.logger, "create_user", errors.Wrap(err, "failed to set user"))
	}
	return result.Success(u.ID)
}

func (s *FirestoreStore) UpdateUserProfile(ctx context.Context, actorID string, u models.User) result.Result[models.User] {
	if actorID == "" || actorID != u.ID {
		return failed[models.User](s.logger, "update_user_profile", result.Permission("no permission to update this profile"))
	}
	_, err := s.client.Collection(usersCollection).Doc(u.ID).Update(ctx, []firestore.Update{
		{Path: "username", Value: u.Username},
		{Path: "email", Value: u.Email},
		{Path: "profilePictureUrl", Value: u.ProfilePictureURL},
	})
	if err != nil {
		if isNotFound(err) {
			return failed[models.User](s.logger, "update_user_profile", result.NotFound("user not found"))
		}
		return failed[models.User](s.logger, "update_user_profile", errors.Wrap(err, "failed to update user"))
	}
	return s.GetUser(ctx, u.ID)
}
