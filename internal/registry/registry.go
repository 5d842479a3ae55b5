// Package registry owns the user lifecycle: per-event identity resolution,
// enrollment, deletion, listing, and the startup super-admin bootstrap.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_notify_relay_bot/internal/domain"
	"tg_notify_relay_bot/internal/logging"
)

type userCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	DeleteOne(ctx context.Context, filter interface{}, opts ...*options.DeleteOptions) (*mongo.DeleteResult, error)
}

// Registry persists and retrieves registered users.
type Registry struct {
	users  userCollection
	logger *logrus.Entry
}

// New constructs a Registry over the users collection.
func New(users userCollection, logger *logrus.Entry) *Registry {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Registry{
		users:  users,
		logger: logger,
	}
}

// Resolve maps an inbound actor id to its stored user record. An unknown actor
// reports ErrUnauthenticated; every operation of the current turn is rejected
// on that outcome before any routing happens.
func (r *Registry) Resolve(ctx context.Context, actorID int64) (domain.User, error) {
	if r == nil || r.users == nil {
		return domain.User{}, errors.New("user registry is not initialized")
	}
	if ctx == nil {
		return domain.User{}, errors.New("context is required")
	}

	result := r.users.FindOne(ctx, bson.M{"user_id": actorID})
	if result == nil {
		return domain.User{}, errors.New("find user returned no result")
	}
	if err := result.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.User{}, fmt.Errorf("%w: actor %d", domain.ErrUnauthenticated, actorID)
		}
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}

	var user domain.User
	if err := result.Decode(&user); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}

	return user, nil
}

// Create persists a fully assembled user at the end of the enrollment flow.
// An existing record with the same id reports ErrConflict.
func (r *Registry) Create(ctx context.Context, user domain.User) (domain.User, error) {
	if r == nil || r.users == nil {
		return domain.User{}, errors.New("user registry is not initialized")
	}
	if ctx == nil {
		return domain.User{}, errors.New("context is required")
	}
	if user.UserID == 0 {
		return domain.User{}, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if strings.TrimSpace(user.Name) == "" {
		return domain.User{}, fmt.Errorf("%w: user name is required", domain.ErrValidation)
	}
	if _, err := domain.ParseRole(string(user.Role)); err != nil {
		return domain.User{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	user.Name = strings.TrimSpace(user.Name)
	user.CreatedAt = now
	user.UpdatedAt = now

	if _, err := r.users.InsertOne(ctx, user); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.User{}, fmt.Errorf("%w: user %d", domain.ErrConflict, user.UserID)
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_enrolled",
		"user_id": user.UserID,
		"role":    user.Role,
	}).Info("enrolled new user")

	return user, nil
}

// Delete removes the user by id and returns the removed record for the audit
// notification. A missing user reports ErrNotFound.
func (r *Registry) Delete(ctx context.Context, userID int64) (domain.User, error) {
	if r == nil || r.users == nil {
		return domain.User{}, errors.New("user registry is not initialized")
	}
	if ctx == nil {
		return domain.User{}, errors.New("context is required")
	}

	user, err := r.Resolve(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthenticated) {
			return domain.User{}, fmt.Errorf("%w: user %d", domain.ErrNotFound, userID)
		}
		return domain.User{}, err
	}

	if _, err := r.users.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return domain.User{}, fmt.Errorf("delete user: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":   "user_deleted",
		"user_id": userID,
	}).Info("deleted user")

	return user, nil
}

// List returns all registered users in stored order.
func (r *Registry) List(ctx context.Context) ([]domain.User, error) {
	if r == nil || r.users == nil {
		return nil, errors.New("user registry is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := r.users.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}

	var users []domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}

	return users, nil
}

// EnsureSuperAdmin upserts the configured bootstrap actor with the super-admin
// role so a fresh database is operable without manual seeding.
func (r *Registry) EnsureSuperAdmin(ctx context.Context, actorID int64) error {
	if r == nil || r.users == nil {
		return errors.New("user registry is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	if actorID == 0 {
		return errors.New("actor id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	result, err := r.users.UpdateOne(ctx,
		bson.M{"user_id": actorID},
		bson.M{
			"$set": bson.M{
				"role":       domain.RoleSuperAdmin,
				"updated_at": now,
			},
			"$setOnInsert": bson.M{
				"user_id":    actorID,
				"name":       "Bot owner",
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("ensure super admin: %w", err)
	}

	r.logger.WithFields(logging.Fields{
		"event":    "super_admin_bootstrap",
		"actor_id": actorID,
		"created":  result != nil && result.UpsertedCount > 0,
	}).Info("ensured bootstrap super admin")

	return nil
}
