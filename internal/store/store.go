// Package store encapsulates MongoDB client management and collection helpers.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"tg_notify_relay_bot/internal/config"
)

// Collection names used across the bot.
const (
	CollectionUsers       = "users"
	CollectionChats       = "chats"
	CollectionGroups      = "groups"
	CollectionMemberships = "memberships"
	CollectionCounters    = "counters"
)

// mongoClient captures the subset of mongo.Client behavior we rely on to allow
// lightweight stubbing in tests without a live Mongo deployment.
type mongoClient interface {
	Ping(context.Context, *readpref.ReadPref) error
	Database(string, ...*options.DatabaseOptions) *mongo.Database
	Disconnect(context.Context) error
}

// connectMongo is overridable for tests.
var connectMongo = func(ctx context.Context, opts *options.ClientOptions) (mongoClient, error) {
	return mongo.Connect(ctx, opts)
}

// createIndexes is overridable for tests.
var createIndexes = func(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) ([]string, error) {
	return coll.Indexes().CreateMany(ctx, models)
}

// Manager owns a MongoDB client and the configured database handle.
type Manager struct {
	client mongoClient
	db     *mongo.Database
}

// NewManager initializes the Mongo client using the supplied configuration and
// verifies connectivity with a ping.
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	client, err := connectMongo(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Manager{
		client: client,
		db:     client.Database(cfg.MongoDB),
	}, nil
}

// Ping verifies connectivity to the primary; used by the health endpoint.
func (m *Manager) Ping(ctx context.Context) error {
	if m == nil || m.client == nil {
		return errors.New("store manager is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Ping(ctx, readpref.Primary())
}

// Collection returns a collection handle for the given name.
func (m *Manager) Collection(name string) *mongo.Collection {
	return m.db.Collection(name)
}

// Users returns the users collection handle.
func (m *Manager) Users() *mongo.Collection {
	return m.Collection(CollectionUsers)
}

// Chats returns the chats collection handle.
func (m *Manager) Chats() *mongo.Collection {
	return m.Collection(CollectionChats)
}

// Groups returns the groups collection handle.
func (m *Manager) Groups() *mongo.Collection {
	return m.Collection(CollectionGroups)
}

// Memberships returns the chat-in-group memberships collection handle.
func (m *Manager) Memberships() *mongo.Collection {
	return m.Collection(CollectionMemberships)
}

// Counters returns the id-sequence counters collection handle.
func (m *Manager) Counters() *mongo.Collection {
	return m.Collection(CollectionCounters)
}

// EnsureBaseIndexes creates the foundational indexes for all collections.
// Collections are created implicitly if they do not already exist.
func (m *Manager) EnsureBaseIndexes(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if m == nil || m.db == nil {
		return errors.New("store manager is not initialized")
	}

	indexSets := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{
			coll: m.Users(),
			models: []mongo.IndexModel{{
				Keys: bson.D{{Key: "user_id", Value: 1}},
				Options: options.Index().
					SetName("user_id_unique").
					SetUnique(true),
			}},
		},
		{
			coll: m.Chats(),
			models: []mongo.IndexModel{{
				Keys: bson.D{{Key: "chat_id", Value: 1}},
				Options: options.Index().
					SetName("chat_id_unique").
					SetUnique(true),
			}},
		},
		{
			coll: m.Groups(),
			models: []mongo.IndexModel{{
				Keys: bson.D{{Key: "title", Value: 1}},
				Options: options.Index().
					SetName("title_unique").
					SetUnique(true),
			}},
		},
		{
			coll: m.Memberships(),
			models: []mongo.IndexModel{{
				Keys: bson.D{{Key: "group_id", Value: 1}, {Key: "chat_id", Value: 1}},
				Options: options.Index().
					SetName("group_chat_unique").
					SetUnique(true),
			}},
		},
	}

	for _, set := range indexSets {
		if _, err := createIndexes(ctx, set.coll, set.models); err != nil {
			return fmt.Errorf("create %s indexes: %w", set.coll.Name(), err)
		}
	}

	return nil
}

// Close disconnects the Mongo client.
func (m *Manager) Close(ctx context.Context) error {
	if m == nil || m.client == nil {
		return nil
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	return m.client.Disconnect(ctx)
}
