// Package directory owns the group, chat, and membership lifecycles: group
// creation, idempotent chat registration, and soft-deletable chat-in-group
// attachment.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tg_notify_relay_bot/internal/domain"
	"tg_notify_relay_bot/internal/logging"
)

type chatCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type groupCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

type membershipCollection interface {
	FindOne(ctx context.Context, filter interface{}, opts ...*options.FindOneOptions) *mongo.SingleResult
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	UpdateMany(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) (*mongo.Cursor, error)
}

type groupIDSequence interface {
	Next(ctx context.Context) (int64, error)
}

// Directory is the single owner of Group, Chat, and Membership records. The
// search-then-insert-or-reactivate sequences are serialized per group title so
// concurrent updates cannot produce duplicate active memberships.
type Directory struct {
	chats       chatCollection
	groups      groupCollection
	memberships membershipCollection
	groupIDs    groupIDSequence
	logger      *logrus.Entry

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New constructs a Directory over the provided collections.
func New(chats chatCollection, groups groupCollection, memberships membershipCollection, groupIDs groupIDSequence, logger *logrus.Entry) *Directory {
	if logger == nil {
		logger = logging.Logger()
	}

	return &Directory{
		chats:       chats,
		groups:      groups,
		memberships: memberships,
		groupIDs:    groupIDs,
		logger:      logger,
		locks:       make(map[string]*sync.Mutex),
	}
}

// RegisterChat upserts the chat record. Repeated calls with the same id are
// no-ops apart from refreshing the title; the reported bool is true only when
// the chat was first created.
func (d *Directory) RegisterChat(ctx context.Context, chatID int64, title string) (bool, error) {
	if d == nil || d.chats == nil {
		return false, errors.New("directory is not initialized")
	}
	if ctx == nil {
		return false, errors.New("context is required")
	}
	if chatID == 0 {
		return false, errors.New("chat id is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	updateTitle := strings.TrimSpace(title)

	setFields := bson.M{"updated_at": now}
	if updateTitle != "" {
		setFields["title"] = updateTitle
	}

	result, err := d.chats.UpdateOne(ctx,
		bson.M{"chat_id": chatID},
		bson.M{
			"$set": setFields,
			"$setOnInsert": bson.M{
				"chat_id":    chatID,
				"created_at": now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("register chat: %w", err)
	}

	created := result != nil && result.UpsertedCount > 0
	if created {
		d.logger.WithFields(logging.Fields{
			"event":   "chat_registered",
			"chat_id": chatID,
			"title":   updateTitle,
		}).Info("registered new chat")
	}

	return created, nil
}

// LookupChat fetches a chat by id.
func (d *Directory) LookupChat(ctx context.Context, chatID int64) (domain.Chat, error) {
	if d == nil || d.chats == nil {
		return domain.Chat{}, errors.New("directory is not initialized")
	}
	if ctx == nil {
		return domain.Chat{}, errors.New("context is required")
	}

	var chat domain.Chat
	if err := decodeOne(d.chats.FindOne(ctx, bson.M{"chat_id": chatID}), &chat); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Chat{}, fmt.Errorf("%w: chat %d", domain.ErrNotFound, chatID)
		}
		return domain.Chat{}, fmt.Errorf("find chat: %w", err)
	}

	return chat, nil
}

// CreateGroup inserts a new distribution group and associates the creating
// user with it. A duplicate title reports ErrConflict.
func (d *Directory) CreateGroup(ctx context.Context, title string, creatorID int64) (domain.Group, error) {
	if d == nil || d.groups == nil || d.groupIDs == nil {
		return domain.Group{}, errors.New("directory is not initialized")
	}
	if ctx == nil {
		return domain.Group{}, errors.New("context is required")
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Group{}, fmt.Errorf("%w: group title is empty", domain.ErrValidation)
	}

	unlock := d.lockGroup(title)
	defer unlock()

	err := d.groups.FindOne(ctx, bson.M{"title": title}).Err()
	switch {
	case err == nil:
		return domain.Group{}, fmt.Errorf("%w: group %q", domain.ErrConflict, title)
	case !errors.Is(err, mongo.ErrNoDocuments):
		return domain.Group{}, fmt.Errorf("find group: %w", err)
	}

	groupID, err := d.groupIDs.Next(ctx)
	if err != nil {
		return domain.Group{}, fmt.Errorf("allocate group id: %w", err)
	}

	group := domain.Group{
		GroupID:   groupID,
		Title:     title,
		UserIDs:   []int64{creatorID},
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}

	if _, err := d.groups.InsertOne(ctx, group); err != nil {
		return domain.Group{}, fmt.Errorf("insert group: %w", err)
	}

	d.logger.WithFields(logging.Fields{
		"event":    "group_created",
		"group_id": groupID,
		"title":    title,
		"actor_id": creatorID,
	}).Info("created group")

	return group, nil
}

// AttachChat links the chat to the named group, creating the chat record if it
// has never been seen. A removed membership is reactivated in place; an active
// one reports ErrConflict. The chat record is returned for acknowledgments.
func (d *Directory) AttachChat(ctx context.Context, groupTitle string, chatID int64) (domain.Chat, error) {
	if d == nil || d.memberships == nil {
		return domain.Chat{}, errors.New("directory is not initialized")
	}
	if ctx == nil {
		return domain.Chat{}, errors.New("context is required")
	}

	unlock := d.lockGroup(groupTitle)
	defer unlock()

	group, err := d.findGroup(ctx, groupTitle)
	if err != nil {
		return domain.Chat{}, err
	}

	if _, err := d.RegisterChat(ctx, chatID, ""); err != nil {
		return domain.Chat{}, err
	}

	chat, err := d.LookupChat(ctx, chatID)
	if err != nil {
		return domain.Chat{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	// Existing rows are searched regardless of removal state so a re-attach
	// reuses the original row instead of inserting a duplicate.
	var membership domain.Membership
	err = decodeOne(d.memberships.FindOne(ctx, bson.M{"group_id": group.GroupID, "chat_id": chatID}), &membership)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		membership = domain.Membership{
			GroupID:   group.GroupID,
			ChatID:    chatID,
			IsRemoved: false,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if _, err := d.memberships.InsertOne(ctx, membership); err != nil {
			return domain.Chat{}, fmt.Errorf("insert membership: %w", err)
		}
	case err != nil:
		return domain.Chat{}, fmt.Errorf("find membership: %w", err)
	case membership.IsRemoved:
		_, err := d.memberships.UpdateOne(ctx,
			bson.M{"group_id": group.GroupID, "chat_id": chatID},
			bson.M{"$set": bson.M{"is_removed": false, "updated_at": now}},
		)
		if err != nil {
			return domain.Chat{}, fmt.Errorf("reactivate membership: %w", err)
		}
	default:
		return chat, fmt.Errorf("%w: chat %d is already attached to group %q", domain.ErrConflict, chatID, groupTitle)
	}

	d.logger.WithFields(logging.Fields{
		"event":    "chat_attached",
		"group_id": group.GroupID,
		"chat_id":  chatID,
	}).Info("attached chat to group")

	return chat, nil
}

// DetachChat soft-deletes the active membership of the chat in the named
// group. A missing or already-removed membership reports ErrNotFound; the chat
// and group records themselves are untouched.
func (d *Directory) DetachChat(ctx context.Context, groupTitle string, chatID int64) error {
	if d == nil || d.memberships == nil {
		return errors.New("directory is not initialized")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	unlock := d.lockGroup(groupTitle)
	defer unlock()

	group, err := d.findGroup(ctx, groupTitle)
	if err != nil {
		return err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	result, err := d.memberships.UpdateOne(ctx,
		bson.M{"group_id": group.GroupID, "chat_id": chatID, "is_removed": false},
		bson.M{"$set": bson.M{"is_removed": true, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("detach membership: %w", err)
	}

	if result == nil || result.MatchedCount == 0 {
		return fmt.Errorf("%w: chat %d has no active membership in group %q", domain.ErrNotFound, chatID, groupTitle)
	}

	d.logger.WithFields(logging.Fields{
		"event":    "chat_detached",
		"group_id": group.GroupID,
		"chat_id":  chatID,
	}).Info("detached chat from group")

	return nil
}

// ListGroupsFor returns the groups the user is directly associated with, used
// to populate the group-selection keyboard. Association is independent from
// chat membership.
func (d *Directory) ListGroupsFor(ctx context.Context, userID int64) ([]domain.Group, error) {
	if d == nil || d.groups == nil {
		return nil, errors.New("directory is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	cursor, err := d.groups.Find(ctx, bson.M{"user_ids": userID})
	if err != nil {
		return nil, fmt.Errorf("find groups: %w", err)
	}

	var groups []domain.Group
	if err := cursor.All(ctx, &groups); err != nil {
		return nil, fmt.Errorf("decode groups: %w", err)
	}

	return groups, nil
}

// ActiveMemberships returns all non-removed memberships of the named group,
// the snapshot a broadcast run iterates.
func (d *Directory) ActiveMemberships(ctx context.Context, groupTitle string) ([]domain.Membership, error) {
	if d == nil || d.memberships == nil {
		return nil, errors.New("directory is not initialized")
	}
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	group, err := d.findGroup(ctx, groupTitle)
	if err != nil {
		return nil, err
	}

	cursor, err := d.memberships.Find(ctx, bson.M{"group_id": group.GroupID, "is_removed": false})
	if err != nil {
		return nil, fmt.Errorf("find memberships: %w", err)
	}

	var memberships []domain.Membership
	if err := cursor.All(ctx, &memberships); err != nil {
		return nil, fmt.Errorf("decode memberships: %w", err)
	}

	return memberships, nil
}

// DisconnectChat soft-deletes every active membership of the chat across all
// groups; invoked when the bot is removed from the chat. Returns the number of
// memberships that were deactivated.
func (d *Directory) DisconnectChat(ctx context.Context, chatID int64) (int64, error) {
	if d == nil || d.memberships == nil {
		return 0, errors.New("directory is not initialized")
	}
	if ctx == nil {
		return 0, errors.New("context is required")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)

	result, err := d.memberships.UpdateMany(ctx,
		bson.M{"chat_id": chatID, "is_removed": false},
		bson.M{"$set": bson.M{"is_removed": true, "updated_at": now}},
	)
	if err != nil {
		return 0, fmt.Errorf("disconnect chat: %w", err)
	}

	removed := int64(0)
	if result != nil {
		removed = result.ModifiedCount
	}

	d.logger.WithFields(logging.Fields{
		"event":       "chat_disconnected",
		"chat_id":     chatID,
		"memberships": removed,
	}).Info("soft-deleted memberships of removed chat")

	return removed, nil
}

func (d *Directory) findGroup(ctx context.Context, title string) (domain.Group, error) {
	var group domain.Group
	if err := decodeOne(d.groups.FindOne(ctx, bson.M{"title": title}), &group); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.Group{}, fmt.Errorf("%w: group %q", domain.ErrNotFound, title)
		}
		return domain.Group{}, fmt.Errorf("find group: %w", err)
	}

	return group, nil
}

// lockGroup serializes directory mutations on one group title. The returned
// func releases the lock.
func (d *Directory) lockGroup(title string) func() {
	d.locksMu.Lock()
	lock, ok := d.locks[title]
	if !ok {
		lock = &sync.Mutex{}
		d.locks[title] = lock
	}
	d.locksMu.Unlock()

	lock.Lock()
	return lock.Unlock
}

func decodeOne(result *mongo.SingleResult, out interface{}) error {
	if result == nil {
		return errors.New("find returned no result")
	}
	if err := result.Err(); err != nil {
		return err
	}

	return result.Decode(out)
}
