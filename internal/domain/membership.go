package domain

import "time"

// Membership links one Chat to one Group. Removal is a soft delete: the row
// stays behind with IsRemoved=true and is reactivated if the chat is attached
// again, so at most one row ever exists per (group, chat) pair.
type Membership struct {
	GroupID   int64     `bson:"group_id" json:"group_id"`
	ChatID    int64     `bson:"chat_id" json:"chat_id"`
	IsRemoved bool      `bson:"is_removed" json:"is_removed"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
