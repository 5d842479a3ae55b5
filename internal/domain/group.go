package domain

import (
	"strconv"
	"time"
)

// Group is a named distribution list of chats. UserIDs holds the users who may
// target the group when building a send keyboard; it is independent from chat
// membership.
type Group struct {
	GroupID   int64     `bson:"group_id" json:"group_id"`
	Title     string    `bson:"title" json:"title"`
	UserIDs   []int64   `bson:"user_ids" json:"user_ids"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
