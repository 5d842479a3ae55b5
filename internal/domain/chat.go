package domain

import "time"

// Chat is a Telegram chat the bot has been added to, or that an admin has
// named while attaching it to a group. Chats are never hard-deleted.
type Chat struct {
	ChatID    int64     `bson:"chat_id" json:"chat_id"`
	Title     string    `bson:"title" json:"title"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DisplayName returns the chat title, falling back to the numeric id when the
// chat was created by reference and no title is known yet.
func (c Chat) DisplayName() string {
	if c.Title != "" {
		return c.Title
	}
	return formatID(c.ChatID)
}
