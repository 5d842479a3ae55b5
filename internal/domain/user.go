package domain

import "time"

// User is a staff member allowed to interact with the relay bot.
type User struct {
	UserID    int64     `bson:"user_id" json:"user_id"`
	Name      string    `bson:"name" json:"name"`
	Role      Role      `bson:"role" json:"role"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
