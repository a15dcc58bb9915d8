package entities

import "time"

// User is anyone who ever talked to the bot. The table doubles as the
// recipient list for admin broadcasts.
type User struct {
	ID        int64 `gorm:"primaryKey"`
	UserName  string
	CreatedAt time.Time
}

func NewUser(id int64, userName string) User {
	return User{ID: id, UserName: userName}
}
