package entities

import "time"

// Registration is a completed application form: name, age, confirmed by the
// user on the final step.
type Registration struct {
	ID        int `gorm:"primaryKey"`
	UserID    int64
	Name      string
	Age       int
	CreatedAt time.Time
}

func NewRegistration(userID int64, name string, age int) *Registration {
	return &Registration{UserID: userID, Name: name, Age: age}
}
