package user

import "time"

type User struct {
	ID                  string
	Username            string
	PasswordHash        string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	LastLoginAttempt    *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Public is the subset of user fields safe to return to clients.
type Public struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

func (u User) Public() Public {
	return Public{ID: u.ID, Username: u.Username}
}
