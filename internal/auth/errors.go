package auth

import (
	"errors"
	"time"
)

// ErrInvalidCredentials covers both unknown usernames and wrong passwords.
// Callers must not be able to tell the two apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrAccountLocked reports an active lockout on the account.
type ErrAccountLocked struct {
	Until time.Time
}

func (e ErrAccountLocked) Error() string {
	return "account is locked"
}

// RemainingMinutes is the ceiling of the time left on the lock, for display.
func (e ErrAccountLocked) RemainingMinutes(now time.Time) int {
	remaining := e.Until.Sub(now)
	minutes := int((remaining + time.Minute - 1) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
