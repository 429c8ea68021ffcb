package models

import "time"

// PasswordResetToken is a single-use secret mailed to a user.
type PasswordResetToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the token is no longer usable at now.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
