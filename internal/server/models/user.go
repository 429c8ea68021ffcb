// Package models defines server-side data models persisted in the database.
package models

import "time"

// User owns a set of profiles. PIN is empty until one is set.
type User struct {
	ID             string
	Email          string
	HashedPassword string
	PIN            string
	IsActive       bool
	CreatedAt      time.Time
}
