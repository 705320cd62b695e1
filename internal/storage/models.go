package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// UserRecord is a stored user. Doc holds the profile document as JSON; its
// field names are normalized by the profile adapter, not here.
type UserRecord struct {
	Email     string
	Name      string
	Doc       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CareerRecord is a structured career document. Doc holds the source JSON;
// required-skill order inside it is preserved by the career adapter.
type CareerRecord struct {
	Title     string
	Doc       string
	CreatedAt time.Time
}

// ChatMessage is one turn of a user's advisor conversation.
type ChatMessage struct {
	ID        string
	UserEmail string
	Role      string // "user" or "assistant"
	Content   string
	CreatedAt time.Time
}
