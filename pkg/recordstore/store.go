// Package recordstore persists extracted document text keyed by owning user.
package recordstore

import (
	"context"
	"errors"
	"time"
)

// Store errors
var (
	ErrDuplicate = errors.New("a record with this file name already exists for this user")
	ErrNotFound  = errors.New("record not found")
	ErrClosed    = errors.New("store is closed")
)

// Record is one stored extraction result
type Record struct {
	ID         string
	UserID     string
	FileName   string
	Text       string
	UploadedAt time.Time
}

// Store persists records. Insert must enforce (UserID, FileName) uniqueness
// atomically; concurrent inserts of the same pair leave exactly one record.
type Store interface {
	// Exists reports whether the user already has a record with this file name.
	Exists(ctx context.Context, userID, fileName string) (bool, error)
	// Insert stores rec or returns ErrDuplicate.
	Insert(ctx context.Context, rec *Record) error
	// List returns the user's records, newest first.
	List(ctx context.Context, userID string) ([]*Record, error)
	// Get returns the user's record with id or ErrNotFound.
	Get(ctx context.Context, userID, id string) (*Record, error)
	// Delete removes the user's record with id or returns ErrNotFound.
	Delete(ctx context.Context, userID, id string) error
	Close() error
}
