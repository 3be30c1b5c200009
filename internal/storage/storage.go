// Package storage retrieves raw received messages by object key.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no message exists for a key.
var ErrNotFound = errors.New("message not found")

// Store fetches the raw bytes of a stored message.
type Store interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}
