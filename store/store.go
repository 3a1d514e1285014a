package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is an exported constant or variable used by the token lifecycle keeper.
var ErrNotFound = errors.New("token pair not found")

// Pair defines a public type used by tokenward APIs.
//
// Pair instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Pair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	SavedAt      time.Time `json:"saved_at"`
}

// TokenStore persists token pairs under caller-chosen keys. Implementations
// must be safe for concurrent use.
type TokenStore interface {
	Save(ctx context.Context, key string, pair Pair) error
	Load(ctx context.Context, key string) (Pair, error)
	Clear(ctx context.Context, key string) error
}
