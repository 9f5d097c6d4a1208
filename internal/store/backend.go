package store

import (
	"context"
	"errors"
)

// Logical documents persisted by the store. Each is one JSON object.
const (
	DocBoardState = "board-state.json"
	DocVersion    = "board-state-version.json"
	DocScenes     = "scenes.json"
	DocTokens     = "tokens.json"
)

var ErrNotFound = errors.New("document not found")

// Backend is a whole-document store with an external mutual-exclusion
// primitive. Load returns ErrNotFound for a document never saved.
type Backend interface {
	Load(ctx context.Context, name string) ([]byte, error)
	Save(ctx context.Context, name string, data []byte) error
	// Lock blocks until the caller holds the write region. The returned
	// function releases it and must be called exactly once.
	Lock(ctx context.Context) (unlock func(), err error)
	Close() error
}
