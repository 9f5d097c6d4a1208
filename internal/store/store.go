// Package store persists the board document and its version counter.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/vtt-board-sync/internal/apperr"
	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

// Mutator receives a private copy of the current board and returns the
// board to persist. Returning an error aborts the write.
type Mutator func(current board.BoardState) (board.BoardState, error)

type versionDoc struct {
	Version int64 `json:"version"`
}

// Store is the explicit handle to the board document. All writes go
// through WriteAtomic so that the read, merge and save happen under one
// backend lock.
type Store struct {
	backend Backend
	log     *zap.Logger
}

func Open(backend Backend, log *zap.Logger) (*Store, error) {
	if backend == nil {
		return nil, errors.New("store: nil backend")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{backend: backend, log: log}, nil
}

// Read returns the stored board, or an empty board if none was saved yet.
func (s *Store) Read(ctx context.Context) (board.BoardState, error) {
	data, err := s.backend.Load(ctx, DocBoardState)
	if errors.Is(err, ErrNotFound) {
		return board.Empty(), nil
	}
	if err != nil {
		return board.BoardState{}, apperr.Persistence("read board state", err)
	}
	b := board.Empty()
	if len(data) > 0 {
		if err := json.Unmarshal(data, &b); err != nil {
			return board.BoardState{}, apperr.Persistence("decode board state", err)
		}
	}
	b.Ensure()
	return b, nil
}

// Version returns the current version, 0 before the first write.
func (s *Store) Version(ctx context.Context) (int64, error) {
	data, err := s.backend.Load(ctx, DocVersion)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, apperr.Persistence("read version", err)
	}
	var v versionDoc
	if err := json.Unmarshal(data, &v); err != nil {
		return 0, apperr.Persistence("decode version", err)
	}
	return v.Version, nil
}

// BumpVersion increments the version under the backend lock.
func (s *Store) BumpVersion(ctx context.Context) (int64, error) {
	unlock, err := s.backend.Lock(ctx)
	if err != nil {
		return 0, apperr.Persistence("acquire lock", err)
	}
	defer unlock()
	return s.bump(ctx)
}

func (s *Store) bump(ctx context.Context) (int64, error) {
	v, err := s.Version(ctx)
	if err != nil {
		return 0, err
	}
	v++
	data, err := json.Marshal(versionDoc{Version: v})
	if err != nil {
		return 0, apperr.Persistence("encode version", err)
	}
	if err := s.backend.Save(ctx, DocVersion, data); err != nil {
		return 0, apperr.Persistence("save version", err)
	}
	return v, nil
}

// WriteAtomic runs mutate against the current board while holding the
// backend lock, persists the result and bumps the version. A failed save
// leaves the version untouched; a failed bump restores the previous board.
func (s *Store) WriteAtomic(ctx context.Context, mutate Mutator) (board.BoardState, int64, error) {
	unlock, err := s.backend.Lock(ctx)
	if err != nil {
		return board.BoardState{}, 0, apperr.Persistence("acquire lock", err)
	}
	defer unlock()

	current, err := s.Read(ctx)
	if err != nil {
		return board.BoardState{}, 0, err
	}
	next, err := mutate(current)
	if err != nil {
		return board.BoardState{}, 0, err
	}
	next.Ensure()

	data, err := json.Marshal(next)
	if err != nil {
		return board.BoardState{}, 0, apperr.Persistence("encode board state", err)
	}
	if err := s.backend.Save(ctx, DocBoardState, data); err != nil {
		s.log.Error("save board state", zap.Error(err))
		return board.BoardState{}, 0, apperr.Persistence("save board state", err)
	}
	v, err := s.bump(ctx)
	if err != nil {
		s.log.Error("bump version", zap.Error(err))
		return board.BoardState{}, 0, multierr.Append(err, s.restore(ctx, current))
	}
	s.log.Debug("board written", zap.Int64("version", v), zap.String("author_id", next.Metadata.UpdatedBy))
	return next, v, nil
}

// restore puts prev back as the stored board after a write could not be
// versioned.
func (s *Store) restore(ctx context.Context, prev board.BoardState) error {
	data, err := json.Marshal(prev)
	if err == nil {
		err = s.backend.Save(ctx, DocBoardState, data)
	}
	if err != nil {
		s.log.Error("restore board state", zap.Error(err))
		return apperr.Persistence("restore board state", err)
	}
	return nil
}

// Scenes returns the stored scene list as raw JSON.
func (s *Store) Scenes(ctx context.Context) (json.RawMessage, error) { return s.rawList(ctx, DocScenes) }

// Tokens returns the stored token library as raw JSON.
func (s *Store) Tokens(ctx context.Context) (json.RawMessage, error) { return s.rawList(ctx, DocTokens) }

func (s *Store) rawList(ctx context.Context, name string) (json.RawMessage, error) {
	data, err := s.backend.Load(ctx, name)
	if errors.Is(err, ErrNotFound) || (err == nil && len(data) == 0) {
		return json.RawMessage("[]"), nil
	}
	if err != nil {
		return nil, apperr.Persistence("read "+name, err)
	}
	if !json.Valid(data) {
		return nil, apperr.Persistence("read "+name, fmt.Errorf("%s is not valid json", name))
	}
	return json.RawMessage(data), nil
}

// Close releases the backend.
func (s *Store) Close() error {
	var err error
	if s.backend != nil {
		err = multierr.Append(err, s.backend.Close())
		s.backend = nil
	}
	return err
}
