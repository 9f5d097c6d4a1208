package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/vtt-board-sync/internal/apperr"
	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

func openFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := OpenFileBackend(dir)
	require.NoError(t, err)
	s, err := Open(backend, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func TestStore_ReadMissingReturnsEmptyBoard(t *testing.T) {
	s, _ := openFileStore(t)
	b, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, b.Placements)
	assert.NotNil(t, b.Pings)

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestStore_WriteAtomicPersistsAndBumpsVersion(t *testing.T) {
	s, dir := openFileStore(t)
	ctx := context.Background()

	for want := int64(1); want <= 3; want++ {
		_, v, err := s.WriteAtomic(ctx, func(b board.BoardState) (board.BoardState, error) {
			b.Placements["s1"] = append(b.Placements["s1"], board.Placement{ID: fmt.Sprintf("t%d", want), Width: 1, Height: 1})
			return b, nil
		})
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}

	b, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, b.Placements["s1"], 3)

	raw, err := os.ReadFile(filepath.Join(dir, DocVersion))
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":3}`, string(raw))

	// the version lives beside the document, not inside it
	doc, err := os.ReadFile(filepath.Join(dir, DocBoardState))
	require.NoError(t, err)
	var top map[string]any
	require.NoError(t, json.Unmarshal(doc, &top))
	assert.NotContains(t, top, "_version")
}

func TestStore_ConcurrentWritersLoseNothing(t *testing.T) {
	s, _ := openFileStore(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := s.WriteAtomic(ctx, func(b board.BoardState) (board.BoardState, error) {
				b.Placements["s1"] = append(b.Placements["s1"], board.Placement{ID: fmt.Sprintf("t%d", i), Width: 1, Height: 1})
				return b, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	b, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Len(t, b.Placements["s1"], writers)
	v, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(writers), v)
}

func TestStore_MutatorErrorWritesNothing(t *testing.T) {
	s, _ := openFileStore(t)
	boom := errors.New("boom")
	_, _, err := s.WriteAtomic(context.Background(), func(b board.BoardState) (board.BoardState, error) {
		return b, boom
	})
	require.ErrorIs(t, err, boom)

	v, err := s.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

// failingBackend wraps a backend and fails saves of one document.
type failingBackend struct {
	Backend
	failOn string
}

func (f failingBackend) Save(ctx context.Context, name string, data []byte) error {
	if name == f.failOn {
		return errors.New("disk full")
	}
	return f.Backend.Save(ctx, name, data)
}

func TestStore_FailedSaveKeepsVersion(t *testing.T) {
	dir := t.TempDir()
	fb, err := OpenFileBackend(dir)
	require.NoError(t, err)
	good, err := Open(fb, nil)
	require.NoError(t, err)
	_, _, err = good.WriteAtomic(context.Background(), func(b board.BoardState) (board.BoardState, error) { return b, nil })
	require.NoError(t, err)

	bad, err := Open(failingBackend{Backend: fb, failOn: DocBoardState}, nil)
	require.NoError(t, err)
	_, _, err = bad.WriteAtomic(context.Background(), func(b board.BoardState) (board.BoardState, error) { return b, nil })
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrPersistence))

	v, err := good.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestStore_FailedBumpRestoresBoard(t *testing.T) {
	dir := t.TempDir()
	fb, err := OpenFileBackend(dir)
	require.NoError(t, err)
	good, err := Open(fb, nil)
	require.NoError(t, err)

	bad, err := Open(failingBackend{Backend: fb, failOn: DocVersion}, nil)
	require.NoError(t, err)
	_, _, err = bad.WriteAtomic(context.Background(), func(b board.BoardState) (board.BoardState, error) {
		b.Placements["s1"] = []board.Placement{{ID: "t1", Width: 1, Height: 1}}
		return b, nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrPersistence))

	v, err := good.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
	b, err := good.Read(context.Background())
	require.NoError(t, err)
	assert.Empty(t, b.Placements["s1"])
}

func TestStore_BumpVersion(t *testing.T) {
	s, _ := openFileStore(t)
	v, err := s.BumpVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = s.BumpVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestStore_ScenesAndTokensDefaultToEmptyList(t *testing.T) {
	s, dir := openFileStore(t)
	scenes, err := s.Scenes(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(scenes))

	require.NoError(t, os.WriteFile(filepath.Join(dir, DocTokens), []byte(`[{"id":"goblin"}]`), 0o644))
	tokens, err := s.Tokens(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"goblin"}]`, string(tokens))
}

func TestStore_FogSurvivesRoundTripAsObject(t *testing.T) {
	s, dir := openFileStore(t)
	_, _, err := s.WriteAtomic(context.Background(), func(b board.BoardState) (board.BoardState, error) {
		b.SceneState["s1"] = board.SceneConfig{FogOfWar: board.FogOfWar{Enabled: true, RevealedCells: board.CellSet{}}}
		return b, nil
	})
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, DocBoardState))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"revealedCells":{}`)
	assert.NotContains(t, string(raw), `"revealedCells":[]`)
}

func TestFileBackend_RejectsPathNames(t *testing.T) {
	fb, err := OpenFileBackend(t.TempDir())
	require.NoError(t, err)
	err = fb.Save(context.Background(), "../escape.json", []byte(`{}`))
	require.Error(t, err)
	_, err = fb.Load(context.Background(), "nested/doc.json")
	require.Error(t, err)
}

func TestFileBackend_LockHonorsContext(t *testing.T) {
	fb, err := OpenFileBackend(t.TempDir())
	require.NoError(t, err)
	unlock, err := fb.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fb.Lock(ctx)
	require.ErrorIs(t, err, context.Canceled)

	unlock()
	unlock() // second call is a no-op
	unlock2, err := fb.Lock(context.Background())
	require.NoError(t, err)
	unlock2()
}

func TestPostgresBackend_RoundTrip(t *testing.T) {
	dsn := os.Getenv("BOARD_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("BOARD_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pg, err := OpenPostgresBackend(ctx, dsn, t.Name())
	require.NoError(t, err)
	s, err := Open(pg, nil)
	require.NoError(t, err)
	defer s.Close()

	before, err := s.Version(ctx)
	require.NoError(t, err)
	_, v, err := s.WriteAtomic(ctx, func(b board.BoardState) (board.BoardState, error) {
		b.Placements["pg"] = []board.Placement{{ID: "t1", Width: 1, Height: 1}}
		return b, nil
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, v)

	got, err := s.Read(ctx)
	require.NoError(t, err)
	require.Len(t, got.Placements["pg"], 1)

	_, err = pg.Load(ctx, "never-saved.json")
	require.ErrorIs(t, err, ErrNotFound)
}
