// Package service runs the read and save flows of the board.
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/vtt-board-sync/internal/apperr"
	"github.com/DoyleJ11/vtt-board-sync/internal/board"
	"github.com/DoyleJ11/vtt-board-sync/internal/broadcast"
	"github.com/DoyleJ11/vtt-board-sync/internal/merge"
	"github.com/DoyleJ11/vtt-board-sync/internal/normalize"
	"github.com/DoyleJ11/vtt-board-sync/internal/projection"
	"github.com/DoyleJ11/vtt-board-sync/internal/store"
	"github.com/DoyleJ11/vtt-board-sync/pkg/types"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Role   board.Role
}

func (id Identity) writer() merge.Writer { return merge.Writer{ID: id.UserID, Role: id.Role} }

// Notifier receives every applied write.
type Notifier interface {
	Notify(ev broadcast.Event)
}

type Options struct {
	Push types.PushInfo
	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	store    *store.Store
	notifier Notifier
	push     types.PushInfo
	now      func() time.Time
	log      *zap.Logger
}

func New(st *store.Store, n Notifier, opts Options, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if n == nil {
		n = broadcast.NewNotifier(broadcast.Nop{}, "", log)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{store: st, notifier: n, push: opts.Push, now: opts.Now, log: log}
}

// Snapshot returns the full board as the caller may see it.
func (s *Service) Snapshot(ctx context.Context, id Identity) (types.StateResponse, error) {
	// version first: a board newer than its version only causes one extra fetch
	version, err := s.store.Version(ctx)
	if err != nil {
		return types.StateResponse{}, err
	}
	b, err := s.store.Read(ctx)
	if err != nil {
		return types.StateResponse{}, err
	}
	b.Pings = normalize.RetainPings(b.Pings, s.now())

	scenes, err := s.store.Scenes(ctx)
	if err != nil {
		return types.StateResponse{}, err
	}
	tokens, err := s.store.Tokens(ctx)
	if err != nil {
		return types.StateResponse{}, err
	}
	return types.StateResponse{
		Scenes: scenes,
		Tokens: tokens,
		BoardState: types.VersionedState{
			BoardState: projection.View(b, id.Role.IsGM()),
			Version:    version,
			FullSync:   true,
		},
		Pusher: s.push,
	}, nil
}

// Save applies one POST /state body.
func (s *Service) Save(ctx context.Context, id Identity, body map[string]any) (types.VersionedState, error) {
	raw, ok := body["boardState"].(map[string]any)
	if !ok {
		return types.VersionedState{}, apperr.Validation("boardState", "expected object")
	}
	now := s.now()
	patch, err := normalize.ParsePatch(raw, now)
	if err != nil {
		return types.VersionedState{}, err
	}
	if patch.Dropped > 0 {
		s.log.Debug("dropped malformed entries", zap.Int("count", patch.Dropped), zap.String("author_id", id.UserID))
	}
	if patch.Empty() {
		return types.VersionedState{}, apperr.Validation("boardState", "empty payload")
	}
	if !id.Role.IsGM() {
		gmOnly := patch.HasActiveScene || patch.HasMapURL || patch.Overlay != nil
		restricted, dropped := merge.Restrict(patch)
		if restricted.Empty() {
			if gmOnly {
				return types.VersionedState{}, apperr.Forbidden("activeSceneId, mapUrl and overlay are GM-only")
			}
			return types.VersionedState{}, apperr.Validation("boardState", "empty payload")
		}
		if dropped {
			s.log.Debug("ignored GM-only fields", zap.String("author_id", id.UserID))
		}
		patch = restricted
	}

	w := id.writer()
	next, version, err := s.store.WriteAtomic(ctx, func(current board.BoardState) (board.BoardState, error) {
		merged := merge.Apply(current, patch, w, now)
		return stamp(merged, current.Metadata, w, now)
	})
	if err != nil {
		return types.VersionedState{}, err
	}

	fields := patch.Fields()
	s.log.Info("board saved",
		zap.Int64("version", version),
		zap.String("author_id", id.UserID),
		zap.String("author_role", string(id.Role)),
		zap.Strings("changed_fields", fields))

	s.notifier.Notify(broadcast.Event{
		Version:       version,
		Timestamp:     next.Metadata.UpdatedAt,
		AuthorID:      id.UserID,
		AuthorRole:    id.Role,
		SocketID:      patch.SocketID,
		ChangedFields: fields,
		Delta:         deltaOf(next, patch),
	})

	return types.VersionedState{
		BoardState: projection.View(next, id.Role.IsGM()),
		Version:    version,
		FullSync:   true,
	}, nil
}

// stamp records the write in the board metadata. UpdatedAt strictly
// increases so clients can order snapshots even within one millisecond.
func stamp(b board.BoardState, prev board.Metadata, w merge.Writer, now time.Time) (board.BoardState, error) {
	at := now.UnixMilli()
	if at <= prev.UpdatedAt {
		at = prev.UpdatedAt + 1
	}
	sig, err := b.Signature()
	if err != nil {
		return b, apperr.Wrap(apperr.CodeInternal, "sign board", err)
	}
	b.Metadata = board.Metadata{UpdatedBy: w.ID, AuthorRole: w.Role, UpdatedAt: at, Signature: sig}
	return b, nil
}

// deltaOf picks the post-merge value of every field and scene the patch touched.
func deltaOf(b board.BoardState, p normalize.Patch) broadcast.Delta {
	var d broadcast.Delta
	if p.HasActiveScene {
		d.ActiveSceneID = b.ActiveSceneID
	}
	if p.HasMapURL {
		d.MapURL = b.MapURL
	}
	if p.Overlay != nil {
		o := b.Overlay.Clone()
		d.Overlay = &o
	}
	d.Placements = touched(b.Placements, p.Placements)
	d.Templates = touched(b.Templates, p.Templates)
	d.Drawings = touched(b.Drawings, p.Drawings)
	if p.SceneState != nil {
		d.SceneState = make(map[string]board.SceneConfig, len(p.SceneState))
		for id := range p.SceneState {
			d.SceneState[id] = b.SceneState[id].Clone()
		}
	}
	if p.HasPings {
		d.Pings = append([]board.Ping{}, b.Pings...)
	}
	return d
}

func touched[T any](all map[string][]T, patch map[string][]T) map[string][]T {
	if patch == nil {
		return nil
	}
	out := make(map[string][]T, len(patch))
	for scene := range patch {
		out[scene] = append([]T{}, all[scene]...)
	}
	return out
}
