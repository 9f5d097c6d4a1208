package client

import (
	"reflect"
	"time"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
	"github.com/DoyleJ11/vtt-board-sync/pkg/types"
)

// Reconcile folds a fetched snapshot into the local board of a client with
// no unsaved edits.
//
// Players take the server copy as is. A GM takes it wholesale when it is
// strictly newer than what the GM last saw; when both carry the same
// metadata only placement positions that differ are copied over, so a
// player's token move is not lost. An older snapshot leaves a GM board
// untouched.
func Reconcile(role board.Role, local, remote board.BoardState) board.BoardState {
	if !role.IsGM() || remote.Metadata.UpdatedAt > local.Metadata.UpdatedAt {
		return remote.Clone()
	}
	if remote.Metadata.UpdatedAt < local.Metadata.UpdatedAt {
		return local
	}
	return reconcilePositions(local, remote)
}

func reconcilePositions(local, remote board.BoardState) board.BoardState {
	var out board.BoardState
	copied := false
	for scene, entries := range local.Placements {
		at := make(map[string]board.Placement, len(remote.Placements[scene]))
		for _, p := range remote.Placements[scene] {
			at[p.ID] = p
		}
		for i, p := range entries {
			r, ok := at[p.ID]
			if !ok || (r.Column == p.Column && r.Row == p.Row) {
				continue
			}
			if !copied {
				out, copied = local.Clone(), true
			}
			out.Placements[scene][i].Column = r.Column
			out.Placements[scene][i].Row = r.Row
		}
	}
	if !copied {
		return local
	}
	return out
}

// Diff builds the save payload that turns base into local. Changed entries
// get a fresh timestamp. The payload is a delta unless an entry was
// removed, in which case the touched scenes are sent in full so the
// server can see the removal.
func Diff(role board.Role, base, local board.BoardState, now time.Time) types.OutgoingBoard {
	ts := now.UnixMilli()
	var out types.OutgoingBoard

	if role.IsGM() {
		if local.ActiveSceneID != nil && !equalString(base.ActiveSceneID, local.ActiveSceneID) {
			out.ActiveSceneID = local.ActiveSceneID
		}
		if local.MapURL != nil && !equalString(base.MapURL, local.MapURL) {
			out.MapURL = local.MapURL
		}
		if !reflect.DeepEqual(base.Overlay, local.Overlay) {
			o := local.Overlay.Clone()
			out.Overlay = &o
		}
	}

	places := diffScenes(base.Placements, local.Placements, touchPlacement, ts)
	templates := diffScenes(base.Templates, local.Templates, touchTemplate, ts)
	drawings := diffScenes(base.Drawings, local.Drawings, touchDrawing, ts)
	out.DeltaOnly = !places.removed && !templates.removed && !drawings.removed
	out.Placements = places.payload(out.DeltaOnly)
	out.Templates = templates.payload(out.DeltaOnly)
	out.Drawings = drawings.payload(out.DeltaOnly)
	if !role.IsGM() && !out.DeltaOnly {
		// A player's full list must not claim GM authorship or the server
		// discards those entries, moves included.
		out.Placements = demoteScenes(out.Placements)
		out.Templates = demoteScenes(out.Templates)
		out.Drawings = demoteScenes(out.Drawings)
	}

	for id, cfg := range local.SceneState {
		prev, ok := base.SceneState[id]
		if ok && reflect.DeepEqual(prev, cfg) {
			continue
		}
		cfg = cfg.Clone()
		if !reflect.DeepEqual(prev.Combat, cfg.Combat) {
			if cfg.Combat.Sequence <= prev.Combat.Sequence {
				cfg.Combat.Sequence = prev.Combat.Sequence + 1
			}
			cfg.Combat.UpdatedAt = ts
		}
		if out.SceneState == nil {
			out.SceneState = map[string]board.SceneConfig{}
		}
		out.SceneState[id] = cfg
	}

	known := make(map[string]bool, len(base.Pings))
	for _, p := range base.Pings {
		known[p.ID] = true
	}
	for _, p := range local.Pings {
		if !known[p.ID] {
			out.Pings = append(out.Pings, p)
		}
	}
	return out
}

type sceneDiff[T any] struct {
	changed map[string][]T // new or modified entries per scene
	full    map[string][]T // complete local list of every touched scene
	removed bool
}

func (d sceneDiff[T]) payload(delta bool) map[string][]T {
	if delta {
		return d.changed
	}
	return d.full
}

func diffScenes[T board.Entry[T]](base, local map[string][]T, touch func(T, int64) T, ts int64) sceneDiff[T] {
	var d sceneDiff[T]
	mark := func(scene string) {
		if d.full == nil {
			d.full = map[string][]T{}
			d.changed = map[string][]T{}
		}
		if _, ok := d.full[scene]; !ok {
			d.full[scene] = []T{}
		}
	}

	for scene, entries := range local {
		prev := make(map[string]T, len(base[scene]))
		for _, e := range base[scene] {
			prev[e.Key()] = e
		}
		list := make([]T, 0, len(entries))
		dirty := false
		for _, e := range entries {
			p, existed := prev[e.Key()]
			if existed && reflect.DeepEqual(p, e) {
				list = append(list, e)
				continue
			}
			stamp := ts
			if e.Timestamp() >= stamp {
				stamp = e.Timestamp() + 1
			}
			e = touch(e, stamp)
			list = append(list, e)
			mark(scene)
			d.changed[scene] = append(d.changed[scene], e)
			dirty = true
		}
		if !sameKeys(base[scene], entries) {
			d.removed = true
			mark(scene)
			dirty = true
		}
		if dirty {
			d.full[scene] = list
		}
	}
	for scene, entries := range base {
		if _, ok := local[scene]; !ok && len(entries) > 0 {
			d.removed = true
			mark(scene)
		}
	}
	return d
}

func demoteScenes[T board.Entry[T]](scenes map[string][]T) map[string][]T {
	for scene, entries := range scenes {
		out := make([]T, len(entries))
		for i, e := range entries {
			out[i] = e.Demote()
		}
		scenes[scene] = out
	}
	return scenes
}

// sameKeys reports whether every key of base is still present in local.
func sameKeys[T board.Entry[T]](base, local []T) bool {
	have := make(map[string]bool, len(local))
	for _, e := range local {
		have[e.Key()] = true
	}
	for _, e := range base {
		if !have[e.Key()] {
			return false
		}
	}
	return true
}

func touchPlacement(p board.Placement, ts int64) board.Placement { p.LastModified = ts; return p }
func touchTemplate(t board.Template, ts int64) board.Template    { t.LastModified = ts; return t }
func touchDrawing(d board.Drawing, ts int64) board.Drawing       { d.LastModified = ts; return d }

func equalString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
