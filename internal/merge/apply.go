package merge

import (
	"time"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
	"github.com/DoyleJ11/vtt-board-sync/internal/normalize"
)

// Writer identifies the caller of a save.
type Writer struct {
	ID   string
	Role board.Role
}

// GMOnlyFields are owned exclusively by the GM.
var GMOnlyFields = []string{normalize.FieldActiveScene, normalize.FieldMapURL, normalize.FieldOverlay}

// Restrict drops the fields a player may not write and reports whether
// anything was dropped. Player scene patches keep only their combat part.
func Restrict(p normalize.Patch) (normalize.Patch, bool) {
	dropped := p.HasActiveScene || p.HasMapURL || p.Overlay != nil
	p.HasActiveScene, p.ActiveSceneID = false, nil
	p.HasMapURL, p.MapURL = false, nil
	p.Overlay = nil
	if p.SceneState != nil {
		combat := make(map[string]normalize.ScenePatch, len(p.SceneState))
		for id, sp := range p.SceneState {
			if sp.HasCombat {
				combat[id] = normalize.ScenePatch{HasCombat: true, Combat: sp.Combat}
			} else {
				dropped = true
			}
		}
		p.SceneState = combat
		if len(combat) == 0 {
			p.SceneState = nil
		}
	}
	return p, dropped
}

// Apply merges a normalized patch into current on behalf of w. GM-only
// fields are ignored for players; callers decide via Restrict whether a
// player patch should be rejected instead.
func Apply(current board.BoardState, p normalize.Patch, w Writer, now time.Time) board.BoardState {
	next := current.Clone()
	gm := w.Role.IsGM()

	if gm {
		if p.HasActiveScene {
			next.ActiveSceneID = p.ActiveSceneID
		}
		if p.HasMapURL {
			next.MapURL = p.MapURL
		}
		if p.Overlay != nil {
			next.Overlay = p.Overlay.Clone()
		}
	}

	if p.Placements != nil {
		next.Placements = mergeEntries(next.Placements, p.Placements, w, p.DeltaOnly)
	}
	if p.Templates != nil {
		next.Templates = mergeEntries(next.Templates, p.Templates, w, p.DeltaOnly)
	}
	if p.Drawings != nil {
		next.Drawings = mergeEntries(next.Drawings, p.Drawings, w, p.DeltaOnly)
	}

	for id, sp := range p.SceneState {
		existing, ok := current.SceneState[id]
		if !ok {
			existing = normalize.SceneConfig(nil)
		}
		if gm {
			cfg := sp.Config.Clone()
			cfg.Combat = ReplaceCombat(existing.Combat, cfg.Combat)
			next.SceneState[id] = cfg
			continue
		}
		if sp.HasCombat {
			cfg := existing.Clone()
			cfg.Combat = Combat(existing.Combat, sp.Combat)
			next.SceneState[id] = cfg
		}
	}

	pings := append([]board.Ping{}, current.Pings...)
	if p.HasPings {
		pings = append(pings, p.Pings...)
	}
	next.Pings = normalize.RetainPings(pings, now)

	next.Ensure()
	return next
}

// mergeEntries selects the policy for one collection kind by caller role
// and delta flag, and applies it scene by scene.
func mergeEntries[T board.Entry[T]](existing, incoming map[string][]T, w Writer, delta bool) map[string][]T {
	stamped := make(map[string][]T, len(incoming))
	for scene, entries := range incoming {
		stamped[scene] = stampAuthor(existing[scene], entries, w)
	}

	var policy Policy[T]
	switch {
	case w.Role.IsGM() && delta:
		policy = ByTimestamp[T]
	case w.Role.IsGM():
		policy = Replace[T]
	case delta:
		policy = func(e, in []T) []T { return ByTimestamp(e, Demote(in)) }
	default:
		policy = PreservingGMAuthored[T]
	}
	return Scenes(existing, stamped, policy)
}

// stampAuthor records the writer on incoming entries. Every entry a GM
// writes becomes GM-authored, whether it is new or an edit. Entries a
// player creates are attributed to that player; a player's edit of an
// existing entry keeps the stored authorship.
func stampAuthor[T board.Entry[T]](existing, incoming []T, w Writer) []T {
	known := make(map[string]bool, len(existing))
	for _, e := range existing {
		known[e.Key()] = true
	}
	gm := w.Role.IsGM()
	out := make([]T, len(incoming))
	for i, in := range incoming {
		if !gm && known[in.Key()] {
			out[i] = in
			continue
		}
		a := in.Author()
		if a.AuthorID == "" {
			a.AuthorID = w.ID
		}
		if gm {
			a.AuthorIsGM = true
			a.AuthorRole = string(board.RoleGM)
		} else if !a.GMAuthored() {
			a.AuthorRole = string(board.RolePlayer)
		}
		out[i] = in.WithAuthor(a)
	}
	return out
}
