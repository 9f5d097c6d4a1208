package normalize

import (
	"sort"
	"strconv"
	"time"

	"github.com/DoyleJ11/vtt-board-sync/internal/apperr"
	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

// Field names of the board document, as used in payloads and change lists.
const (
	FieldActiveScene = "activeSceneId"
	FieldMapURL      = "mapUrl"
	FieldPlacements  = "placements"
	FieldTemplates   = "templates"
	FieldDrawings    = "drawings"
	FieldSceneState  = "sceneState"
	FieldOverlay     = "overlay"
	FieldPings       = "pings"
)

// ScenePatch is the incoming state for one scene. Config is the full
// replacement a GM sends; Combat is the subset a player may change.
type ScenePatch struct {
	Config    board.SceneConfig
	HasCombat bool
	Combat    CombatPatch
}

// Patch is a normalized POST /state payload. Nil maps mean "not sent".
type Patch struct {
	HasActiveScene bool
	ActiveSceneID  *string
	HasMapURL      bool
	MapURL         *string
	Overlay        *board.OverlayState

	Placements map[string][]board.Placement
	Templates  map[string][]board.Template
	Drawings   map[string][]board.Drawing
	SceneState map[string]ScenePatch
	Pings      []board.Ping
	HasPings   bool

	DeltaOnly bool
	SocketID  string
	Version   *int64

	// Dropped counts entries discarded as malformed.
	Dropped int
}

// Fields lists the board fields present in the patch.
func (p Patch) Fields() []string {
	var out []string
	if p.HasActiveScene {
		out = append(out, FieldActiveScene)
	}
	if p.HasMapURL {
		out = append(out, FieldMapURL)
	}
	if p.Overlay != nil {
		out = append(out, FieldOverlay)
	}
	if p.Placements != nil {
		out = append(out, FieldPlacements)
	}
	if p.Templates != nil {
		out = append(out, FieldTemplates)
	}
	if p.Drawings != nil {
		out = append(out, FieldDrawings)
	}
	if p.SceneState != nil {
		out = append(out, FieldSceneState)
	}
	if p.HasPings {
		out = append(out, FieldPings)
	}
	return out
}

func (p Patch) Empty() bool { return len(p.Fields()) == 0 }

// ParsePatch normalizes the boardState object of a save request.
func ParsePatch(raw map[string]any, now time.Time) (Patch, error) {
	var p Patch
	if raw == nil {
		return p, apperr.Validation("boardState", "expected object")
	}

	if v, ok := raw[FieldActiveScene]; ok {
		if err := nullableString(v, FieldActiveScene); err != nil {
			return p, err
		}
		p.HasActiveScene = true
		p.ActiveSceneID = nullableText(v)
	}
	if v, ok := raw[FieldMapURL]; ok {
		if err := nullableString(v, FieldMapURL); err != nil {
			return p, err
		}
		p.HasMapURL = true
		p.MapURL = nullableText(v)
	}
	if v, ok := raw[FieldOverlay]; ok && v != nil {
		if _, isObj := object(v); !isObj {
			return p, apperr.Validation(FieldOverlay, "expected object")
		}
		o := Overlay(v)
		p.Overlay = &o
	}

	var err error
	if p.Placements, err = sceneEntries(raw, FieldPlacements, Placement, &p.Dropped); err != nil {
		return p, err
	}
	if p.Templates, err = sceneEntries(raw, FieldTemplates, Template, &p.Dropped); err != nil {
		return p, err
	}
	if p.Drawings, err = sceneEntries(raw, FieldDrawings, Drawing, &p.Dropped); err != nil {
		return p, err
	}

	if v, ok := raw[FieldSceneState]; ok && v != nil {
		scenes, isObj := object(v)
		if !isObj {
			return p, apperr.Validation(FieldSceneState, "expected object keyed by scene id")
		}
		p.SceneState = make(map[string]ScenePatch, len(scenes))
		for _, id := range sceneKeys(scenes) {
			scene, isObj := object(scenes[id])
			if !isObj || id == "" {
				p.Dropped++
				continue
			}
			sp := ScenePatch{Config: SceneConfig(scene)}
			if combat, isObj := object(scene["combat"]); isObj {
				sp.HasCombat = true
				sp.Combat = CombatPatchFrom(combat)
			}
			p.SceneState[id] = sp
		}
	}

	if v, ok := raw[FieldPings]; ok && v != nil {
		items, isList := list(v)
		if !isList {
			return p, apperr.Validation(FieldPings, "expected list")
		}
		p.HasPings = true
		p.Pings = make([]board.Ping, 0, len(items))
		for _, item := range items {
			ping, ok := Ping(item, now)
			if !ok {
				p.Dropped++
				continue
			}
			p.Pings = append(p.Pings, ping)
		}
		p.Pings = RetainPings(p.Pings, now)
	}

	if v, ok := raw["_deltaOnly"]; ok {
		p.DeltaOnly, _ = Truthy(v)
	}
	p.SocketID = textOf(raw, "_socketId")
	if v, ok := lookup(raw, "_version"); ok {
		if f, ok := number(v); ok {
			n := int64(f)
			p.Version = &n
		}
	}
	return p, nil
}

func nullableString(v any, field string) error {
	switch v.(type) {
	case nil, string, float64:
		return nil
	}
	return apperr.Validation(field, "expected string or null")
}

// sceneEntries normalizes a map of scene id to entry list. A scene value
// that arrives as an object keyed by index is read in key order.
func sceneEntries[T any](raw map[string]any, field string, norm func(any) (T, bool), dropped *int) (map[string][]T, error) {
	v, ok := raw[field]
	if !ok || v == nil {
		return nil, nil
	}
	scenes, isObj := object(v)
	if !isObj {
		return nil, apperr.Validation(field, "expected object keyed by scene id")
	}
	out := make(map[string][]T, len(scenes))
	for _, sceneID := range sceneKeys(scenes) {
		items, err := entryList(scenes[sceneID])
		if err != nil {
			return nil, apperr.Validation(field+"."+sceneID, err.Error())
		}
		seen := make(map[string]int, len(items))
		entries := make([]T, 0, len(items))
		for _, item := range items {
			e, ok := norm(item)
			if !ok {
				*dropped++
				continue
			}
			if key, ok := any(e).(interface{ Key() string }); ok {
				if idx, dup := seen[key.Key()]; dup {
					entries[idx] = e
					*dropped++
					continue
				}
				seen[key.Key()] = len(entries)
			}
			entries = append(entries, e)
		}
		out[sceneID] = entries
	}
	return out, nil
}

type shapeError string

func (e shapeError) Error() string { return string(e) }

func entryList(v any) ([]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return t, nil
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			if _, err := strconv.Atoi(k); err != nil {
				return nil, shapeError("expected list")
			}
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool {
			a, _ := strconv.Atoi(keys[i])
			b, _ := strconv.Atoi(keys[j])
			return a < b
		})
		out := make([]any, 0, len(keys))
		for _, k := range keys {
			out = append(out, t[k])
		}
		return out, nil
	}
	return nil, shapeError("expected list")
}
