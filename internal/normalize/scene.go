package normalize

import (
	"sort"
	"strconv"
	"strings"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

const (
	gridSizeMin = 8
	gridSizeMax = 320
	gridSizeDef = 64
)

func Grid(v any) board.Grid {
	raw, _ := object(v)
	return board.Grid{
		Size:    intOf(raw, gridSizeDef, gridSizeMin, gridSizeMax, "size"),
		Locked:  boolOf(raw, false, "locked"),
		Visible: boolOf(raw, true, "visible"),
	}
}

// SceneConfig canonicalizes the full configuration of one scene.
func SceneConfig(v any) board.SceneConfig {
	raw, _ := object(v)
	cfg := board.SceneConfig{
		Grid:     Grid(raw["grid"]),
		Overlay:  Mask(raw["overlay"]),
		FogOfWar: FogOfWar(raw["fogOfWar"]),
	}
	combat, _ := object(raw["combat"])
	cfg.Combat = CombatPatchFrom(combat).Apply(board.CombatState{})
	return cfg
}

// FogOfWar canonicalizes fog settings. RevealedCells is always a non-nil
// set, so it encodes as an object even when nothing is revealed.
func FogOfWar(v any) board.FogOfWar {
	raw, _ := object(v)
	return board.FogOfWar{
		Enabled:       boolOf(raw, false, "enabled"),
		RevealedCells: CellSet(raw["revealedCells"]),
	}
}

// CellSet accepts an object keyed "col,row", a list of such keys, or a list
// of {column,row} points. Keys that are not a pair of non-negative integers
// are dropped, so an array-coerced map ("0", "1", ...) yields an empty set.
func CellSet(v any) board.CellSet {
	out := board.CellSet{}
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if b, ok := Truthy(val); !ok || !b {
				continue
			}
			if key, ok := cellKey(k); ok {
				out[key] = true
			}
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				if key, ok := cellKey(s); ok {
					out[key] = true
				}
				continue
			}
			if p, ok := gridPoint(item); ok && p.Column >= 0 && p.Row >= 0 {
				out[board.CellKey(int(p.Column), int(p.Row))] = true
			}
		}
	}
	return out
}

func cellKey(s string) (string, bool) {
	col, row, ok := strings.Cut(strings.TrimSpace(s), ",")
	if !ok {
		return "", false
	}
	c, err := strconv.Atoi(strings.TrimSpace(col))
	if err != nil || c < 0 {
		return "", false
	}
	r, err := strconv.Atoi(strings.TrimSpace(row))
	if err != nil || r < 0 {
		return "", false
	}
	return board.CellKey(c, r), true
}

// Overlay canonicalizes the overlay stack. A legacy single-mask overlay
// without layers becomes one layer.
func Overlay(v any) board.OverlayState {
	raw, _ := object(v)
	o := board.OverlayState{Layers: []board.OverlayLayer{}}
	if raw == nil {
		return o
	}
	o.MapURL = nullableText(raw["mapUrl"])

	layers, hasLayers := list(raw["layers"])
	if !hasLayers {
		if _, ok := object(raw["mask"]); ok {
			layers = []any{map[string]any{"id": "layer-1", "name": "Overlay", "visible": true, "mapUrl": raw["mapUrl"], "mask": raw["mask"]}}
		}
	}
	seen := map[string]bool{}
	for i, item := range layers {
		lr, ok := object(item)
		if !ok {
			continue
		}
		id := textOf(lr, "id")
		if id == "" {
			id = "layer-" + strconv.Itoa(i+1)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		name := textOf(lr, "name")
		if name == "" {
			name = "Layer " + strconv.Itoa(len(o.Layers)+1)
		}
		o.Layers = append(o.Layers, board.OverlayLayer{
			ID:      id,
			Name:    name,
			Visible: boolOf(lr, true, "visible"),
			MapURL:  nullableText(lr["mapUrl"]),
			Mask:    Mask(lr["mask"]),
		})
	}

	active := textOf(raw, "activeLayerId")
	if !seen[active] {
		active = ""
		if len(o.Layers) > 0 {
			active = o.Layers[0].ID
		}
	}
	o.ActiveLayerID = active
	return o
}

// sceneKeys returns map keys in sorted order for deterministic output.
func sceneKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
