package normalize

import (
	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

const (
	auraRadiusMin = 1
	auraRadiusMax = 20
	// gridCoordMax keeps coordinates far from integer overflow.
	gridCoordMax = 100000
	footprintMax = 100
)

// Team resolves a combat team from combatTeam or team, case-insensitively.
func Team(raw map[string]any) board.Team {
	v, ok := lookup(raw, "combatTeam", "team")
	if !ok {
		return board.TeamNone
	}
	return teamValue(v)
}

func teamValue(v any) board.Team {
	s, ok := v.(string)
	if !ok {
		return board.TeamNone
	}
	switch t := board.Team(fold(s)); t {
	case board.TeamAlly, board.TeamEnemy:
		return t
	}
	return board.TeamNone
}

// Placement canonicalizes one raw token placement. ok is false when the
// entry has no stable id.
func Placement(v any) (board.Placement, bool) {
	raw, ok := object(v)
	if !ok {
		return board.Placement{}, false
	}
	id := textOf(raw, "id")
	if id == "" {
		return board.Placement{}, false
	}

	p := board.Placement{
		ID:           id,
		TokenID:      textOf(raw, "tokenId"),
		Name:         textOf(raw, "name"),
		ImageURL:     textOf(raw, "imageUrl"),
		Column:       intOf(raw, 0, 0, gridCoordMax, "column", "col"),
		Row:          intOf(raw, 0, 0, gridCoordMax, "row"),
		Width:        intOf(raw, 1, 1, footprintMax, "width"),
		Height:       intOf(raw, 1, 1, footprintMax, "height"),
		SizeOverride: textOf(raw, "sizeOverride", "size"),
		Hidden:       Hidden(raw),
		CombatTeam:   Team(raw),
		Stamina:      optionalInt(raw, "stamina", "currentStamina", "hp"),
		StaminaMax:   optionalInt(raw, "staminaMax", "maxStamina", "hpMax"),
		LastModified: Timestamp(raw),
		Authorship:   authorship(raw),
	}
	if aura, ok := object(raw["aura"]); ok {
		p.Aura = &board.Aura{
			Enabled: boolOf(aura, false, "enabled"),
			Radius:  intOf(aura, auraRadiusMin, auraRadiusMin, auraRadiusMax, "radius"),
			Color:   textOf(aura, "color"),
		}
	}

	meta, _ := object(raw["metadata"])
	if m, ok := object(raw["monster"]); ok {
		p.Monster = cloneMap(m)
	} else if m, ok := object(meta["monster"]); ok {
		p.Monster = cloneMap(m)
	}
	p.MonsterID = textOf(raw, "monsterId")
	if p.MonsterID == "" && meta != nil {
		p.MonsterID = textOf(meta, "monsterId")
	}
	if len(meta) > 0 {
		p.Metadata = cloneMap(meta)
		delete(p.Metadata, "monster")
		delete(p.Metadata, "monsterId")
		stripMarkers(p.Metadata)
		if len(p.Metadata) == 0 {
			p.Metadata = nil
		}
	}
	return p, true
}

func optionalInt(raw map[string]any, keys ...string) *int {
	v, ok := lookup(raw, keys...)
	if !ok {
		return nil
	}
	f, ok := number(v)
	if !ok {
		return nil
	}
	n := int(f)
	return &n
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
