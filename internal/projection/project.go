// Package projection derives what a viewer is allowed to see of a board.
//
// It is the only boundary between the GM's document and a player's
// browser: every response, push event and snapshot a player can receive
// passes through View or Placements.
package projection

import "github.com/DoyleJ11/vtt-board-sync/internal/board"

// privilegedKeys are stat-block fields only the GM and allies may see.
var privilegedKeys = []string{"monster", "monsterId"}

// View returns the board as seen by the viewer. GM viewers get the input
// unchanged; players get a copy without hidden placements and without
// stat blocks on non-ally placements.
func View(b board.BoardState, viewerIsGM bool) board.BoardState {
	if viewerIsGM {
		return b
	}
	out := b.Clone()
	out.Placements = Placements(out.Placements)
	return out
}

// Placements projects a scene-keyed placement map for a player.
func Placements(scenes map[string][]board.Placement) map[string][]board.Placement {
	out := make(map[string][]board.Placement, len(scenes))
	for scene, entries := range scenes {
		visible := make([]board.Placement, 0, len(entries))
		for _, p := range entries {
			if p.Hidden {
				continue
			}
			visible = append(visible, strip(p.Clone()))
		}
		out[scene] = visible
	}
	return out
}

func strip(p board.Placement) board.Placement {
	if p.CombatTeam == board.TeamAlly {
		return p
	}
	p.Monster = nil
	p.MonsterID = ""
	for _, k := range privilegedKeys {
		delete(p.Metadata, k)
	}
	return p
}
