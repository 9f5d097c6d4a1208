package merge

import (
	"github.com/DoyleJ11/vtt-board-sync/internal/board"
	"github.com/DoyleJ11/vtt-board-sync/internal/normalize"
)

// Combat overlays the fields present in patch onto existing. A patch whose
// sequence is behind the stored one describes a turn event that has already
// been superseded and is ignored as a whole.
func Combat(existing board.CombatState, patch normalize.CombatPatch) board.CombatState {
	if patch.Empty() {
		return existing.Clone()
	}
	if patch.Sequence != nil && *patch.Sequence < existing.Sequence {
		return existing.Clone()
	}
	return patch.Apply(existing)
}

// ReplaceCombat is the GM full-replace counterpart of Combat: incoming wins
// unless its sequence is behind the stored one.
func ReplaceCombat(existing, incoming board.CombatState) board.CombatState {
	if incoming.Sequence < existing.Sequence {
		return existing.Clone()
	}
	return incoming.Clone()
}
