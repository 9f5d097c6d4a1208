package normalize

import (
	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

// CombatPatch carries the combat fields present in an incoming payload,
// already clamped. Absent fields are nil and leave the target untouched.
type CombatPatch struct {
	Active            *bool
	Round             *int
	ActiveCombatantID *string
	Completed         *[]string
	StartingTeam      *board.Team
	CurrentTeam       *board.Team
	LastTeam          *board.Team
	TurnPhase         *board.TurnPhase
	RoundTurnCount    *int
	Malice            *int
	Sequence          *int64
	UpdatedAt         *int64
	// A present-but-null lock, effect or group list is recorded with the
	// Has flag set and a nil value.
	HasTurnLock   bool
	TurnLock      *board.TurnLock
	HasLastEffect bool
	LastEffect    *board.TurnEffect
	HasGroups     bool
	Groups        []board.CombatGroup
}

// Empty reports whether the patch sets nothing.
func (p CombatPatch) Empty() bool {
	return p.Active == nil && p.Round == nil && p.ActiveCombatantID == nil &&
		p.Completed == nil && p.StartingTeam == nil && p.CurrentTeam == nil &&
		p.LastTeam == nil && p.TurnPhase == nil && p.RoundTurnCount == nil &&
		p.Malice == nil && p.Sequence == nil && p.UpdatedAt == nil &&
		!p.HasTurnLock && !p.HasLastEffect && !p.HasGroups
}

func present(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return nil, false
}

// CombatPatchFrom extracts a combat patch from a raw combat object.
func CombatPatchFrom(raw map[string]any) CombatPatch {
	var p CombatPatch
	if raw == nil {
		return p
	}
	if v, ok := present(raw, "active"); ok {
		if b, ok := Truthy(v); ok {
			p.Active = &b
		}
	}
	if _, ok := present(raw, "round"); ok {
		n := intOf(raw, 0, 0, 1<<30, "round")
		p.Round = &n
	}
	if v, ok := present(raw, "activeCombatantId", "activeTokenId"); ok {
		s, _ := text(v)
		p.ActiveCombatantID = &s
	}
	if v, ok := present(raw, "completedCombatantIds", "completedIds"); ok {
		ids := idSet(v)
		p.Completed = &ids
	}
	if v, ok := present(raw, "startingTeam", "firstTeam"); ok {
		t := teamValue(v)
		p.StartingTeam = &t
	}
	if v, ok := present(raw, "currentTeam", "activeTeam"); ok {
		t := teamValue(v)
		p.CurrentTeam = &t
	}
	if v, ok := present(raw, "lastTeam", "previousTeam"); ok {
		t := teamValue(v)
		p.LastTeam = &t
	}
	if s := fold(textOf(raw, "turnPhase")); s != "" {
		switch ph := board.TurnPhase(s); ph {
		case board.PhaseIdle, board.PhasePick, board.PhaseActive:
			p.TurnPhase = &ph
		}
	}
	if _, ok := present(raw, "roundTurnCount"); ok {
		n := intOf(raw, 0, 0, 1<<30, "roundTurnCount")
		p.RoundTurnCount = &n
	}
	if _, ok := present(raw, "malice"); ok {
		n := intOf(raw, 0, 0, 1<<30, "malice")
		p.Malice = &n
	}
	if _, ok := present(raw, "sequence"); ok {
		n := nonNegative(raw, "sequence")
		p.Sequence = &n
	}
	if _, ok := present(raw, "updatedAt"); ok {
		n := nonNegative(raw, "updatedAt")
		p.UpdatedAt = &n
	}
	if v, ok := present(raw, "turnLock", "lock"); ok {
		p.HasTurnLock = true
		p.TurnLock = turnLock(v)
	}
	if v, ok := present(raw, "lastEffect", "turnEffect"); ok {
		p.HasLastEffect = true
		p.LastEffect = turnEffect(v)
	}
	if v, ok := present(raw, "groups", "combatGroups"); ok {
		p.HasGroups = true
		p.Groups = combatGroups(v)
	}
	return p
}

// Apply overlays the patch onto c and re-derives the turn phase unless the
// patch set one explicitly.
func (p CombatPatch) Apply(c board.CombatState) board.CombatState {
	c = c.Clone()
	if p.Active != nil {
		c.Active = *p.Active
	}
	if p.Round != nil {
		c.Round = *p.Round
	}
	if p.ActiveCombatantID != nil {
		c.ActiveCombatantID = *p.ActiveCombatantID
	}
	if p.Completed != nil {
		c.CompletedCombatantIDs = append([]string{}, (*p.Completed)...)
	}
	if p.StartingTeam != nil {
		c.StartingTeam = *p.StartingTeam
	}
	if p.CurrentTeam != nil {
		c.CurrentTeam = *p.CurrentTeam
	}
	if p.LastTeam != nil {
		c.LastTeam = *p.LastTeam
	}
	if p.RoundTurnCount != nil {
		c.RoundTurnCount = *p.RoundTurnCount
	}
	if p.Malice != nil {
		c.Malice = *p.Malice
	}
	if p.Sequence != nil {
		c.Sequence = *p.Sequence
	}
	if p.UpdatedAt != nil {
		c.UpdatedAt = *p.UpdatedAt
	}
	if p.HasTurnLock {
		c.TurnLock = p.TurnLock
	}
	if p.HasLastEffect {
		c.LastEffect = p.LastEffect
	}
	if p.HasGroups {
		c.Groups = p.Groups
	}
	if p.TurnPhase != nil {
		c.TurnPhase = *p.TurnPhase
	} else {
		c.TurnPhase = c.DerivePhase()
	}
	if c.CompletedCombatantIDs == nil {
		c.CompletedCombatantIDs = []string{}
	}
	if c.Groups == nil {
		c.Groups = []board.CombatGroup{}
	}
	return c
}

// idSet reads a list of ids, or an object whose truthy keys are ids, and
// removes duplicates.
func idSet(v any) []string {
	out := []string{}
	seen := map[string]bool{}
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if s, ok := text(item); ok {
				add(s)
			}
		}
	case map[string]any:
		for _, k := range sceneKeys(t) {
			if b, ok := Truthy(t[k]); ok && b {
				add(k)
			}
		}
	}
	return out
}

func turnLock(v any) *board.TurnLock {
	raw, ok := object(v)
	if !ok {
		return nil
	}
	holder := textOf(raw, "holderId", "holder", "userId")
	if holder == "" {
		return nil
	}
	return &board.TurnLock{
		HolderID:    holder,
		HolderName:  textOf(raw, "holderName", "name"),
		CombatantID: textOf(raw, "combatantId"),
		LockedAt:    nonNegative(raw, "lockedAt", "timestamp"),
	}
}

func turnEffect(v any) *board.TurnEffect {
	raw, ok := object(v)
	if !ok {
		return nil
	}
	kind := textOf(raw, "type")
	if kind == "" {
		return nil
	}
	return &board.TurnEffect{
		Type:        kind,
		CombatantID: textOf(raw, "combatantId"),
		TriggeredAt: nonNegative(raw, "triggeredAt", "timestamp"),
		InitiatorID: textOf(raw, "initiatorId", "initiator"),
	}
}

// combatGroups keeps groups that link at least two distinct combatants;
// the representative is always one of the members.
func combatGroups(v any) []board.CombatGroup {
	items, _ := list(v)
	out := []board.CombatGroup{}
	for _, item := range items {
		raw, ok := object(item)
		if !ok {
			continue
		}
		rep := textOf(raw, "representativeId")
		members := idSet(raw["memberIds"])
		if rep == "" && len(members) > 0 {
			rep = members[0]
		}
		if rep == "" {
			continue
		}
		hasRep := false
		for _, m := range members {
			if m == rep {
				hasRep = true
				break
			}
		}
		if !hasRep {
			members = append([]string{rep}, members...)
		}
		if len(members) < 2 {
			continue
		}
		out = append(out, board.CombatGroup{RepresentativeID: rep, MemberIDs: members})
	}
	return out
}
