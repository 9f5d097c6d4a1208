package board

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

type Grid struct {
	Size    int  `json:"size"`
	Locked  bool `json:"locked"`
	Visible bool `json:"visible"`
}

// SceneConfig is per-scene board configuration.
type SceneConfig struct {
	Grid     Grid        `json:"grid"`
	Overlay  Mask        `json:"overlay"`
	Combat   CombatState `json:"combat"`
	FogOfWar FogOfWar    `json:"fogOfWar"`
}

func (s *SceneConfig) ensure() {
	if s.Overlay.Polygons == nil {
		s.Overlay.Polygons = []Polygon{}
	}
	if s.FogOfWar.RevealedCells == nil {
		s.FogOfWar.RevealedCells = CellSet{}
	}
	if s.Combat.CompletedCombatantIDs == nil {
		s.Combat.CompletedCombatantIDs = []string{}
	}
	if s.Combat.Groups == nil {
		s.Combat.Groups = []CombatGroup{}
	}
}

func (s SceneConfig) Clone() SceneConfig {
	s.Overlay = s.Overlay.Clone()
	s.Combat = s.Combat.Clone()
	s.FogOfWar.RevealedCells = s.FogOfWar.RevealedCells.Clone()
	s.ensure()
	return s
}

type FogOfWar struct {
	Enabled       bool    `json:"enabled"`
	RevealedCells CellSet `json:"revealedCells"`
}

// CellSet is a sparse set of grid cells keyed "col,row". It always encodes
// as a JSON object, including when empty.
type CellSet map[string]bool

// CellKey formats a grid cell as a CellSet key.
func CellKey(column, row int) string { return fmt.Sprintf("%d,%d", column, row) }

func (c CellSet) MarshalJSON() ([]byte, error) {
	if len(c) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]bool(c))
}

// UnmarshalJSON accepts the object form and, for documents written by older
// clients, a list of keys. An empty list decodes to an empty set.
func (c *CellSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	out := CellSet{}
	switch {
	case bytes.Equal(data, []byte("null")):
	case len(data) > 0 && data[0] == '[':
		var keys []string
		if err := json.Unmarshal(data, &keys); err != nil {
			return fmt.Errorf("revealedCells: %w", err)
		}
		for _, k := range keys {
			if strings.Contains(k, ",") {
				out[k] = true
			}
		}
	default:
		var m map[string]bool
		if err := json.Unmarshal(data, &m); err != nil {
			return fmt.Errorf("revealedCells: %w", err)
		}
		for k, v := range m {
			if v {
				out[k] = true
			}
		}
	}
	*c = out
	return nil
}

func (c CellSet) Clone() CellSet {
	out := make(CellSet, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Keys returns the revealed cell keys in sorted order.
func (c CellSet) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type TurnPhase string

const (
	PhaseIdle   TurnPhase = "idle"
	PhasePick   TurnPhase = "pick"
	PhaseActive TurnPhase = "active"
)

// TurnLock is a short-lived claim on "who picks next".
type TurnLock struct {
	HolderID    string `json:"holderId"`
	HolderName  string `json:"holderName,omitempty"`
	CombatantID string `json:"combatantId,omitempty"`
	LockedAt    int64  `json:"lockedAt"`
}

// CombatGroup links combatants that take their turn together.
type CombatGroup struct {
	RepresentativeID string   `json:"representativeId"`
	MemberIDs        []string `json:"memberIds"`
}

// TurnEffect is a one-shot presentation event such as a forced-turn banner.
type TurnEffect struct {
	Type        string `json:"type"`
	CombatantID string `json:"combatantId,omitempty"`
	TriggeredAt int64  `json:"triggeredAt"`
	InitiatorID string `json:"initiatorId,omitempty"`
}

type CombatState struct {
	Active                bool          `json:"active"`
	Round                 int           `json:"round"`
	ActiveCombatantID     string        `json:"activeCombatantId"`
	CompletedCombatantIDs []string      `json:"completedCombatantIds"`
	StartingTeam          Team          `json:"startingTeam"`
	CurrentTeam           Team          `json:"currentTeam"`
	LastTeam              Team          `json:"lastTeam"`
	TurnPhase             TurnPhase     `json:"turnPhase"`
	RoundTurnCount        int           `json:"roundTurnCount"`
	Malice                int           `json:"malice"`
	Sequence              int64         `json:"sequence"`
	TurnLock              *TurnLock     `json:"turnLock"`
	Groups                []CombatGroup `json:"groups"`
	LastEffect            *TurnEffect   `json:"lastEffect"`
	UpdatedAt             int64         `json:"updatedAt"`
}

// DerivePhase reports the turn phase implied by Active and ActiveCombatantID.
func (c CombatState) DerivePhase() TurnPhase {
	switch {
	case !c.Active:
		return PhaseIdle
	case c.ActiveCombatantID != "":
		return PhaseActive
	default:
		return PhasePick
	}
}

func (c CombatState) Clone() CombatState {
	c.CompletedCombatantIDs = append([]string{}, c.CompletedCombatantIDs...)
	if c.TurnLock != nil {
		lock := *c.TurnLock
		c.TurnLock = &lock
	}
	if c.LastEffect != nil {
		effect := *c.LastEffect
		c.LastEffect = &effect
	}
	groups := make([]CombatGroup, len(c.Groups))
	for i, g := range c.Groups {
		groups[i] = CombatGroup{
			RepresentativeID: g.RepresentativeID,
			MemberIDs:        append([]string(nil), g.MemberIDs...),
		}
	}
	c.Groups = groups
	return c
}
