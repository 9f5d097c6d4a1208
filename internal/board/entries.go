package board

import (
	"bytes"
	"encoding/json"
)

// Entry is an id-keyed, timestamped collection member that the merge
// policies can operate on.
type Entry[T any] interface {
	Key() string
	Timestamp() int64
	GMAuthored() bool
	// Protect reasserts the GM-owned fields of from onto the receiver.
	Protect(from T) T
	// Demote clears any GM claim carried by the receiver.
	Demote() T
	Author() Authorship
	WithAuthor(a Authorship) T
}

// Team is a combat side. The zero value encodes as null.
type Team string

const (
	TeamNone  Team = ""
	TeamAlly  Team = "ally"
	TeamEnemy Team = "enemy"
)

func (t Team) MarshalJSON() ([]byte, error) {
	if t == TeamNone {
		return []byte("null"), nil
	}
	return json.Marshal(string(t))
}

func (t *Team) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = TeamNone
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Team(s) {
	case TeamAlly, TeamEnemy:
		*t = Team(s)
	default:
		*t = TeamNone
	}
	return nil
}

type Aura struct {
	Enabled bool   `json:"enabled"`
	Radius  int    `json:"radius"`
	Color   string `json:"color,omitempty"`
}

// Placement is a token positioned on a scene grid.
type Placement struct {
	ID           string         `json:"id"`
	TokenID      string         `json:"tokenId,omitempty"`
	Name         string         `json:"name,omitempty"`
	ImageURL     string         `json:"imageUrl,omitempty"`
	Column       int            `json:"column"`
	Row          int            `json:"row"`
	Width        int            `json:"width"`
	Height       int            `json:"height"`
	SizeOverride string         `json:"sizeOverride,omitempty"`
	Aura         *Aura          `json:"aura,omitempty"`
	Hidden       bool           `json:"hidden"`
	CombatTeam   Team           `json:"combatTeam"`
	Stamina      *int           `json:"stamina,omitempty"`
	StaminaMax   *int           `json:"staminaMax,omitempty"`
	Monster      map[string]any `json:"monster,omitempty"`
	MonsterID    string         `json:"monsterId,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	LastModified int64          `json:"_lastModified"`
	Authorship
}

func (p Placement) Key() string                       { return p.ID }
func (p Placement) Timestamp() int64                  { return p.LastModified }
func (p Placement) Author() Authorship                { return p.Authorship }
func (p Placement) WithAuthor(a Authorship) Placement { p.Authorship = a; return p }

func (p Placement) Protect(from Placement) Placement {
	p.Authorship = from.Authorship
	p.Hidden = from.Hidden
	if p.Monster == nil && p.MonsterID == "" {
		p.Monster = cloneAny(from.Monster)
		p.MonsterID = from.MonsterID
	}
	return p
}

func (p Placement) Demote() Placement {
	p.AuthorIsGM = false
	if p.AuthorRole == string(RoleGM) {
		p.AuthorRole = ""
	}
	return p
}

func (p Placement) Clone() Placement {
	if p.Aura != nil {
		aura := *p.Aura
		p.Aura = &aura
	}
	if p.Stamina != nil {
		v := *p.Stamina
		p.Stamina = &v
	}
	if p.StaminaMax != nil {
		v := *p.StaminaMax
		p.StaminaMax = &v
	}
	p.Monster = cloneAny(p.Monster)
	p.Metadata = cloneAny(p.Metadata)
	return p
}

// DrawPoint is a freehand ink vertex in fractional grid units.
type DrawPoint struct {
	Column float64 `json:"column"`
	Row    float64 `json:"row"`
}

type Drawing struct {
	ID           string      `json:"id"`
	Points       []DrawPoint `json:"points"`
	Color        string      `json:"color"`
	StrokeWidth  float64     `json:"strokeWidth"`
	LastModified int64       `json:"_lastModified"`
	Authorship
}

func (d Drawing) Key() string                     { return d.ID }
func (d Drawing) Timestamp() int64                { return d.LastModified }
func (d Drawing) Author() Authorship              { return d.Authorship }
func (d Drawing) WithAuthor(a Authorship) Drawing { d.Authorship = a; return d }

func (d Drawing) Protect(from Drawing) Drawing {
	d.Authorship = from.Authorship
	return d
}

func (d Drawing) Demote() Drawing {
	d.AuthorIsGM = false
	if d.AuthorRole == string(RoleGM) {
		d.AuthorRole = ""
	}
	return d
}

func (d Drawing) Clone() Drawing {
	d.Points = append([]DrawPoint(nil), d.Points...)
	return d
}

type PingKind string

const (
	PingPoint PingKind = "ping"
	PingFocus PingKind = "focus"
)

// Ping is a short-lived point of interest in normalized scene coordinates.
type Ping struct {
	ID        string   `json:"id"`
	SceneID   string   `json:"sceneId"`
	X         float64  `json:"x"`
	Y         float64  `json:"y"`
	Type      PingKind `json:"type"`
	CreatedAt int64    `json:"createdAt"`
	AuthorID  string   `json:"authorId,omitempty"`
}
