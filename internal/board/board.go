// Package board holds the canonical shape of a shared tabletop board.
//
// Every value in this package is already normalized: aliases have been
// resolved, numbers clamped and malformed entries dropped. Raw client
// payloads go through package normalize before they reach these types.
package board

// Role identifies who authored a write.
type Role string

const (
	RoleGM     Role = "gm"
	RolePlayer Role = "player"
)

func (r Role) IsGM() bool { return r == RoleGM }

// Authorship records who created or last modified an entry. Once
// AuthorIsGM is set it can only be cleared by another GM write.
type Authorship struct {
	AuthorIsGM bool   `json:"authorIsGm,omitempty"`
	AuthorRole string `json:"authorRole,omitempty"`
	AuthorID   string `json:"authorId,omitempty"`
}

func (a Authorship) GMAuthored() bool { return a.AuthorIsGM || a.AuthorRole == string(RoleGM) }

type BoardState struct {
	ActiveSceneID *string                `json:"activeSceneId"`
	MapURL        *string                `json:"mapUrl"`
	Placements    map[string][]Placement `json:"placements"`
	Templates     map[string][]Template  `json:"templates"`
	Drawings      map[string][]Drawing   `json:"drawings"`
	SceneState    map[string]SceneConfig `json:"sceneState"`
	Overlay       OverlayState           `json:"overlay"`
	Pings         []Ping                 `json:"pings"`
	Metadata      Metadata               `json:"metadata"`
}

// Metadata describes the last write applied to the document.
type Metadata struct {
	UpdatedBy  string `json:"updatedBy,omitempty"`
	AuthorRole Role   `json:"authorRole,omitempty"`
	UpdatedAt  int64  `json:"updatedAt"`
	Signature  string `json:"signature,omitempty"`
}

// Empty returns a board with every collection allocated so that it encodes
// as objects and lists rather than null.
func Empty() BoardState {
	return BoardState{
		Placements: map[string][]Placement{},
		Templates:  map[string][]Template{},
		Drawings:   map[string][]Drawing{},
		SceneState: map[string]SceneConfig{},
		Overlay:    OverlayState{Layers: []OverlayLayer{}},
		Pings:      []Ping{},
	}
}

// Ensure allocates any nil collection in place.
func (b *BoardState) Ensure() {
	if b.Placements == nil {
		b.Placements = map[string][]Placement{}
	}
	if b.Templates == nil {
		b.Templates = map[string][]Template{}
	}
	if b.Drawings == nil {
		b.Drawings = map[string][]Drawing{}
	}
	if b.SceneState == nil {
		b.SceneState = map[string]SceneConfig{}
	}
	if b.Overlay.Layers == nil {
		b.Overlay.Layers = []OverlayLayer{}
	}
	if b.Pings == nil {
		b.Pings = []Ping{}
	}
	for id, scene := range b.SceneState {
		scene.ensure()
		b.SceneState[id] = scene
	}
}

// Clone returns a copy that shares no slices or maps with b.
func (b BoardState) Clone() BoardState {
	out := b
	out.ActiveSceneID = cloneString(b.ActiveSceneID)
	out.MapURL = cloneString(b.MapURL)
	out.Placements = cloneScenes(b.Placements, Placement.Clone)
	out.Templates = cloneScenes(b.Templates, Template.Clone)
	out.Drawings = cloneScenes(b.Drawings, Drawing.Clone)
	out.SceneState = make(map[string]SceneConfig, len(b.SceneState))
	for id, scene := range b.SceneState {
		out.SceneState[id] = scene.Clone()
	}
	out.Overlay = b.Overlay.Clone()
	out.Pings = append([]Ping{}, b.Pings...)
	out.Ensure()
	return out
}

func cloneScenes[T any](in map[string][]T, cloneEntry func(T) T) map[string][]T {
	out := make(map[string][]T, len(in))
	for scene, entries := range in {
		list := make([]T, len(entries))
		for i, e := range entries {
			list[i] = cloneEntry(e)
		}
		out[scene] = list
	}
	return out
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneAny(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneAny(t)
	case []any:
		list := make([]any, len(t))
		for i, item := range t {
			list[i] = cloneValue(item)
		}
		return list
	default:
		return v
	}
}
