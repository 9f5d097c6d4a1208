// Package broadcast pushes change notifications to connected clients.
//
// Push is best effort. Clients poll GET /state as the source of truth, so
// nothing in here may fail or block a write.
package broadcast

import (
	"context"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
	"github.com/DoyleJ11/vtt-board-sync/internal/projection"
)

// Delta carries the post-merge value of each changed field, restricted to
// the scenes the write touched.
type Delta struct {
	ActiveSceneID *string                      `json:"activeSceneId,omitempty"`
	MapURL        *string                      `json:"mapUrl,omitempty"`
	Placements    map[string][]board.Placement `json:"placements,omitempty"`
	Templates     map[string][]board.Template  `json:"templates,omitempty"`
	Drawings      map[string][]board.Drawing   `json:"drawings,omitempty"`
	SceneState    map[string]board.SceneConfig `json:"sceneState,omitempty"`
	Overlay       *board.OverlayState          `json:"overlay,omitempty"`
	Pings         []board.Ping                 `json:"pings,omitempty"`
}

// Event is one applied write.
type Event struct {
	Channel       string     `json:"-"`
	Version       int64      `json:"version"`
	Timestamp     int64      `json:"timestamp"`
	AuthorID      string     `json:"authorId"`
	AuthorRole    board.Role `json:"authorRole"`
	SocketID      string     `json:"socketId,omitempty"`
	ChangedFields []string   `json:"changedFields"`
	Delta
}

// ForViewer returns the event as a viewer of the given role may see it.
func (e Event) ForViewer(isGM bool) Event {
	if isGM || e.Placements == nil {
		return e
	}
	e.Placements = projection.Placements(e.Placements)
	return e
}

// Publisher delivers events. Implementations must honour ctx.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
