// Package types holds the wire shapes shared by the board server and its
// clients.
package types

import (
	"encoding/json"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

// Envelope wraps every HTTP response.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// VersionedState is a board document plus the store version it was read at.
// FullSync marks a complete snapshot: entries absent from it are gone.
type VersionedState struct {
	board.BoardState
	Version  int64 `json:"_version"`
	FullSync bool  `json:"_fullSync,omitempty"`
}

// PushInfo tells clients where to subscribe for change events.
type PushInfo struct {
	Enabled bool   `json:"enabled"`
	Channel string `json:"channel,omitempty"`
	Path    string `json:"path,omitempty"`
}

// StateResponse is the data of GET /state.
type StateResponse struct {
	Scenes     json.RawMessage `json:"scenes"`
	Tokens     json.RawMessage `json:"tokens"`
	BoardState VersionedState  `json:"boardState"`
	Pusher     PushInfo        `json:"pusher"`
}

// OutgoingBoard is the boardState a client sends to POST /state. Only the
// fields set are written; collections carry just the scenes that changed.
type OutgoingBoard struct {
	ActiveSceneID *string                      `json:"activeSceneId,omitempty"`
	MapURL        *string                      `json:"mapUrl,omitempty"`
	Placements    map[string][]board.Placement `json:"placements,omitempty"`
	Templates     map[string][]board.Template  `json:"templates,omitempty"`
	Drawings      map[string][]board.Drawing   `json:"drawings,omitempty"`
	SceneState    map[string]board.SceneConfig `json:"sceneState,omitempty"`
	Overlay       *board.OverlayState          `json:"overlay,omitempty"`
	Pings         []board.Ping                 `json:"pings,omitempty"`

	Version   *int64 `json:"_version,omitempty"`
	SocketID  string `json:"_socketId,omitempty"`
	DeltaOnly bool   `json:"_deltaOnly,omitempty"`
}

// IsEmpty reports whether no board field is set.
func (o OutgoingBoard) IsEmpty() bool {
	return o.ActiveSceneID == nil && o.MapURL == nil && o.Overlay == nil &&
		len(o.Placements) == 0 && len(o.Templates) == 0 && len(o.Drawings) == 0 &&
		len(o.SceneState) == 0 && len(o.Pings) == 0
}

type SaveRequest struct {
	BoardState OutgoingBoard `json:"boardState"`
}

// Push message types written on the websocket.
const (
	PushHello   = "Hello"
	PushChanged = "BoardChanged"
	PushError   = "Error"
)

// PushMessage is one websocket frame from server to client. Event is the
// JSON of a broadcast event, already projected for the receiving viewer.
type PushMessage struct {
	Type     string          `json:"type"`
	ClientID string          `json:"clientId,omitempty"`
	Event    json.RawMessage `json:"event,omitempty"`
	Error    string          `json:"error,omitempty"`
}
