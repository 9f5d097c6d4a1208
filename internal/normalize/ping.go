package normalize

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

const (
	PingWindow   = 10 * time.Second
	PingCapacity = 8
)

// Ping canonicalizes one ping. Pings without an id are given one.
func Ping(v any, now time.Time) (board.Ping, bool) {
	raw, ok := object(v)
	if !ok {
		return board.Ping{}, false
	}
	sceneID := textOf(raw, "sceneId")
	if sceneID == "" {
		return board.Ping{}, false
	}
	x, okX := lookup(raw, "x")
	y, okY := lookup(raw, "y")
	if !okX || !okY {
		return board.Ping{}, false
	}
	fx, okX := number(x)
	fy, okY := number(y)
	if !okX || !okY {
		return board.Ping{}, false
	}
	id := textOf(raw, "id")
	if id == "" {
		id = uuid.NewString()
	}
	kind := board.PingKind(fold(textOf(raw, "type")))
	if kind != board.PingFocus {
		kind = board.PingPoint
	}
	createdAt := nonNegative(raw, "createdAt", "timestamp")
	if createdAt == 0 {
		createdAt = now.UnixMilli()
	}
	return board.Ping{
		ID:        id,
		SceneID:   sceneID,
		X:         clampFloat(fx, 0, 1),
		Y:         clampFloat(fy, 0, 1),
		Type:      kind,
		CreatedAt: createdAt,
		AuthorID:  textOf(raw, "authorId"),
	}, true
}

// RetainPings drops pings older than PingWindow, collapses duplicate ids to
// their newest copy and keeps at most PingCapacity, evicting the oldest.
func RetainPings(pings []board.Ping, now time.Time) []board.Ping {
	cutoff := now.Add(-PingWindow).UnixMilli()
	byID := make(map[string]board.Ping, len(pings))
	for _, p := range pings {
		if p.CreatedAt < cutoff {
			continue
		}
		if prev, ok := byID[p.ID]; ok && prev.CreatedAt > p.CreatedAt {
			continue
		}
		byID[p.ID] = p
	}
	out := make([]board.Ping, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > PingCapacity {
		out = out[len(out)-PingCapacity:]
	}
	return out
}
