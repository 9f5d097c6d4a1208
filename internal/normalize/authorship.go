package normalize

import "github.com/DoyleJ11/vtt-board-sync/internal/board"

// maxMarkerDepth bounds how far GM marker detection descends.
const maxMarkerDepth = 3

var (
	gmFlagKeys = []string{"authorIsGm", "gm", "isGm", "gmOnly", "gm_only", "gmAuthored", "gm_authored"}
	gmRoleKeys = []string{"authorRole", "role", "createdByRole", "source", "ownerRole"}
	markerNest = []string{"metadata", "meta", "flags"}
)

// GMAuthored reports whether any GM marker is present at the top level of
// raw or nested within metadata, meta or flags.
func GMAuthored(raw map[string]any) bool {
	return gmAuthored(raw, 1)
}

func gmAuthored(raw map[string]any, depth int) bool {
	if raw == nil || depth > maxMarkerDepth {
		return false
	}
	for _, k := range gmFlagKeys {
		if b, ok := Truthy(raw[k]); ok && b {
			return true
		}
	}
	for _, k := range gmRoleKeys {
		if s, ok := raw[k].(string); ok && fold(s) == string(board.RoleGM) {
			return true
		}
	}
	for _, k := range markerNest {
		if nested, ok := object(raw[k]); ok && gmAuthored(nested, depth+1) {
			return true
		}
	}
	return false
}

// authorship builds the canonical authorship block of a raw entry.
func authorship(raw map[string]any) board.Authorship {
	a := board.Authorship{
		AuthorIsGM: GMAuthored(raw),
		AuthorID:   textOf(raw, "authorId", "createdBy", "ownerId"),
	}
	if role := textOf(raw, "authorRole", "createdByRole", "ownerRole"); role != "" {
		a.AuthorRole = fold(role)
	}
	if a.AuthorIsGM {
		a.AuthorRole = string(board.RoleGM)
	}
	return a
}

// stripMarkers removes GM marker keys from a passthrough map so that the
// canonical Authorship fields are the only place they live.
func stripMarkers(m map[string]any) {
	for _, k := range gmFlagKeys {
		delete(m, k)
	}
	for _, k := range gmRoleKeys {
		delete(m, k)
	}
}

// Timestamp reads the write timestamp of a raw entry in epoch ms.
func Timestamp(raw map[string]any) int64 {
	return nonNegative(raw, "_lastModified", "lastModified", "updatedAt")
}
