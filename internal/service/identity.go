package service

import (
	"context"
	"strings"

	"github.com/DoyleJ11/vtt-board-sync/internal/board"
)

type identityKey struct{}

// ParseRole maps a session role string to a board role. Anything but "gm"
// is a player.
func ParseRole(s string) board.Role {
	if strings.EqualFold(strings.TrimSpace(s), string(board.RoleGM)) {
		return board.RoleGM
	}
	return board.RolePlayer
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFrom returns the caller stored by WithIdentity.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != ""
}
