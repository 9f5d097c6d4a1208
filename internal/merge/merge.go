// Package merge combines existing board collections with incoming writes.
// Everything here is pure: no I/O, no clocks, no shared state.
package merge

import "github.com/DoyleJ11/vtt-board-sync/internal/board"

// ByTimestamp applies incoming as a delta over existing. An incoming entry
// replaces the existing one with the same key when its timestamp is at
// least as new; ties go to incoming. Existing entries absent from incoming
// are kept untouched. When the existing entry is GM-authored and the
// incoming one is not, the GM-owned fields of the existing entry are
// reasserted onto the result.
func ByTimestamp[T board.Entry[T]](existing, incoming []T) []T {
	out := make([]T, len(existing))
	copy(out, existing)
	index := make(map[string]int, len(existing))
	for i, e := range out {
		if k := e.Key(); k != "" {
			index[k] = i
		}
	}

	for _, in := range incoming {
		k := in.Key()
		if k == "" {
			out = append(out, in)
			continue
		}
		i, ok := index[k]
		if !ok {
			index[k] = len(out)
			out = append(out, in)
			continue
		}
		cur := out[i]
		if in.Timestamp() < cur.Timestamp() {
			continue
		}
		if cur.GMAuthored() && !in.GMAuthored() {
			in = in.Protect(cur)
		}
		out[i] = in
	}
	return out
}

// PreservingGMAuthored applies a player's full list. Incoming entries that
// claim GM authorship are discarded. GM-authored existing entries always
// survive; a non-GM existing entry survives only if the player sent it
// again. Entries without a key pass through on both sides.
func PreservingGMAuthored[T board.Entry[T]](existing, incoming []T) []T {
	sent := make(map[string]T, len(incoming))
	var order []string
	var keyless []T
	for _, in := range incoming {
		if in.GMAuthored() {
			continue
		}
		k := in.Key()
		if k == "" {
			keyless = append(keyless, in)
			continue
		}
		if _, dup := sent[k]; !dup {
			order = append(order, k)
		}
		sent[k] = in
	}

	out := make([]T, 0, len(existing)+len(sent))
	used := make(map[string]bool, len(sent))
	for _, e := range existing {
		k := e.Key()
		if k == "" {
			out = append(out, e)
			continue
		}
		in, ok := sent[k]
		switch {
		case ok && e.GMAuthored():
			used[k] = true
			if in.Timestamp() >= e.Timestamp() {
				out = append(out, in.Protect(e))
			} else {
				out = append(out, e)
			}
		case ok:
			used[k] = true
			out = append(out, in)
		case e.GMAuthored():
			out = append(out, e)
		}
	}
	for _, k := range order {
		if !used[k] {
			out = append(out, sent[k])
		}
	}
	return append(out, keyless...)
}

// Replace returns incoming as the new collection.
func Replace[T any](_, incoming []T) []T {
	out := make([]T, len(incoming))
	copy(out, incoming)
	return out
}

// Demote clears GM claims on every entry.
func Demote[T board.Entry[T]](entries []T) []T {
	out := make([]T, len(entries))
	for i, e := range entries {
		out[i] = e.Demote()
	}
	return out
}

// Policy merges one scene's collection.
type Policy[T board.Entry[T]] func(existing, incoming []T) []T

// Scenes applies policy to every scene present in incoming. Scenes absent
// from incoming are carried over untouched.
func Scenes[T board.Entry[T]](existing, incoming map[string][]T, policy Policy[T]) map[string][]T {
	out := make(map[string][]T, len(existing)+len(incoming))
	for scene, entries := range existing {
		out[scene] = entries
	}
	for scene, entries := range incoming {
		out[scene] = policy(existing[scene], entries)
	}
	return out
}
