package repository

import "errors"

// ErrNotDraft is returned when a suggestion left the draft state before a
// conditional update could apply.
var ErrNotDraft = errors.New("suggestion is no longer a draft")

// ErrStaleTicket is returned when a ticket changed after the writer loaded it.
var ErrStaleTicket = errors.New("ticket was modified concurrently")

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
