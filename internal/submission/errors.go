package submission

import "errors"

// Sentinel error taxonomy (§7), checked with errors.Is at the call site.
var (
	// ErrDuplicate — silent drop, no retry, no user-visible error.
	ErrDuplicate = errors.New("submission: duplicate")
	// ErrAuthFailed — account-hash mismatch. Silent drop.
	ErrAuthFailed = errors.New("submission: account hash mismatch")
	// ErrResolutionPending — an unknown player, NPC or item could not be
	// resolved through the directory; the current submission is dropped. No
	// placeholder notification is created.
	ErrResolutionPending = errors.New("submission: entity resolution pending")
	// ErrValidationRejected — high-value drop failed the NPC cross-check.
	ErrValidationRejected = errors.New("submission: validation rejected")
)
