package core

import "errors"

// Every operation either succeeds completely or fails with one of these and
// commits nothing.
var (
	// Authorization errors.
	ErrNotOwner     = errors.New("actor is not the owner")
	ErrNotProvider  = errors.New("actor is not a registered provider")
	ErrInvalidOwner = errors.New("new owner is not set")
	ErrPaused       = errors.New("contract is paused")

	// Pause transitions that would not change state. Distinct errors per
	// state, unlike the upstream contract which reused the paused error
	// for both directions.
	ErrAlreadyPaused = errors.New("contract is already paused")
	ErrNotPaused     = errors.New("contract is not paused")

	// Rate errors.
	ErrCooldownActive = errors.New("cooldown active for this action")

	// Lifecycle errors.
	ErrBatchClosedOrInvalid  = errors.New("batch is closed or does not exist")
	ErrGraphAlreadySubmitted = errors.New("graph already submitted for this user and batch")

	// Lookup errors.
	ErrMissingSubmission = errors.New("no submission recorded for user in batch")

	// Protocol-integrity errors on the callback path.
	ErrUnknownRequest = errors.New("no decryption context for request id")
	ErrReplayAttempt  = errors.New("request already processed")
	ErrStateMismatch  = errors.New("re-derived ciphertext binding does not match request")
	ErrUnknownOracle  = errors.New("result not signed by a registered oracle key")
	ErrInvalidProof   = errors.New("oracle proof verification failed")
)
