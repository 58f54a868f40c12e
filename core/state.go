package core

import (
	"encoding/json"
	"fmt"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/store"
)

// Action is a rate-limited action kind. Cooldowns for different kinds are
// tracked independently per actor.
type Action string

const (
	ActionSubmission        Action = "submission"
	ActionDecryptionRequest Action = "decryption-request"
)

// AccessState holds role membership and global knobs. Exactly one owner
// exists at all times once the contract is initialized.
type AccessState struct {
	Owner           string          `json:"owner"`
	Providers       map[string]bool `json:"providers"`
	OracleKeys      map[string]bool `json:"oracle_keys"`
	Paused          bool            `json:"paused"`
	CooldownSeconds int64           `json:"cooldown_seconds"`
}

// Batch is a time-boxed submission window. Batches transition open -> closed
// once and are never reopened or deleted.
type Batch struct {
	ID     uint64 `json:"id"`
	Closed bool   `json:"closed"`
}

// Submission is a user's encrypted profile within a batch. Write-once.
type Submission struct {
	Ciphertext fhe.Ciphertext `json:"ciphertext"`
	Submitted  bool           `json:"submitted"`
}

// DecryptionContext binds an outstanding oracle request to the exact
// encrypted inputs it decrypts. UserA and UserB are required to re-derive
// the ciphertext list at callback time; without them the state-hash check
// would be vacuous.
type DecryptionContext struct {
	BatchID   uint64 `json:"batch_id"`
	UserA     string `json:"user_a"`
	UserB     string `json:"user_b"`
	StateHash []byte `json:"state_hash"`
	Processed bool   `json:"processed"`
}

// Persisted key layout. Batch ids are fixed-width so iteration order matches
// numeric order.
const (
	keyAccess       = "meta/access"
	keyCurrentBatch = "meta/current-batch"
	prefixBatch     = "batch/"
	prefixSub       = "sub/"
	prefixCooldown  = "cool/"
	prefixRequest   = "req/"
)

func batchKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixBatch, id))
}

func submissionKey(batchID uint64, user string) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", prefixSub, batchID, user))
}

func cooldownKey(actor string, action Action) []byte {
	return []byte(fmt.Sprintf("%s%s/%s", prefixCooldown, actor, action))
}

func requestKey(requestID string) []byte {
	return []byte(prefixRequest + requestID)
}

func record(key []byte, v any) (store.Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return store.Record{}, fmt.Errorf("encoding state record: %w", err)
	}
	return store.Record{Key: key, Value: data}, nil
}

// subKey is the in-memory submission index key.
type subKey struct {
	batch uint64
	user  string
}

// coolKey is the in-memory cooldown index key.
type coolKey struct {
	actor  string
	action Action
}
