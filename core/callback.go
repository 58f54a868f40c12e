package core

import (
	"bytes"
	"encoding/binary"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
)

// Proof authenticates an oracle result: an Ed25519 signature by a registered
// oracle key over requestID ‖ cleartext payload.
type Proof struct {
	OracleKey crypto.PublicKey `json:"oracle_key"`
	Signature crypto.Signature `json:"signature"`
}

// ProofMessage is the byte string an oracle proof signs.
func ProofMessage(requestID string, cleartext []byte) []byte {
	msg := make([]byte, 0, len(requestID)+len(cleartext))
	msg = append(msg, requestID...)
	msg = append(msg, cleartext...)
	return msg
}

// EncodeScore encodes a cleartext score as the 8-byte big-endian
// two's-complement payload the oracle delivers.
func EncodeScore(v int64) []byte {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, uint64(v))
	return payload
}

// OnDecryptionResult consumes an oracle callback. It enforces at-most-once
// processing per request id, re-verifies the state-hash binding against
// current submissions, and validates the oracle's proof before revealing
// the score. Returns the decoded score on first successful delivery.
//
// The gap since request issuance is unbounded: batches may have closed and
// ownership may have changed in the interim. None of that invalidates a
// pending request; only a diverged ciphertext binding does.
func (c *Contract) OnDecryptionResult(requestID string, cleartext []byte, proof Proof) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc, ok := c.contexts[requestID]
	if !ok {
		return 0, ErrUnknownRequest
	}
	if dc.Processed {
		return 0, ErrReplayAttempt
	}

	// Re-derive the ciphertext list from the recorded identities against
	// current submissions. Under write-once submissions and never-reopened
	// batches this always reproduces the recorded hash; the check guards
	// against future relaxation of those invariants.
	subA, okA := c.submissions[subKey{batch: dc.BatchID, user: dc.UserA}]
	subB, okB := c.submissions[subKey{batch: dc.BatchID, user: dc.UserB}]
	if !okA || !okB {
		return 0, ErrStateMismatch
	}
	cts, err := c.scoreCiphertexts(subA.Ciphertext, subB.Ciphertext)
	if err != nil {
		return 0, err
	}
	if !bytes.Equal(c.stateHash(cts), dc.StateHash) {
		return 0, ErrStateMismatch
	}

	if !c.access.OracleKeys[proof.OracleKey.String()] {
		return 0, ErrUnknownOracle
	}
	if !proof.Signature.Verify(proof.OracleKey, ProofMessage(requestID, cleartext)) {
		return 0, ErrInvalidProof
	}
	// The oracle contract fixes the score encoding; a registered oracle
	// signing a differently-sized payload is indistinguishable from a
	// forged result.
	if len(cleartext) != 8 {
		return 0, ErrInvalidProof
	}
	score := int64(binary.BigEndian.Uint64(cleartext))

	processed := &DecryptionContext{
		BatchID:   dc.BatchID,
		UserA:     dc.UserA,
		UserB:     dc.UserB,
		StateHash: dc.StateHash,
		Processed: true,
	}
	rec, err := record(requestKey(requestID), processed)
	if err != nil {
		return 0, err
	}
	if err := c.commit(rec); err != nil {
		return 0, err
	}

	c.contexts[requestID] = processed

	c.emit(Event{Kind: EventSimilarityComputed, RequestID: requestID, BatchID: dc.BatchID, Score: score})
	return score, nil
}
