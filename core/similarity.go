package core

import (
	"context"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/store"
)

// similarityBase models similarity as 100 - |a - b|. No clamping is applied;
// profiles diverging by more than 100 yield negative scores.
const similarityBase = 100

// scoreCiphertexts evaluates the encrypted similarity expression over two
// submissions, never decrypting locally. The returned ordered list is the
// exact ciphertext set submitted for decryption; the callback re-runs this
// same function to re-verify the binding, which is why every operation in
// it must be deterministic.
func (c *Contract) scoreCiphertexts(ctA, ctB fhe.Ciphertext) ([]fhe.Ciphertext, error) {
	diff, err := c.scheme.Sub(ctA, ctB)
	if err != nil {
		return nil, fmt.Errorf("computing encrypted difference: %w", err)
	}
	absDiff, err := c.scheme.Abs(diff)
	if err != nil {
		return nil, fmt.Errorf("computing encrypted distance: %w", err)
	}
	base, err := c.scheme.EncryptScalar(similarityBase)
	if err != nil {
		return nil, fmt.Errorf("encrypting similarity base: %w", err)
	}
	score, err := c.scheme.Sub(base, absDiff)
	if err != nil {
		return nil, fmt.Errorf("computing encrypted score: %w", err)
	}

	return []fhe.Ciphertext{score}, nil
}

// stateHash digests the ordered ciphertext handles together with the
// contract identity. It binds a decryption request to the exact encrypted
// inputs it targets.
func (c *Contract) stateHash(cts []fhe.Ciphertext) []byte {
	d := sha3.New256()
	for _, ct := range cts {
		d.Write(ct.Handle[:])
	}
	d.Write(c.contractID)
	return d.Sum(nil)
}

// RequestGraphSimilarityScore computes the encrypted similarity score for
// two users' submissions in a batch and dispatches it to the oracle for
// decryption. Any actor may call it, subject to the decryption-request
// cooldown. Returns the oracle-assigned request id.
func (c *Contract) RequestGraphSimilarityScore(ctx context.Context, caller crypto.PublicKey, batchID uint64, userA, userB crypto.PublicKey) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireActive(); err != nil {
		return "", err
	}

	callerKey := caller.String()
	now := c.now().Unix()
	if err := c.checkCooldown(callerKey, ActionDecryptionRequest, now); err != nil {
		return "", err
	}

	b, ok := c.batches[batchID]
	if !ok || b.Closed {
		return "", ErrBatchClosedOrInvalid
	}

	subA, okA := c.submissions[subKey{batch: batchID, user: userA.String()}]
	subB, okB := c.submissions[subKey{batch: batchID, user: userB.String()}]
	if !okA || !okB {
		return "", ErrMissingSubmission
	}

	cts, err := c.scoreCiphertexts(subA.Ciphertext, subB.Ciphertext)
	if err != nil {
		return "", err
	}
	hash := c.stateHash(cts)

	requestID, err := c.oracle.RequestDecryption(ctx, cts)
	if err != nil {
		return "", fmt.Errorf("dispatching oracle request: %w", err)
	}
	// The oracle contract forbids request id reuse. A collision here means
	// the oracle is broken; refuse to overwrite the existing binding.
	if _, exists := c.contexts[requestID]; exists {
		return "", fmt.Errorf("oracle reused request id %s", requestID)
	}

	dc := &DecryptionContext{
		BatchID:   batchID,
		UserA:     userA.String(),
		UserB:     userB.String(),
		StateHash: hash,
		Processed: false,
	}

	ctxRec, err := record(requestKey(requestID), dc)
	if err != nil {
		return "", err
	}
	coolRec, err := c.cooldownRecord(callerKey, ActionDecryptionRequest, now)
	if err != nil {
		return "", err
	}
	if err := c.commit([]store.Record{ctxRec, coolRec}...); err != nil {
		return "", err
	}

	c.contexts[requestID] = dc
	c.applyCooldown(callerKey, ActionDecryptionRequest, now)

	c.emit(Event{Kind: EventDecryptionRequested, Actor: callerKey, RequestID: requestID, BatchID: batchID})
	return requestID, nil
}
