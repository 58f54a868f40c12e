package core

import (
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/store"
)

// OpenNewBatch allocates the next batch id and opens it. Owner-only,
// requires not paused. Batch ids are strictly increasing from 1 and are
// never reused.
func (c *Contract) OpenNewBatch(actor crypto.PublicKey) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireOwner(actor); err != nil {
		return 0, err
	}
	if err := c.requireActive(); err != nil {
		return 0, err
	}

	b := &Batch{ID: c.currentBatch + 1, Closed: false}

	batchRec, err := record(batchKey(b.ID), b)
	if err != nil {
		return 0, err
	}
	currentRec, err := record([]byte(keyCurrentBatch), b.ID)
	if err != nil {
		return 0, err
	}
	if err := c.commit(batchRec, currentRec); err != nil {
		return 0, err
	}

	c.currentBatch = b.ID
	c.batches[b.ID] = b

	c.emit(Event{Kind: EventBatchOpened, Actor: actor.String(), BatchID: b.ID})
	return b.ID, nil
}

// CloseBatch closes a batch. Owner-only, requires not paused. Fails with
// ErrBatchClosedOrInvalid when the batch does not exist yet or is already
// closed, so a double close always fails rather than silently succeeding.
func (c *Contract) CloseBatch(actor crypto.PublicKey, batchID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireOwner(actor); err != nil {
		return err
	}
	if err := c.requireActive(); err != nil {
		return err
	}

	b, ok := c.batches[batchID]
	if !ok || b.Closed {
		return ErrBatchClosedOrInvalid
	}

	closed := &Batch{ID: b.ID, Closed: true}
	rec, err := record(batchKey(b.ID), closed)
	if err != nil {
		return err
	}
	if err := c.commit(rec); err != nil {
		return err
	}

	c.batches[batchID] = closed
	c.emit(Event{Kind: EventBatchClosed, Actor: actor.String(), BatchID: batchID})
	return nil
}

// SubmitUserGraph records a user's encrypted profile in a batch on behalf of
// a provider. Provider-only, requires not paused, subject to the submission
// cooldown. Submissions are write-once per (batch, user).
//
// A malformed or uninitialized ciphertext is normalized to an encrypted zero
// rather than rejected; the returned normalized flag lets the service layer
// log the fallback so it is not silent operationally.
func (c *Contract) SubmitUserGraph(provider, user crypto.PublicKey, batchID uint64, ct fhe.Ciphertext) (normalized bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	providerKey := provider.String()
	if !c.access.Providers[providerKey] {
		return false, ErrNotProvider
	}
	if err := c.requireActive(); err != nil {
		return false, err
	}

	now := c.now().Unix()
	if err := c.checkCooldown(providerKey, ActionSubmission, now); err != nil {
		return false, err
	}

	b, ok := c.batches[batchID]
	if !ok || b.Closed {
		return false, ErrBatchClosedOrInvalid
	}

	key := subKey{batch: batchID, user: user.String()}
	if _, exists := c.submissions[key]; exists {
		return false, ErrGraphAlreadySubmitted
	}

	if !ct.Valid() {
		ct, err = c.scheme.EncryptScalar(0)
		if err != nil {
			return false, err
		}
		normalized = true
	}

	sub := &Submission{Ciphertext: ct, Submitted: true}

	subRec, err := record(submissionKey(batchID, key.user), sub)
	if err != nil {
		return normalized, err
	}
	coolRec, err := c.cooldownRecord(providerKey, ActionSubmission, now)
	if err != nil {
		return normalized, err
	}
	if err := c.commit([]store.Record{subRec, coolRec}...); err != nil {
		return normalized, err
	}

	c.submissions[key] = sub
	c.applyCooldown(providerKey, ActionSubmission, now)

	c.emit(Event{Kind: EventGraphSubmitted, Actor: providerKey, Subject: key.user, BatchID: batchID})
	return normalized, nil
}
