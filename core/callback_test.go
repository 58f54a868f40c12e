package core_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/store"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/testutil"
)

// pendingRequest submits two profiles and issues a similarity request,
// returning the request id.
func pendingRequest(t *testing.T, f *testutil.Fixture) string {
	t.Helper()

	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)
	caller, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 40)
	f.Submit(t, provider, bob, 1, 55)

	requestID, err := f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.NoError(t, err)
	return requestID
}

func TestCallbackReplayRejected(t *testing.T) {
	f := testutil.NewFixture(t)
	requestID := pendingRequest(t, f)

	require.EqualValues(t, 85, f.Deliver(t, requestID))

	// A byte-identical re-delivery of the same result is refused.
	cleartext, proof, err := f.Oracle.Result(requestID)
	require.NoError(t, err)
	_, err = f.Contract.OnDecryptionResult(requestID, cleartext, proof)
	require.ErrorIs(t, err, core.ErrReplayAttempt)
}

func TestCallbackUnknownRequest(t *testing.T) {
	f := testutil.NewFixture(t)

	_, err := f.Contract.OnDecryptionResult("deadbeef", core.EncodeScore(85), core.Proof{})
	require.ErrorIs(t, err, core.ErrUnknownRequest)
}

func TestCallbackUnregisteredOracleRejected(t *testing.T) {
	f := testutil.NewFixture(t)
	requestID := pendingRequest(t, f)

	// A correct signature by a key the contract never registered.
	pub, priv := testutil.GenerateKeyPair(t)
	cleartext := core.EncodeScore(85)
	sig, err := crypto.Sign(priv, core.ProofMessage(requestID, cleartext))
	require.NoError(t, err)

	_, err = f.Contract.OnDecryptionResult(requestID, cleartext, core.Proof{OracleKey: pub, Signature: sig})
	require.ErrorIs(t, err, core.ErrUnknownOracle)

	// The request stays deliverable.
	require.EqualValues(t, 85, f.Deliver(t, requestID))
}

func TestCallbackForgedProofRejected(t *testing.T) {
	f := testutil.NewFixture(t)
	requestID := pendingRequest(t, f)

	cleartext, proof, err := f.Oracle.Result(requestID)
	require.NoError(t, err)

	// Tampering with the cleartext invalidates the signature.
	tampered := append([]byte(nil), cleartext...)
	tampered[len(tampered)-1] ^= 0xff
	_, err = f.Contract.OnDecryptionResult(requestID, tampered, proof)
	require.ErrorIs(t, err, core.ErrInvalidProof)

	require.EqualValues(t, 85, f.Deliver(t, requestID))
}

func TestCallbackRejectsWrongPayloadSize(t *testing.T) {
	f := testutil.NewFixture(t)
	requestID := pendingRequest(t, f)

	// Register a key we control and have it sign a payload of the wrong
	// length. The signature verifies but the encoding contract does not.
	pub, priv := testutil.GenerateKeyPair(t)
	require.NoError(t, f.Contract.RegisterOracle(pub))

	cleartext := []byte("short")
	sig, err := crypto.Sign(priv, core.ProofMessage(requestID, cleartext))
	require.NoError(t, err)

	_, err = f.Contract.OnDecryptionResult(requestID, cleartext, core.Proof{OracleKey: pub, Signature: sig})
	require.ErrorIs(t, err, core.ErrInvalidProof)
}

func TestCallbackAcceptedAfterBatchClosed(t *testing.T) {
	f := testutil.NewFixture(t)
	requestID := pendingRequest(t, f)

	// Closing the batch, rolling the current batch forward and changing
	// ownership do not invalidate an outstanding request.
	require.NoError(t, f.Contract.CloseBatch(f.Owner, 1))
	_, err := f.Contract.OpenNewBatch(f.Owner)
	require.NoError(t, err)
	newOwner, _ := testutil.GenerateKeyPair(t)
	require.NoError(t, f.Contract.TransferOwnership(f.Owner, newOwner))

	require.EqualValues(t, 85, f.Deliver(t, requestID))
}

func TestCallbackSurvivesRestart(t *testing.T) {
	f := testutil.NewFixture(t)
	requestID := pendingRequest(t, f)

	cleartext, proof, err := f.Oracle.Result(requestID)
	require.NoError(t, err)

	// A contract reloaded from the same store accepts the delivery.
	restarted := testutil.NewFixture(t, testutil.WithStore(f.Store))
	score, err := restarted.Contract.OnDecryptionResult(requestID, cleartext, proof)
	require.NoError(t, err)
	require.EqualValues(t, 85, score)

	// And it remembers processing it.
	_, err = restarted.Contract.OnDecryptionResult(requestID, cleartext, proof)
	require.ErrorIs(t, err, core.ErrReplayAttempt)
}

func TestCallbackRejectsDivergedSubmissionState(t *testing.T) {
	f := testutil.NewFixture(t)
	requestID := pendingRequest(t, f)

	cleartext, proof, err := f.Oracle.Result(requestID)
	require.NoError(t, err)

	// Rewrite one submission record behind the contract's back, then
	// reload. The re-derived binding no longer matches the recorded hash.
	var subRecordKey []byte
	err = f.Store.Iterate([]byte("sub/"), func(key, _ []byte) error {
		if subRecordKey == nil {
			subRecordKey = bytes.Clone(key)
		}
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, subRecordKey)

	swapped, err := f.Scheme.Encrypt(999)
	require.NoError(t, err)
	value, err := json.Marshal(&core.Submission{Ciphertext: swapped, Submitted: true})
	require.NoError(t, err)
	require.NoError(t, f.Store.Commit([]store.Record{{Key: subRecordKey, Value: value}}))

	restarted := testutil.NewFixture(t, testutil.WithStore(f.Store))
	_, err = restarted.Contract.OnDecryptionResult(requestID, cleartext, proof)
	require.ErrorIs(t, err, core.ErrStateMismatch)
}
