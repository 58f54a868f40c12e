package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/testutil"
)

func TestSimilarityEndToEnd(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)
	caller, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 40)
	f.Submit(t, provider, bob, 1, 55)

	requestID, err := f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.NoError(t, err)
	require.NotEmpty(t, requestID)

	dc, ok := f.Contract.GetContext(requestID)
	require.True(t, ok)
	require.False(t, dc.Processed)
	require.EqualValues(t, 1, dc.BatchID)

	// 100 - |40 - 55| = 85, revealed only through the oracle round trip.
	require.EqualValues(t, 85, f.Deliver(t, requestID))

	dc, ok = f.Contract.GetContext(requestID)
	require.True(t, ok)
	require.True(t, dc.Processed)

	events := f.Journal.Events()
	last := events[len(events)-1]
	require.Equal(t, core.EventSimilarityComputed, last.Kind)
	require.Equal(t, requestID, last.RequestID)
	require.EqualValues(t, 85, last.Score)
}

func TestSimilarityIdenticalProfiles(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)
	caller, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 70)
	f.Submit(t, provider, bob, 1, 70)

	requestID, err := f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.NoError(t, err)
	require.EqualValues(t, 100, f.Deliver(t, requestID))
}

func TestSimilarityUnclamped(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)
	caller, _ := testutil.GenerateKeyPair(t)

	// Divergence beyond 100 yields a negative score.
	f.Submit(t, provider, alice, 1, 10)
	f.Submit(t, provider, bob, 1, 200)

	requestID, err := f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.NoError(t, err)
	require.EqualValues(t, -90, f.Deliver(t, requestID))
}

func TestSimilaritySymmetric(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)
	callerA, _ := testutil.GenerateKeyPair(t)
	callerB, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 40)
	f.Submit(t, provider, bob, 1, 55)

	forward, err := f.Contract.RequestGraphSimilarityScore(context.Background(), callerA, 1, alice, bob)
	require.NoError(t, err)
	reverse, err := f.Contract.RequestGraphSimilarityScore(context.Background(), callerB, 1, bob, alice)
	require.NoError(t, err)

	require.EqualValues(t, 85, f.Deliver(t, forward))
	require.EqualValues(t, 85, f.Deliver(t, reverse))
}

func TestSimilarityMissingSubmission(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)
	caller, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 40)

	_, err := f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.ErrorIs(t, err, core.ErrMissingSubmission)
}

func TestSimilarityClosedBatchRejected(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)
	caller, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 40)
	f.Submit(t, provider, bob, 1, 55)
	require.NoError(t, f.Contract.CloseBatch(f.Owner, 1))

	_, err := f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.ErrorIs(t, err, core.ErrBatchClosedOrInvalid)

	_, err = f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 7, alice, bob)
	require.ErrorIs(t, err, core.ErrBatchClosedOrInvalid)
}

func TestSimilarityWhilePausedRejected(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)
	caller, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 40)
	f.Submit(t, provider, bob, 1, 55)
	require.NoError(t, f.Contract.Pause(f.Owner))

	_, err := f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.ErrorIs(t, err, core.ErrPaused)
}

func TestSimilarityCooldown(t *testing.T) {
	f := testutil.NewFixture(t, testutil.WithCooldown(60))
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)
	caller, _ := testutil.GenerateKeyPair(t)
	other, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 40)
	f.Advance(61 * time.Second)
	f.Submit(t, provider, bob, 1, 55)

	_, err := f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.NoError(t, err)

	// Reject mid-window so a rejection that restarted the clock would
	// still be cooling down at the 61s mark.
	f.Advance(30 * time.Second)
	_, err = f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.ErrorIs(t, err, core.ErrCooldownActive)

	// Cooldowns are per caller.
	_, err = f.Contract.RequestGraphSimilarityScore(context.Background(), other, 1, alice, bob)
	require.NoError(t, err)

	f.Advance(31 * time.Second)
	_, err = f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, bob)
	require.NoError(t, err)
}

func TestSimilarityCooldownIndependentOfSubmission(t *testing.T) {
	f := testutil.NewFixture(t, testutil.WithCooldown(60))
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	bob, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 40)
	f.Advance(61 * time.Second)
	f.Submit(t, provider, bob, 1, 55)

	// The provider just submitted; the decryption-request cooldown is a
	// separate track and is not tripped by it.
	_, err := f.Contract.RequestGraphSimilarityScore(context.Background(), provider, 1, alice, bob)
	require.NoError(t, err)
}

func TestSimilaritySelfComparison(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	alice, _ := testutil.GenerateKeyPair(t)
	caller, _ := testutil.GenerateKeyPair(t)

	f.Submit(t, provider, alice, 1, 40)

	requestID, err := f.Contract.RequestGraphSimilarityScore(context.Background(), caller, 1, alice, alice)
	require.NoError(t, err)
	require.EqualValues(t, 100, f.Deliver(t, requestID))
}
