package core_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/testutil"
)

func countEvents(events []core.Event, kind core.EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func TestTransferOwnership(t *testing.T) {
	f := testutil.NewFixture(t)
	newOwner, _ := testutil.GenerateKeyPair(t)

	require.NoError(t, f.Contract.TransferOwnership(f.Owner, newOwner))
	require.False(t, f.Contract.IsOwner(f.Owner))
	require.True(t, f.Contract.IsOwner(newOwner))

	// The previous owner retains no privileges.
	_, err := f.Contract.OpenNewBatch(f.Owner)
	require.ErrorIs(t, err, core.ErrNotOwner)

	_, err = f.Contract.OpenNewBatch(newOwner)
	require.NoError(t, err)

	events := f.Journal.Events()
	require.Equal(t, 1, countEvents(events, core.EventOwnershipTransferred))
}

func TestTransferOwnershipRequiresOwner(t *testing.T) {
	f := testutil.NewFixture(t)
	stranger, _ := testutil.GenerateKeyPair(t)
	target, _ := testutil.GenerateKeyPair(t)

	require.ErrorIs(t, f.Contract.TransferOwnership(stranger, target), core.ErrNotOwner)
	require.True(t, f.Contract.IsOwner(f.Owner))
}

func TestTransferOwnershipRejectsEmptyKey(t *testing.T) {
	f := testutil.NewFixture(t)

	err := f.Contract.TransferOwnership(f.Owner, crypto.PublicKey(nil))
	require.ErrorIs(t, err, core.ErrInvalidOwner)
	require.True(t, f.Contract.IsOwner(f.Owner))
}

func TestProviderRoleIdempotent(t *testing.T) {
	f := testutil.NewFixture(t)
	provider, _ := testutil.GenerateKeyPair(t)

	require.NoError(t, f.Contract.AddProvider(f.Owner, provider))
	require.True(t, f.Contract.IsProvider(provider))

	// Re-adding succeeds without emitting a second event.
	require.NoError(t, f.Contract.AddProvider(f.Owner, provider))
	require.Equal(t, 1, countEvents(f.Journal.Events(), core.EventProviderAdded))

	require.NoError(t, f.Contract.RemoveProvider(f.Owner, provider))
	require.False(t, f.Contract.IsProvider(provider))

	// Removing an absent provider is a no-op, no event.
	require.NoError(t, f.Contract.RemoveProvider(f.Owner, provider))
	require.Equal(t, 1, countEvents(f.Journal.Events(), core.EventProviderRemoved))
}

func TestProviderRoleRequiresOwner(t *testing.T) {
	f := testutil.NewFixture(t)
	stranger, _ := testutil.GenerateKeyPair(t)
	provider, _ := testutil.GenerateKeyPair(t)

	require.ErrorIs(t, f.Contract.AddProvider(stranger, provider), core.ErrNotOwner)
	require.ErrorIs(t, f.Contract.RemoveProvider(stranger, provider), core.ErrNotOwner)
}

func TestPauseUnpause(t *testing.T) {
	f := testutil.NewFixture(t)

	require.False(t, f.Contract.IsPaused())

	require.NoError(t, f.Contract.Pause(f.Owner))
	require.True(t, f.Contract.IsPaused())
	require.ErrorIs(t, f.Contract.Pause(f.Owner), core.ErrAlreadyPaused)

	require.NoError(t, f.Contract.Unpause(f.Owner))
	require.False(t, f.Contract.IsPaused())
	require.ErrorIs(t, f.Contract.Unpause(f.Owner), core.ErrNotPaused)
}

func TestPauseRequiresOwner(t *testing.T) {
	f := testutil.NewFixture(t)
	stranger, _ := testutil.GenerateKeyPair(t)

	require.ErrorIs(t, f.Contract.Pause(stranger), core.ErrNotOwner)
	require.ErrorIs(t, f.Contract.Unpause(stranger), core.ErrNotOwner)
}

func TestPauseBlocksMutationsNotReads(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	user, _ := testutil.GenerateKeyPair(t)
	f.Submit(t, provider, user, 1, 40)

	require.NoError(t, f.Contract.Pause(f.Owner))

	_, err := f.Contract.OpenNewBatch(f.Owner)
	require.ErrorIs(t, err, core.ErrPaused)
	require.ErrorIs(t, f.Contract.CloseBatch(f.Owner, 1), core.ErrPaused)

	// Role administration and reads remain available while paused.
	require.True(t, f.Contract.HasSubmission(1, user))
	other, _ := testutil.GenerateKeyPair(t)
	require.NoError(t, f.Contract.AddProvider(f.Owner, other))
}

func TestSetCooldownSeconds(t *testing.T) {
	f := testutil.NewFixture(t)
	provider := f.AddProvider(t)
	userA, _ := testutil.GenerateKeyPair(t)
	userB, _ := testutil.GenerateKeyPair(t)

	stranger, _ := testutil.GenerateKeyPair(t)
	require.ErrorIs(t, f.Contract.SetCooldownSeconds(stranger, 60), core.ErrNotOwner)

	f.Submit(t, provider, userA, 1, 40)

	require.NoError(t, f.Contract.SetCooldownSeconds(f.Owner, 3600))
	require.EqualValues(t, 3600, f.Contract.CooldownSeconds())

	// The raised threshold applies to the next check, even against action
	// timestamps recorded under the old threshold.
	ct, err := f.Scheme.Encrypt(55)
	require.NoError(t, err)
	_, err = f.Contract.SubmitUserGraph(provider, userB, 1, ct)
	require.ErrorIs(t, err, core.ErrCooldownActive)

	events := f.Journal.Events()
	last := events[len(events)-1]
	require.Equal(t, core.EventCooldownUpdated, last.Kind)
	require.EqualValues(t, 3600, last.CooldownSeconds)
}

func TestRegisterOracleIdempotent(t *testing.T) {
	f := testutil.NewFixture(t)
	key, _ := testutil.GenerateKeyPair(t)

	require.NoError(t, f.Contract.RegisterOracle(key))
	require.NoError(t, f.Contract.RegisterOracle(key))

	// One registration event for the new key, one for the fixture oracle.
	require.Equal(t, 2, countEvents(f.Journal.Events(), core.EventOracleRegistered))
}
