// Package testutil provides fixtures for contract tests: deterministic
// keys, a sealed scheme, and a fully wired in-process contract.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/journal"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/oracle"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/store"
)

// TestContractID is the contract identity used by fixtures.
var TestContractID = []byte("test-contract")

// TestSealingKey is the fixed 32-byte scheme key used by fixtures.
var TestSealingKey = []byte("0123456789abcdef0123456789abcdef")

// GenerateKeyPair generates a key pair, failing the test on error.
func GenerateKeyPair(t *testing.T) (crypto.PublicKey, crypto.PrivateKey) {
	t.Helper()
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return pub, priv
}

// NewScheme creates a sealed scheme over TestContractID and TestSealingKey.
func NewScheme(t *testing.T) *fhe.SealedScheme {
	t.Helper()
	scheme, err := fhe.NewSealedScheme(TestContractID, TestSealingKey)
	require.NoError(t, err)
	return scheme
}

// Fixture is a fully wired in-process contract with controllable time.
type Fixture struct {
	Contract *core.Contract
	Scheme   *fhe.SealedScheme
	Store    *store.MemoryStore
	Journal  *journal.MemoryJournal
	Oracle   *oracle.InProcessOracle

	Owner    crypto.PublicKey
	OwnerKey crypto.PrivateKey

	// Clock is the time returned by the contract's clock; advance it to move
	// past cooldowns.
	Clock time.Time
}

// FixtureOption tweaks fixture construction.
type FixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	cooldownSeconds int64
	store           *store.MemoryStore
}

// WithCooldown sets the initial cooldown threshold.
func WithCooldown(seconds int64) FixtureOption {
	return func(c *fixtureConfig) { c.cooldownSeconds = seconds }
}

// WithStore reuses an existing memory store, for restart tests.
func WithStore(s *store.MemoryStore) FixtureOption {
	return func(c *fixtureConfig) { c.store = s }
}

// NewFixture builds a contract over a memory store, a memory journal and an
// in-process oracle sharing the fixture scheme.
func NewFixture(t *testing.T, opts ...FixtureOption) *Fixture {
	t.Helper()

	cfg := fixtureConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = store.NewMemoryStore()
	}

	scheme := NewScheme(t)
	owner, ownerKey := GenerateKeyPair(t)

	orc, err := oracle.NewInProcessOracle(scheme, nil)
	require.NoError(t, err)

	j := journal.NewMemoryJournal()

	f := &Fixture{
		Scheme:   scheme,
		Store:    cfg.store,
		Journal:  j,
		Oracle:   orc,
		Owner:    owner,
		OwnerKey: ownerKey,
		Clock:    time.Unix(1_700_000_000, 0),
	}

	contract, err := core.New(core.Config{
		Store:           cfg.store,
		Scheme:          scheme,
		Oracle:          orc,
		Events:          j,
		ContractID:      TestContractID,
		InitialOwner:    owner,
		CooldownSeconds: cfg.cooldownSeconds,
		Now:             func() time.Time { return f.Clock },
	})
	require.NoError(t, err)
	f.Contract = contract

	require.NoError(t, contract.RegisterOracle(orc.PublicKey()))

	return f
}

// Advance moves the fixture clock forward.
func (f *Fixture) Advance(d time.Duration) {
	f.Clock = f.Clock.Add(d)
}

// AddProvider registers a fresh provider identity and returns it.
func (f *Fixture) AddProvider(t *testing.T) crypto.PublicKey {
	t.Helper()
	provider, _ := GenerateKeyPair(t)
	require.NoError(t, f.Contract.AddProvider(f.Owner, provider))
	return provider
}

// Submit encrypts value and submits it for user into batchID.
func (f *Fixture) Submit(t *testing.T, provider, user crypto.PublicKey, batchID uint64, value int64) {
	t.Helper()
	ct, err := f.Scheme.Encrypt(value)
	require.NoError(t, err)
	normalized, err := f.Contract.SubmitUserGraph(provider, user, batchID, ct)
	require.NoError(t, err)
	require.False(t, normalized)
}

// Deliver produces and delivers the oracle result for a pending request,
// returning the revealed score.
func (f *Fixture) Deliver(t *testing.T, requestID string) int64 {
	t.Helper()
	cleartext, proof, err := f.Oracle.Result(requestID)
	require.NoError(t, err)
	score, err := f.Contract.OnDecryptionResult(requestID, cleartext, proof)
	require.NoError(t, err)
	return score
}
