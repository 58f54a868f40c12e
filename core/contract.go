// Package core implements the contract state machine: batch lifecycle,
// submission ledger, and the request/callback consistency protocol that ties
// an off-band decryption result back to the exact encrypted inputs that
// produced it.
//
// Every operation is atomic and serialized against all others: state is
// mutated in memory only after the operation's touched records have been
// committed to the store, under a single contract lock. The core never logs;
// it returns errors and emits events.
package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/store"
)

// OracleClient dispatches a decryption request to the off-band oracle and
// returns the oracle-assigned request id. The oracle must never reuse an id.
type OracleClient interface {
	RequestDecryption(ctx context.Context, cts []fhe.Ciphertext) (string, error)
}

// Config assembles a contract's collaborators.
type Config struct {
	Store  store.StateStore
	Scheme fhe.Scheme
	Oracle OracleClient
	Events Sink

	// ContractID is the contract's own identity, mixed into every state
	// hash so bindings from different deployments never collide.
	ContractID []byte

	// InitialOwner seeds the role set on first initialization. Ignored when
	// the store already holds state.
	InitialOwner crypto.PublicKey

	// CooldownSeconds seeds the rate limiter threshold on first
	// initialization.
	CooldownSeconds int64

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Contract is the deterministic state machine described by the protocol.
// All exported methods are safe for concurrent use; a single lock serializes
// every state transition.
type Contract struct {
	mu     sync.Mutex
	store  store.StateStore
	scheme fhe.Scheme
	oracle OracleClient
	events Sink
	now    func() time.Time

	contractID []byte

	access       AccessState
	currentBatch uint64
	batches      map[uint64]*Batch
	submissions  map[subKey]*Submission
	cooldowns    map[coolKey]int64
	contexts     map[string]*DecryptionContext
}

// New loads contract state from the store, initializing it on first run.
// First initialization records the owner and opens batch 1.
func New(cfg Config) (*Contract, error) {
	if cfg.Store == nil {
		return nil, errors.New("store cannot be nil")
	}
	if cfg.Scheme == nil {
		return nil, errors.New("scheme cannot be nil")
	}
	if cfg.Oracle == nil {
		return nil, errors.New("oracle client cannot be nil")
	}
	if len(cfg.ContractID) == 0 {
		return nil, errors.New("contract identity cannot be empty")
	}
	if cfg.Events == nil {
		cfg.Events = NopSink
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Contract{
		store:       cfg.Store,
		scheme:      cfg.Scheme,
		oracle:      cfg.Oracle,
		events:      cfg.Events,
		now:         cfg.Now,
		contractID:  cfg.ContractID,
		batches:     make(map[uint64]*Batch),
		submissions: make(map[subKey]*Submission),
		cooldowns:   make(map[coolKey]int64),
		contexts:    make(map[string]*DecryptionContext),
	}

	loaded, err := c.load()
	if err != nil {
		return nil, err
	}
	if !loaded {
		if err := c.initialize(cfg.InitialOwner, cfg.CooldownSeconds); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// load rebuilds in-memory state from the store. Returns false when the store
// holds no contract state yet.
func (c *Contract) load() (bool, error) {
	accessData, err := c.store.Get([]byte(keyAccess))
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading access state: %w", err)
	}
	if err := json.Unmarshal(accessData, &c.access); err != nil {
		return false, fmt.Errorf("decoding access state: %w", err)
	}

	currentData, err := c.store.Get([]byte(keyCurrentBatch))
	if err != nil {
		return false, fmt.Errorf("loading current batch: %w", err)
	}
	if err := json.Unmarshal(currentData, &c.currentBatch); err != nil {
		return false, fmt.Errorf("decoding current batch: %w", err)
	}

	err = c.store.Iterate([]byte(prefixBatch), func(_, value []byte) error {
		var b Batch
		if err := json.Unmarshal(value, &b); err != nil {
			return err
		}
		c.batches[b.ID] = &b
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("loading batches: %w", err)
	}

	err = c.store.Iterate([]byte(prefixSub), func(key, value []byte) error {
		var s Submission
		if err := json.Unmarshal(value, &s); err != nil {
			return err
		}
		k, err := parseSubmissionKey(key)
		if err != nil {
			return err
		}
		c.submissions[k] = &s
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("loading submissions: %w", err)
	}

	err = c.store.Iterate([]byte(prefixCooldown), func(key, value []byte) error {
		var ts int64
		if err := json.Unmarshal(value, &ts); err != nil {
			return err
		}
		k, err := parseCooldownKey(key)
		if err != nil {
			return err
		}
		c.cooldowns[k] = ts
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("loading cooldowns: %w", err)
	}

	err = c.store.Iterate([]byte(prefixRequest), func(key, value []byte) error {
		var dc DecryptionContext
		if err := json.Unmarshal(value, &dc); err != nil {
			return err
		}
		c.contexts[strings.TrimPrefix(string(key), prefixRequest)] = &dc
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("loading decryption contexts: %w", err)
	}

	return true, nil
}

func parseSubmissionKey(key []byte) (subKey, error) {
	rest := strings.TrimPrefix(string(key), prefixSub)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return subKey{}, fmt.Errorf("malformed submission key %q", key)
	}
	batch, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return subKey{}, fmt.Errorf("malformed submission key %q: %w", key, err)
	}
	return subKey{batch: batch, user: parts[1]}, nil
}

func parseCooldownKey(key []byte) (coolKey, error) {
	rest := strings.TrimPrefix(string(key), prefixCooldown)
	idx := strings.LastIndex(rest, "/")
	if idx < 0 {
		return coolKey{}, fmt.Errorf("malformed cooldown key %q", key)
	}
	return coolKey{actor: rest[:idx], action: Action(rest[idx+1:])}, nil
}

// initialize seeds first-run state: the owner role and batch 1.
func (c *Contract) initialize(owner crypto.PublicKey, cooldownSeconds int64) error {
	if len(owner) == 0 {
		return errors.New("initial owner cannot be empty")
	}

	c.access = AccessState{
		Owner:           owner.String(),
		Providers:       make(map[string]bool),
		OracleKeys:      make(map[string]bool),
		Paused:          false,
		CooldownSeconds: cooldownSeconds,
	}
	first := &Batch{ID: 1, Closed: false}

	accessRec, err := record([]byte(keyAccess), c.access)
	if err != nil {
		return err
	}
	currentRec, err := record([]byte(keyCurrentBatch), first.ID)
	if err != nil {
		return err
	}
	batchRec, err := record(batchKey(first.ID), first)
	if err != nil {
		return err
	}

	if err := c.store.Commit([]store.Record{accessRec, currentRec, batchRec}); err != nil {
		return fmt.Errorf("committing initial state: %w", err)
	}

	c.currentBatch = first.ID
	c.batches[first.ID] = first

	c.emit(Event{Kind: EventBatchOpened, BatchID: first.ID})
	return nil
}

// commit persists records; the caller applies the in-memory mutation only
// after commit succeeds. Must be called with the lock held.
func (c *Contract) commit(records ...store.Record) error {
	return c.store.Commit(records)
}

func (c *Contract) emit(e Event) {
	e.At = c.now()
	c.events.Emit(e)
}

// accessRecord rebuilds the persisted access record after a role mutation.
func (c *Contract) accessRecord() (store.Record, error) {
	return record([]byte(keyAccess), c.access)
}

// ContractID returns the contract's identity bytes.
func (c *Contract) ContractID() []byte {
	return c.contractID
}

// CurrentBatch returns the most recently opened batch.
func (c *Contract) CurrentBatch() Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.batches[c.currentBatch]
}

// GetBatch returns a batch by id.
func (c *Contract) GetBatch(id uint64) (Batch, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.batches[id]
	if !ok {
		return Batch{}, false
	}
	return *b, true
}

// HasSubmission reports whether a submission exists for (batchID, user).
// Ciphertext payloads are never exposed through the read side.
func (c *Contract) HasSubmission(batchID uint64, user crypto.PublicKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.submissions[subKey{batch: batchID, user: user.String()}]
	return ok && s.Submitted
}

// GetContext returns a copy of the decryption context for a request id.
func (c *Contract) GetContext(requestID string) (DecryptionContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	dc, ok := c.contexts[requestID]
	if !ok {
		return DecryptionContext{}, false
	}
	return *dc, true
}

// CooldownSeconds returns the current global cooldown threshold.
func (c *Contract) CooldownSeconds() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access.CooldownSeconds
}
