package core

import (
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
)

// IsOwner reports whether actor is the contract owner.
func (c *Contract) IsOwner(actor crypto.PublicKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access.Owner == actor.String()
}

// IsProvider reports whether actor is a registered provider.
func (c *Contract) IsProvider(actor crypto.PublicKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access.Providers[actor.String()]
}

// IsPaused reports whether the global circuit breaker is engaged.
func (c *Contract) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.access.Paused
}

// requireOwner must be called with the lock held.
func (c *Contract) requireOwner(actor crypto.PublicKey) error {
	if c.access.Owner != actor.String() {
		return ErrNotOwner
	}
	return nil
}

// requireActive must be called with the lock held.
func (c *Contract) requireActive() error {
	if c.access.Paused {
		return ErrPaused
	}
	return nil
}

// TransferOwnership hands the owner role to newOwner. Owner-only.
func (c *Contract) TransferOwnership(actor, newOwner crypto.PublicKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireOwner(actor); err != nil {
		return err
	}
	if len(newOwner) == 0 {
		return ErrInvalidOwner
	}

	previous := c.access.Owner
	c.access.Owner = newOwner.String()
	rec, err := c.accessRecord()
	if err != nil {
		c.access.Owner = previous
		return err
	}
	if err := c.commit(rec); err != nil {
		c.access.Owner = previous
		return err
	}

	c.emit(Event{Kind: EventOwnershipTransferred, Actor: previous, Subject: c.access.Owner})
	return nil
}

// AddProvider grants the provider role. Idempotent: adding an existing
// provider succeeds without effect or event.
func (c *Contract) AddProvider(actor, provider crypto.PublicKey) error {
	return c.setProvider(actor, provider, true, EventProviderAdded)
}

// RemoveProvider revokes the provider role. Idempotent: removing an absent
// provider succeeds without effect or event.
func (c *Contract) RemoveProvider(actor, provider crypto.PublicKey) error {
	return c.setProvider(actor, provider, false, EventProviderRemoved)
}

func (c *Contract) setProvider(actor, provider crypto.PublicKey, present bool, kind EventKind) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireOwner(actor); err != nil {
		return err
	}

	key := provider.String()
	if c.access.Providers[key] == present {
		return nil
	}

	if present {
		c.access.Providers[key] = true
	} else {
		delete(c.access.Providers, key)
	}

	rec, err := c.accessRecord()
	if err == nil {
		err = c.commit(rec)
	}
	if err != nil {
		if present {
			delete(c.access.Providers, key)
		} else {
			c.access.Providers[key] = true
		}
		return err
	}

	c.emit(Event{Kind: kind, Actor: actor.String(), Subject: key})
	return nil
}

// Pause engages the global circuit breaker. Fails if already paused.
func (c *Contract) Pause(actor crypto.PublicKey) error {
	return c.setPaused(actor, true)
}

// Unpause releases the global circuit breaker. Fails if not paused.
func (c *Contract) Unpause(actor crypto.PublicKey) error {
	return c.setPaused(actor, false)
}

func (c *Contract) setPaused(actor crypto.PublicKey, paused bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireOwner(actor); err != nil {
		return err
	}
	if c.access.Paused == paused {
		if paused {
			return ErrAlreadyPaused
		}
		return ErrNotPaused
	}

	c.access.Paused = paused
	rec, err := c.accessRecord()
	if err == nil {
		err = c.commit(rec)
	}
	if err != nil {
		c.access.Paused = !paused
		return err
	}

	kind := EventPaused
	if !paused {
		kind = EventUnpaused
	}
	c.emit(Event{Kind: kind, Actor: actor.String()})
	return nil
}

// SetCooldownSeconds updates the global rate-limiter threshold. Applies to
// checks performed after the update, never retroactively.
func (c *Contract) SetCooldownSeconds(actor crypto.PublicKey, seconds int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireOwner(actor); err != nil {
		return err
	}

	previous := c.access.CooldownSeconds
	c.access.CooldownSeconds = seconds
	rec, err := c.accessRecord()
	if err == nil {
		err = c.commit(rec)
	}
	if err != nil {
		c.access.CooldownSeconds = previous
		return err
	}

	c.emit(Event{Kind: EventCooldownUpdated, Actor: actor.String(), CooldownSeconds: seconds})
	return nil
}

// RegisterOracle records a key whose result proofs the callback accepts.
// The trust decision (owner signature or verified TEE attestation) is made
// by the caller; see server.NodeHandler.
func (c *Contract) RegisterOracle(oracleKey crypto.PublicKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := oracleKey.String()
	if c.access.OracleKeys[key] {
		return nil
	}

	c.access.OracleKeys[key] = true
	rec, err := c.accessRecord()
	if err == nil {
		err = c.commit(rec)
	}
	if err != nil {
		delete(c.access.OracleKeys, key)
		return err
	}

	c.emit(Event{Kind: EventOracleRegistered, Subject: key})
	return nil
}
