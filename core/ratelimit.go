package core

import (
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/store"
)

// checkCooldown fails with ErrCooldownActive when actor performed the same
// action less than CooldownSeconds ago. It does not record anything; a
// rejected call never extends the actor's wait. Must be called with the
// lock held.
func (c *Contract) checkCooldown(actor string, action Action, now int64) error {
	last, ok := c.cooldowns[coolKey{actor: actor, action: action}]
	if ok && now < last+c.access.CooldownSeconds {
		return ErrCooldownActive
	}
	return nil
}

// cooldownRecord builds the persisted record for recording an action at now.
// The caller includes it in the operation's commit batch and applies
// applyCooldown after the commit succeeds, so the timestamp only advances
// on the success path. Must be called with the lock held.
func (c *Contract) cooldownRecord(actor string, action Action, now int64) (store.Record, error) {
	return record(cooldownKey(actor, action), now)
}

func (c *Contract) applyCooldown(actor string, action Action, now int64) {
	c.cooldowns[coolKey{actor: actor, action: action}] = now
}
