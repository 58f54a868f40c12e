package oracle

import (
	"context"
	"fmt"
	"sync"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
)

// InProcessOracle is a core.OracleClient that holds requests in memory and
// produces results on demand, without a queue or a network hop. Useful for
// tests and single-process deployments.
type InProcessOracle struct {
	decrypter  fhe.Decrypter
	signingKey crypto.PrivateKey
	publicKey  crypto.PublicKey

	mu      sync.Mutex
	pending map[string][]fhe.Ciphertext
}

// NewInProcessOracle creates an in-process oracle with its own signing key
// when signingKey is nil.
func NewInProcessOracle(decrypter fhe.Decrypter, signingKey crypto.PrivateKey) (*InProcessOracle, error) {
	if signingKey == nil {
		var err error
		_, signingKey, err = crypto.GenerateKeyPair()
		if err != nil {
			return nil, err
		}
	}
	pub, err := signingKey.PublicKey()
	if err != nil {
		return nil, err
	}
	return &InProcessOracle{
		decrypter:  decrypter,
		signingKey: signingKey,
		publicKey:  pub,
		pending:    map[string][]fhe.Ciphertext{},
	}, nil
}

// PublicKey returns the oracle's proof signing key.
func (o *InProcessOracle) PublicKey() crypto.PublicKey {
	return o.publicKey
}

func (o *InProcessOracle) RequestDecryption(_ context.Context, cts []fhe.Ciphertext) (string, error) {
	requestID, err := NewRequestID()
	if err != nil {
		return "", err
	}

	copied := make([]fhe.Ciphertext, len(cts))
	copy(copied, cts)

	o.mu.Lock()
	o.pending[requestID] = copied
	o.mu.Unlock()

	return requestID, nil
}

// Pending returns the request ids awaiting a result, in no particular order.
func (o *InProcessOracle) Pending() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.pending))
	for id := range o.pending {
		ids = append(ids, id)
	}
	return ids
}

// Result decrypts the pending request and signs the cleartext. The request
// stays pending so a result can be produced more than once, which is what a
// replaying oracle would do.
func (o *InProcessOracle) Result(requestID string) ([]byte, core.Proof, error) {
	o.mu.Lock()
	cts, ok := o.pending[requestID]
	o.mu.Unlock()
	if !ok {
		return nil, core.Proof{}, ErrRequestNotFound
	}

	cleartext := make([]byte, 0, len(cts)*8)
	for i, ct := range cts {
		v, err := o.decrypter.Decrypt(ct)
		if err != nil {
			return nil, core.Proof{}, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		cleartext = append(cleartext, core.EncodeScore(v)...)
	}

	sig, err := crypto.Sign(o.signingKey, core.ProofMessage(requestID, cleartext))
	if err != nil {
		return nil, core.Proof{}, err
	}

	return cleartext, core.Proof{OracleKey: o.publicKey, Signature: sig}, nil
}

var _ core.OracleClient = (*InProcessOracle)(nil)
