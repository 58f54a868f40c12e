// Package fhe provides the homomorphic encryption capability used for
// knowledge graph profiles.
//
// The protocol core only relies on the interfaces declared here: an
// encrypted value supports subtraction and absolute value without ever
// being decrypted, and every derived ciphertext carries a handle that is a
// deterministic function of its operands. Determinism of handles is load
// bearing: it is what allows a decryption callback to re-derive the exact
// ciphertext list of the original request and compare state hashes.
package fhe

import (
	"encoding/hex"
	"encoding/json"
	"errors"
)

// HandleSize is the byte length of a ciphertext handle.
const HandleSize = 32

// Handle identifies a ciphertext by its derivation. Two ciphertexts produced
// by the same operation over the same operands have the same handle.
type Handle [HandleSize]byte

// String returns the hex-encoded handle.
func (h Handle) String() string {
	return hex.EncodeToString(h[:])
}

// MarshalJSON encodes the handle as a hex string.
func (h Handle) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes the handle from a hex string.
func (h *Handle) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) != HandleSize {
		return errors.New("invalid handle size")
	}
	copy(h[:], raw)
	return nil
}

// Ciphertext is an encrypted numeric value. Payload is opaque to everything
// but the scheme that produced it; only the decryption oracle reveals the
// underlying cleartext.
type Ciphertext struct {
	Handle  Handle `json:"handle"`
	Payload []byte `json:"payload"`
}

// Valid reports whether the ciphertext is structurally well formed.
// An empty or truncated payload is not decryptable by any scheme.
func (ct Ciphertext) Valid() bool {
	return len(ct.Payload) >= minPayloadSize
}

// Scheme is the homomorphic capability the protocol core computes with.
// Arithmetic on ciphertexts produces new ciphertexts, never cleartext.
// All three operations must be deterministic: calling them again with the
// same inputs yields byte-identical ciphertexts.
type Scheme interface {
	// EncryptScalar encrypts a protocol constant deterministically.
	EncryptScalar(v int64) (Ciphertext, error)

	// Sub computes the encrypted difference a - b.
	Sub(a, b Ciphertext) (Ciphertext, error)

	// Abs computes the encrypted absolute value.
	Abs(a Ciphertext) (Ciphertext, error)
}

// Encrypter is the provider-facing capability for fresh profile values.
// Unlike Scheme operations, fresh encryption is randomized.
type Encrypter interface {
	Encrypt(v int64) (Ciphertext, error)
}

// Decrypter is held exclusively by the off-band oracle.
type Decrypter interface {
	Decrypt(ct Ciphertext) (int64, error)
}
