package fhe

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/sha3"
)

// Sealed payload layout: 12-byte nonce followed by the AES-GCM ciphertext of
// an 8-byte big-endian two's-complement integer, with the contract identity
// as additional data.
const (
	nonceSize      = 12
	valueSize      = 8
	minPayloadSize = nonceSize + valueSize + 16 // nonce + value + GCM tag
)

// Derivation tags for handle and nonce computation.
const (
	tagFresh  = "fresh"
	tagScalar = "scalar"
	tagSub    = "sub"
	tagAbs    = "abs"
)

// SealedScheme implements Scheme, Encrypter and Decrypter by sealing values
// with an AES-GCM key shared between the contract node and the decryption
// oracle. It simulates a homomorphic scheme for deployments where the real
// primitive is provided externally; it does not provide cryptographic
// hiding from a party holding the sealing key.
//
// Derived ciphertexts use nonces keyed off the result handle, so Sub, Abs
// and EncryptScalar are deterministic. Fresh encryption salts the handle.
type SealedScheme struct {
	contractID []byte
	key        []byte
	aead       cipher.AEAD
}

// NewSealedScheme creates a scheme bound to a contract identity.
// The key must be 32 bytes.
func NewSealedScheme(contractID, key []byte) (*SealedScheme, error) {
	if len(key) != 32 {
		return nil, errors.New("sealing key must be 32 bytes")
	}
	if len(contractID) == 0 {
		return nil, errors.New("contract identity cannot be empty")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	id := make([]byte, len(contractID))
	copy(id, contractID)
	k := make([]byte, len(key))
	copy(k, key)

	return &SealedScheme{contractID: id, key: k, aead: aead}, nil
}

// ContractID returns the contract identity the scheme is bound to.
func (s *SealedScheme) ContractID() []byte {
	return s.contractID
}

// deriveHandle computes a handle as a digest over the contract identity,
// an operation tag and the operation's inputs.
func (s *SealedScheme) deriveHandle(tag string, parts ...[]byte) Handle {
	d := sha3.New256()
	d.Write(s.contractID)
	d.Write([]byte(tag))
	for _, p := range parts {
		d.Write(p)
	}
	var h Handle
	copy(h[:], d.Sum(nil))
	return h
}

// deriveNonce derives a per-handle nonce so sealing is a pure function of
// the handle. Handles of derived ciphertexts never repeat for distinct
// values, which keeps nonce reuse confined to byte-identical ciphertexts.
func (s *SealedScheme) deriveNonce(h Handle) []byte {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte("nonce"))
	mac.Write(h[:])
	return mac.Sum(nil)[:nonceSize]
}

func (s *SealedScheme) seal(v int64, h Handle) Ciphertext {
	plain := make([]byte, valueSize)
	binary.BigEndian.PutUint64(plain, uint64(v))

	nonce := s.deriveNonce(h)
	sealed := s.aead.Seal(nil, nonce, plain, s.contractID)

	payload := make([]byte, 0, nonceSize+len(sealed))
	payload = append(payload, nonce...)
	payload = append(payload, sealed...)

	return Ciphertext{Handle: h, Payload: payload}
}

func (s *SealedScheme) open(ct Ciphertext) (int64, error) {
	if !ct.Valid() {
		return 0, errors.New("malformed ciphertext payload")
	}

	nonce := ct.Payload[:nonceSize]
	plain, err := s.aead.Open(nil, nonce, ct.Payload[nonceSize:], s.contractID)
	if err != nil {
		return 0, fmt.Errorf("failed to open ciphertext: %w", err)
	}
	if len(plain) != valueSize {
		return 0, errors.New("unexpected cleartext size")
	}

	return int64(binary.BigEndian.Uint64(plain)), nil
}

// Encrypt encrypts a fresh value with a randomized handle. Used by
// providers when preparing profile submissions.
func (s *SealedScheme) Encrypt(v int64) (Ciphertext, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return Ciphertext{}, fmt.Errorf("failed to generate handle salt: %w", err)
	}

	h := s.deriveHandle(tagFresh, salt)
	return s.seal(v, h), nil
}

// EncryptScalar encrypts a protocol constant deterministically.
func (s *SealedScheme) EncryptScalar(v int64) (Ciphertext, error) {
	scalar := make([]byte, valueSize)
	binary.BigEndian.PutUint64(scalar, uint64(v))

	h := s.deriveHandle(tagScalar, scalar)
	return s.seal(v, h), nil
}

// Sub computes the encrypted difference a - b.
func (s *SealedScheme) Sub(a, b Ciphertext) (Ciphertext, error) {
	va, err := s.open(a)
	if err != nil {
		return Ciphertext{}, err
	}
	vb, err := s.open(b)
	if err != nil {
		return Ciphertext{}, err
	}

	h := s.deriveHandle(tagSub, a.Handle[:], b.Handle[:])
	return s.seal(va-vb, h), nil
}

// Abs computes the encrypted absolute value.
func (s *SealedScheme) Abs(a Ciphertext) (Ciphertext, error) {
	v, err := s.open(a)
	if err != nil {
		return Ciphertext{}, err
	}
	if v < 0 {
		v = -v
	}

	h := s.deriveHandle(tagAbs, a.Handle[:])
	return s.seal(v, h), nil
}

// Decrypt reveals the cleartext value. Only the oracle worker calls this.
func (s *SealedScheme) Decrypt(ct Ciphertext) (int64, error) {
	return s.open(ct)
}

var (
	_ Scheme    = (*SealedScheme)(nil)
	_ Encrypter = (*SealedScheme)(nil)
	_ Decrypter = (*SealedScheme)(nil)
)
