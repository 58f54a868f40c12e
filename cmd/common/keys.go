package common

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
)

// LoadOrGenerateSigningKey decodes a hex-encoded ed25519 private key, or
// generates a fresh one when the input is empty.
func LoadOrGenerateSigningKey(keyHex string) (crypto.PrivateKey, error) {
	if keyHex == "" {
		_, key, err := crypto.GenerateKeyPair()
		return key, err
	}

	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding signing key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, errors.New("signing key must be a 64-byte ed25519 private key")
	}
	return crypto.NewPrivateKeyFromBytes(raw), nil
}

// LoadOrGenerateSealingKey decodes the 32-byte scheme key, or generates a
// fresh one when the input is empty. A generated key only works for
// single-process setups; the node and oracle must share the key otherwise.
func LoadOrGenerateSealingKey(keyHex string) ([]byte, error) {
	if keyHex == "" {
		key := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, key); err != nil {
			return nil, err
		}
		return key, nil
	}

	raw, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding sealing key: %w", err)
	}
	if len(raw) != 32 {
		return nil, errors.New("sealing key must be 32 bytes")
	}
	return raw, nil
}
