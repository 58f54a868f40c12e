package crypto_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
)

type testPayload struct {
	User    string `json:"user"`
	BatchID uint64 `json:"batch_id"`
}

func TestSignedRoundTrip(t *testing.T) {
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	payload := &testPayload{User: "alice", BatchID: 3}
	signed, err := crypto.NewSigned(priv, payload)
	require.NoError(t, err)

	// Over the wire and back.
	data, err := crypto.SerializeMessage(signed)
	require.NoError(t, err)
	decoded, err := crypto.DecodeMessage[crypto.Signed[testPayload]](bytes.NewReader(data))
	require.NoError(t, err)

	obj, signer, err := decoded.Recover()
	require.NoError(t, err)
	require.Equal(t, payload, obj)
	require.True(t, pub.Equal(signer))
}

func TestSignedRejectsTamperedObject(t *testing.T) {
	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := crypto.NewSigned(priv, &testPayload{User: "alice"})
	require.NoError(t, err)

	signed.Object.User = "mallory"
	_, _, err = signed.Recover()
	require.Error(t, err)
}

func TestSignedRejectsSubstitutedKey(t *testing.T) {
	_, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	otherPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := crypto.NewSigned(priv, &testPayload{User: "alice"})
	require.NoError(t, err)

	// The signature covers the public key, so swapping in another
	// identity invalidates the envelope.
	signed.PublicKey = otherPub
	_, _, err = signed.Recover()
	require.Error(t, err)
}

func TestPublicKeyHexRoundTrip(t *testing.T) {
	pub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	parsed, err := crypto.NewPublicKeyFromString(pub.String())
	require.NoError(t, err)
	require.True(t, pub.Equal(parsed))

	_, err = crypto.NewPublicKeyFromString("not-hex")
	require.Error(t, err)

	_, err = crypto.NewPublicKeyFromString("abcd")
	require.Error(t, err)
}

func TestSignVerify(t *testing.T) {
	pub, priv, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("similarity result")
	sig, err := crypto.Sign(priv, msg)
	require.NoError(t, err)

	require.True(t, sig.Verify(pub, msg))
	require.False(t, sig.Verify(pub, []byte("different message")))

	otherPub, _, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.False(t, sig.Verify(otherPub, msg))
}
