package oracle_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/oracle"
)

func newTestScheme(t *testing.T) *fhe.SealedScheme {
	t.Helper()
	s, err := fhe.NewSealedScheme([]byte("test-contract"), []byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return s
}

func TestInProcessOracleResult(t *testing.T) {
	scheme := newTestScheme(t)
	orc, err := oracle.NewInProcessOracle(scheme, nil)
	require.NoError(t, err)

	ct, err := scheme.Encrypt(85)
	require.NoError(t, err)

	requestID, err := orc.RequestDecryption(context.Background(), []fhe.Ciphertext{ct})
	require.NoError(t, err)
	require.Contains(t, orc.Pending(), requestID)

	cleartext, proof, err := orc.Result(requestID)
	require.NoError(t, err)
	require.Equal(t, core.EncodeScore(85), cleartext)
	require.Equal(t, orc.PublicKey(), proof.OracleKey)
	require.True(t, proof.Signature.Verify(proof.OracleKey, core.ProofMessage(requestID, cleartext)))
}

func TestInProcessOracleUnknownRequest(t *testing.T) {
	orc, err := oracle.NewInProcessOracle(newTestScheme(t), nil)
	require.NoError(t, err)

	_, _, err = orc.Result("no-such-request")
	require.ErrorIs(t, err, oracle.ErrRequestNotFound)
}

func TestRequestIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, err := oracle.NewRequestID()
		require.NoError(t, err)
		require.Len(t, id, 32)
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestAttestationReportData(t *testing.T) {
	key := []byte("oracle-key")

	a := oracle.AttestationReportData(key, "queue-a")
	b := oracle.AttestationReportData(key, "queue-b")
	c := oracle.AttestationReportData([]byte("other-key"), "queue-a")

	// Report data binds both the key and the queue name.
	require.NotEqual(t, a, b)
	require.NotEqual(t, a, c)
	require.Equal(t, a, oracle.AttestationReportData(key, "queue-a"))
}
