package tdx

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewProvider(t *testing.T) {
	p, err := NewProvider("dummy", "")
	require.NoError(t, err)
	require.Equal(t, "dummy-tdx", p.AttestationType())

	p, err = NewProvider("local", "")
	require.NoError(t, err)
	require.Equal(t, "dcap-tdx", p.AttestationType())

	p, err = NewProvider("remote", "http://localhost:8181")
	require.NoError(t, err)
	require.Equal(t, "dcap-tdx", p.AttestationType())

	_, err = NewProvider("unknown", "")
	require.Error(t, err)
}

func TestDummyProviderRoundTrip(t *testing.T) {
	p := &DummyProvider{}

	var reportData [64]byte
	copy(reportData[:], "oracle-key-and-queue-binding")

	quote, err := p.Attest(reportData)
	require.NoError(t, err)

	_, err = p.Verify(quote, reportData)
	require.NoError(t, err)

	var other [64]byte
	copy(other[:], "different-binding")
	_, err = p.Verify(quote, other)
	require.Error(t, err)
}
