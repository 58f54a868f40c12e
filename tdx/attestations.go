// Package tdx verifies that a decryption oracle runs inside a TDX trust
// domain. A worker binds its proof signing key into the attestation report
// data; the node checks the quote before registering the key.
package tdx

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/go-tdx-guest/abi"
	"github.com/google/go-tdx-guest/client"
	proto_checkconfig "github.com/google/go-tdx-guest/proto/checkconfig"
	proto "github.com/google/go-tdx-guest/proto/tdx"
	"github.com/google/go-tdx-guest/validate"
	"github.com/google/go-tdx-guest/verify"
)

// Measurements maps measurement register index to value: 0 is MRTD,
// 1 through 4 are RTMR0 through RTMR3.
type Measurements map[int][]byte

// Provider generates and verifies TEE attestation quotes.
type Provider interface {
	AttestationType() string
	// Attest generates a quote binding the report data.
	Attest(reportData [64]byte) ([]byte, error)
	// Verify validates a quote and returns measurements if valid.
	Verify(quote []byte, expectedReportData [64]byte) (Measurements, error)
}

// NewProvider selects a provider by kind: "local" uses the configfs TDX
// device, "remote" fetches quotes from a quote provider service, "dummy"
// skips hardware entirely.
func NewProvider(kind, remoteURL string) (Provider, error) {
	switch kind {
	case "local":
		return &LocalProvider{}, nil
	case "remote":
		if remoteURL == "" {
			return nil, errors.New("remote provider requires a URL")
		}
		return &RemoteDCAPProvider{URL: remoteURL, Timeout: 10 * time.Second}, nil
	case "dummy":
		return &DummyProvider{}, nil
	default:
		return nil, fmt.Errorf("unknown attestation provider %q", kind)
	}
}

// LocalProvider generates and verifies attestations using the local TDX device.
type LocalProvider struct{}

func (p *LocalProvider) AttestationType() string {
	return "dcap-tdx"
}

func (p *LocalProvider) Attest(reportData [64]byte) ([]byte, error) {
	qp := &client.LinuxConfigFsQuoteProvider{}
	return qp.GetRawQuote(reportData)
}

func (p *LocalProvider) Verify(quote []byte, expectedReportData [64]byte) (Measurements, error) {
	return VerifyDCAP(quote, expectedReportData[:])
}

// RemoteDCAPProvider generates attestations via a remote service and verifies locally.
type RemoteDCAPProvider struct {
	URL     string
	Timeout time.Duration
}

func (p *RemoteDCAPProvider) AttestationType() string {
	return "dcap-tdx"
}

func (p *RemoteDCAPProvider) Attest(reportData [64]byte) ([]byte, error) {
	url := fmt.Sprintf("%s/attest/%s", p.URL, hex.EncodeToString(reportData[:]))

	ctx, cancel := context.WithTimeout(context.Background(), p.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling remote quote provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("remote quote provider returned status %d: %s", resp.StatusCode, string(body))
	}

	rawQuote, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading quote from response: %w", err)
	}

	return rawQuote, nil
}

func (p *RemoteDCAPProvider) Verify(quote []byte, expectedReportData [64]byte) (Measurements, error) {
	return VerifyDCAP(quote, expectedReportData[:])
}

func mustDecodeHex(data string) []byte {
	decoded, err := hex.DecodeString(data)
	if err != nil {
		panic(err.Error())
	}
	return decoded
}

// VerifyDCAP validates a TDX DCAP quote against expected report data.
func VerifyDCAP(rawQuote []byte, expectedReportData []byte) (Measurements, error) {
	anyQuote, err := abi.QuoteToProto(rawQuote)
	if err != nil {
		return nil, fmt.Errorf("could not convert raw bytes to QuoteV4: %v", err)
	}
	quote, ok := anyQuote.(*proto.QuoteV4)
	if !ok {
		return nil, errors.New("quote is not a QuoteV4")
	}

	config := &proto_checkconfig.Config{
		RootOfTrust: &proto_checkconfig.RootOfTrust{
			CheckCrl:      true,
			GetCollateral: true,
		},
		Policy: &proto_checkconfig.Policy{
			HeaderPolicy: &proto_checkconfig.HeaderPolicy{
				MinimumQeSvn:  0,
				MinimumPceSvn: 0,
				QeVendorId:    mustDecodeHex("939a7233f79c4ca9940a0db3957f0607"),
			},
			TdQuoteBodyPolicy: &proto_checkconfig.TDQuoteBodyPolicy{
				TdAttributes: mustDecodeHex("0000001000000000"),
				ReportData:   expectedReportData,
			},
		},
	}

	options, err := verify.RootOfTrustToOptions(config.RootOfTrust)
	if err != nil {
		return nil, fmt.Errorf("converting root of trust to options: %w", err)
	}

	if err := verify.TdxQuote(quote, options); err != nil {
		return nil, fmt.Errorf("verifying TDX quote: %w", err)
	}

	opts, err := validate.PolicyToOptions(config.Policy)
	if err != nil {
		return nil, fmt.Errorf("converting policy to options: %v", err)
	}

	if err := validate.TdxQuote(quote, opts); err != nil {
		return nil, fmt.Errorf("validating TDX quote: %v", err)
	}

	return Measurements{
		0: quote.GetTdQuoteBody().MrTd,
		1: quote.GetTdQuoteBody().Rtmrs[0],
		2: quote.GetTdQuoteBody().Rtmrs[1],
		3: quote.GetTdQuoteBody().Rtmrs[2],
		4: quote.GetTdQuoteBody().Rtmrs[3],
	}, nil
}

// DummyProvider provides mock attestation for testing without TEE hardware.
type DummyProvider struct{}

func (p *DummyProvider) AttestationType() string {
	return "dummy-tdx"
}

// Attest returns the report data as a mock attestation.
func (p *DummyProvider) Attest(reportData [64]byte) ([]byte, error) {
	ret := make([]byte, len(reportData))
	copy(ret, reportData[:])
	return ret, nil
}

// Verify checks that the quote matches expected report data.
func (p *DummyProvider) Verify(quote []byte, expectedReportData [64]byte) (Measurements, error) {
	if !bytes.Equal(quote, expectedReportData[:]) {
		return nil, errors.New("attestation mismatch")
	}

	return Measurements{
		0: {0},
		1: {1},
		2: {2},
		3: {3},
		4: {4},
	}, nil
}
