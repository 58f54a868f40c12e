// Package client provides a typed HTTP client for the contract node. It
// signs operation envelopes with the caller's key and decodes responses.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/server"
)

// Client talks to one contract node on behalf of one identity.
type Client struct {
	baseURL    string
	signingKey crypto.PrivateKey
	httpClient *http.Client
}

// New creates a client for the node at baseURL acting as signingKey.
func New(baseURL string, signingKey crypto.PrivateKey) *Client {
	return &Client{
		baseURL:    baseURL,
		signingKey: signingKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// PublicKey returns the client's acting identity.
func (c *Client) PublicKey() (crypto.PublicKey, error) {
	return c.signingKey.PublicKey()
}

func postSigned[Req, Resp any](ctx context.Context, c *Client, path string, req *Req) (*Resp, error) {
	signed, err := crypto.NewSigned(c.signingKey, req)
	if err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}
	return post[crypto.Signed[Req], Resp](ctx, c, path, signed)
}

func post[Req, Resp any](ctx context.Context, c *Client, path string, req *Req) (*Resp, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("posting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	return crypto.DecodeMessage[Resp](resp.Body)
}

func get[Resp any](ctx context.Context, c *Client, path string) (*Resp, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("getting %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s returned status %d: %s", path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	return crypto.DecodeMessage[Resp](resp.Body)
}

// Admin operations. The signer must hold the owner role.

func (c *Client) TransferOwnership(ctx context.Context, newOwner crypto.PublicKey) error {
	_, err := postSigned[server.TransferOwnershipRequest, server.StatusResponse](ctx, c,
		"/admin/transfer-ownership", &server.TransferOwnershipRequest{NewOwner: newOwner.String()})
	return err
}

func (c *Client) AddProvider(ctx context.Context, provider crypto.PublicKey) error {
	_, err := postSigned[server.ProviderRequest, server.StatusResponse](ctx, c,
		"/admin/providers/add", &server.ProviderRequest{Provider: provider.String()})
	return err
}

func (c *Client) RemoveProvider(ctx context.Context, provider crypto.PublicKey) error {
	_, err := postSigned[server.ProviderRequest, server.StatusResponse](ctx, c,
		"/admin/providers/remove", &server.ProviderRequest{Provider: provider.String()})
	return err
}

func (c *Client) SetCooldownSeconds(ctx context.Context, seconds int64) error {
	_, err := postSigned[server.CooldownRequest, server.StatusResponse](ctx, c,
		"/admin/cooldown", &server.CooldownRequest{Seconds: seconds})
	return err
}

func (c *Client) Pause(ctx context.Context) error {
	_, err := postSigned[server.PauseRequest, server.StatusResponse](ctx, c,
		"/admin/pause", &server.PauseRequest{})
	return err
}

func (c *Client) Unpause(ctx context.Context) error {
	_, err := postSigned[server.PauseRequest, server.StatusResponse](ctx, c,
		"/admin/unpause", &server.PauseRequest{})
	return err
}

func (c *Client) OpenNewBatch(ctx context.Context) (uint64, error) {
	resp, err := postSigned[server.OpenBatchRequest, server.BatchResponse](ctx, c,
		"/admin/batches/open", &server.OpenBatchRequest{})
	if err != nil {
		return 0, err
	}
	return resp.BatchID, nil
}

func (c *Client) CloseBatch(ctx context.Context, batchID uint64) error {
	_, err := postSigned[server.CloseBatchRequest, server.BatchResponse](ctx, c,
		"/admin/batches/close", &server.CloseBatchRequest{BatchID: batchID})
	return err
}

// Provider and caller operations.

// SubmitUserGraph submits a user's encrypted knowledge graph into a batch.
// The signer must hold the provider role. Returns whether the node
// normalized a malformed ciphertext to an encrypted zero.
func (c *Client) SubmitUserGraph(ctx context.Context, user crypto.PublicKey, batchID uint64, ct fhe.Ciphertext) (bool, error) {
	resp, err := postSigned[server.SubmitGraphRequest, server.SubmitGraphResponse](ctx, c,
		"/graphs/submit", &server.SubmitGraphRequest{
			User:       user.String(),
			BatchID:    batchID,
			Ciphertext: ct,
		})
	if err != nil {
		return false, err
	}
	return resp.Normalized, nil
}

// RequestGraphSimilarityScore asks the oracle to reveal the similarity score
// of two users' submissions. Returns the oracle-assigned request id; the
// score lands later through the callback and is visible on the request state
// endpoint once processed.
func (c *Client) RequestGraphSimilarityScore(ctx context.Context, batchID uint64, userA, userB crypto.PublicKey) (string, error) {
	resp, err := postSigned[server.SimilarityRequest, server.SimilarityResponse](ctx, c,
		"/similarity/request", &server.SimilarityRequest{
			BatchID: batchID,
			UserA:   userA.String(),
			UserB:   userB.String(),
		})
	if err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

// RegisterOracle enrols an oracle key with its TEE quote.
func (c *Client) RegisterOracle(ctx context.Context, oracleKey crypto.PublicKey, quote []byte) error {
	_, err := post[server.RegisterOracleRequest, server.StatusResponse](ctx, c,
		"/oracle/register", &server.RegisterOracleRequest{
			OracleKey: oracleKey.String(),
			Quote:     quote,
		})
	return err
}

// Read-side state.

func (c *Client) CurrentBatch(ctx context.Context) (*server.BatchResponse, error) {
	return get[server.BatchResponse](ctx, c, "/state/batches/current")
}

func (c *Client) GetBatch(ctx context.Context, id uint64) (*server.BatchResponse, error) {
	return get[server.BatchResponse](ctx, c, fmt.Sprintf("/state/batches/%d", id))
}

func (c *Client) GetSubmission(ctx context.Context, batchID uint64, user crypto.PublicKey) (*server.SubmissionStateResponse, error) {
	return get[server.SubmissionStateResponse](ctx, c, fmt.Sprintf("/state/submissions/%d/%s", batchID, user.String()))
}

func (c *Client) GetRequest(ctx context.Context, requestID string) (*server.RequestStateResponse, error) {
	return get[server.RequestStateResponse](ctx, c, "/state/requests/"+requestID)
}

func (c *Client) GetConfig(ctx context.Context) (*server.ConfigResponse, error) {
	return get[server.ConfigResponse](ctx, c, "/config")
}

// RecentEvents returns the node's most recent journal entries.
func (c *Client) RecentEvents(ctx context.Context, limit int) ([]core.Event, error) {
	resp, err := get[server.EventsResponse](ctx, c, fmt.Sprintf("/state/events?limit=%d", limit))
	if err != nil {
		return nil, err
	}
	return resp.Events, nil
}
