package server

import (
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
)

// Write operations arrive as crypto.Signed envelopes around these payloads;
// the recovered signer is the acting identity.

// TransferOwnershipRequest hands the owner role to another identity.
type TransferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

// ProviderRequest adds or removes a provider.
type ProviderRequest struct {
	Provider string `json:"provider"`
}

// CooldownRequest updates the global cooldown threshold.
type CooldownRequest struct {
	Seconds int64 `json:"seconds"`
}

// PauseRequest pauses or unpauses the contract, depending on the route.
type PauseRequest struct{}

// OpenBatchRequest opens the next batch.
type OpenBatchRequest struct{}

// CloseBatchRequest closes an open batch.
type CloseBatchRequest struct {
	BatchID uint64 `json:"batch_id"`
}

// SubmitGraphRequest submits a user's encrypted knowledge graph into a batch.
type SubmitGraphRequest struct {
	User       string         `json:"user"`
	BatchID    uint64         `json:"batch_id"`
	Ciphertext fhe.Ciphertext `json:"ciphertext"`
}

// SimilarityRequest asks the oracle for the similarity score of two users'
// submissions in a batch.
type SimilarityRequest struct {
	BatchID uint64 `json:"batch_id"`
	UserA   string `json:"user_a"`
	UserB   string `json:"user_b"`
}

// RegisterOracleRequest enrols an oracle signing key, vouched for by a TEE
// quote over the key and queue name.
type RegisterOracleRequest struct {
	OracleKey string `json:"oracle_key"`
	Quote     []byte `json:"quote"`
}

// Responses.

type StatusResponse struct {
	Status string `json:"status"`
}

type BatchResponse struct {
	BatchID uint64 `json:"batch_id"`
	Closed  bool   `json:"closed"`
}

type SubmitGraphResponse struct {
	BatchID uint64 `json:"batch_id"`
	// Normalized reports that a malformed ciphertext was replaced with an
	// encrypted zero.
	Normalized bool `json:"normalized"`
}

type SimilarityResponse struct {
	RequestID string `json:"request_id"`
}

type CallbackResponse struct {
	RequestID string `json:"request_id"`
	Score     int64  `json:"score"`
}

type SubmissionStateResponse struct {
	BatchID   uint64 `json:"batch_id"`
	User      string `json:"user"`
	Submitted bool   `json:"submitted"`
}

type RequestStateResponse struct {
	RequestID string `json:"request_id"`
	BatchID   uint64 `json:"batch_id"`
	UserA     string `json:"user_a"`
	UserB     string `json:"user_b"`
	Processed bool   `json:"processed"`
}

type ConfigResponse struct {
	ContractID      string `json:"contract_id"`
	CooldownSeconds int64  `json:"cooldown_seconds"`
	Paused          bool   `json:"paused"`
	CurrentBatch    uint64 `json:"current_batch"`
}

type EventsResponse struct {
	Events []core.Event `json:"events"`
}
