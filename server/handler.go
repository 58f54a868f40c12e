package server

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/metrics"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/oracle"
)

// NodeHandler registers the contract's HTTP routes.
type NodeHandler struct {
	node *Node
	log  *slog.Logger
}

// NewNodeHandler creates a handler for the node service.
func NewNodeHandler(node *Node) *NodeHandler {
	return &NodeHandler{node: node, log: node.log}
}

// RegisterRoutes registers the contract routes with the router.
func (h *NodeHandler) RegisterRoutes(r chi.Router) {
	r.Post("/admin/transfer-ownership", h.handleTransferOwnership)
	r.Post("/admin/providers/add", h.handleAddProvider)
	r.Post("/admin/providers/remove", h.handleRemoveProvider)
	r.Post("/admin/cooldown", h.handleSetCooldown)
	r.Post("/admin/pause", h.handlePause)
	r.Post("/admin/unpause", h.handleUnpause)
	r.Post("/admin/batches/open", h.handleOpenBatch)
	r.Post("/admin/batches/close", h.handleCloseBatch)

	r.Post("/graphs/submit", h.handleSubmitGraph)
	r.Post("/similarity/request", h.handleSimilarityRequest)

	r.Post("/oracle/callback", h.handleOracleCallback)
	r.Post("/oracle/register", h.handleRegisterOracle)

	r.Get("/state/batches/current", h.handleCurrentBatch)
	r.Get("/state/batches/{id}", h.handleGetBatch)
	r.Get("/state/submissions/{batch}/{user}", h.handleGetSubmission)
	r.Get("/state/requests/{id}", h.handleGetRequest)
	r.Get("/state/events", h.handleRecentEvents)
	r.Get("/config", h.handleConfig)
}

// httpStatus maps the contract error taxonomy onto HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, core.ErrNotOwner),
		errors.Is(err, core.ErrNotProvider),
		errors.Is(err, core.ErrUnknownOracle),
		errors.Is(err, core.ErrInvalidProof):
		return http.StatusForbidden
	case errors.Is(err, core.ErrCooldownActive):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrPaused),
		errors.Is(err, core.ErrAlreadyPaused),
		errors.Is(err, core.ErrNotPaused),
		errors.Is(err, core.ErrBatchClosedOrInvalid),
		errors.Is(err, core.ErrGraphAlreadySubmitted),
		errors.Is(err, core.ErrReplayAttempt):
		return http.StatusConflict
	case errors.Is(err, core.ErrMissingSubmission),
		errors.Is(err, core.ErrUnknownRequest):
		return http.StatusNotFound
	case errors.Is(err, core.ErrStateMismatch),
		errors.Is(err, core.ErrInvalidOwner):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *NodeHandler) writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), httpStatus(err))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// recoverSigned decodes a signed envelope from the request body and verifies
// the signature, returning the payload and the signer.
func recoverSigned[T any](r *http.Request) (*T, crypto.PublicKey, error) {
	signed, err := crypto.DecodeMessage[crypto.Signed[T]](r.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding request: %w", err)
	}
	obj, signer, err := signed.Recover()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid signature: %w", err)
	}
	return obj, signer, nil
}

func (h *NodeHandler) finish(w http.ResponseWriter, op string, start time.Time, err error) bool {
	metrics.IncOperation(op, err)
	metrics.ObserveRequestDuration(op, time.Since(start))
	if err != nil {
		h.writeError(w, err)
		return false
	}
	return true
}

func (h *NodeHandler) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, signer, err := recoverSigned[TransferOwnershipRequest](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	newOwner, err := crypto.NewPublicKeyFromString(req.NewOwner)
	if err != nil {
		http.Error(w, "invalid new owner key", http.StatusBadRequest)
		return
	}

	if ok := h.finish(w, "transfer-ownership", start, h.node.contract.TransferOwnership(signer, newOwner)); !ok {
		return
	}
	writeJSON(w, &StatusResponse{Status: "ok"})
}

func (h *NodeHandler) handleAddProvider(w http.ResponseWriter, r *http.Request) {
	h.handleProvider(w, r, true)
}

func (h *NodeHandler) handleRemoveProvider(w http.ResponseWriter, r *http.Request) {
	h.handleProvider(w, r, false)
}

func (h *NodeHandler) handleProvider(w http.ResponseWriter, r *http.Request, add bool) {
	start := time.Now()
	req, signer, err := recoverSigned[ProviderRequest](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	provider, err := crypto.NewPublicKeyFromString(req.Provider)
	if err != nil {
		http.Error(w, "invalid provider key", http.StatusBadRequest)
		return
	}

	op := "remove-provider"
	if add {
		op = "add-provider"
		err = h.node.contract.AddProvider(signer, provider)
	} else {
		err = h.node.contract.RemoveProvider(signer, provider)
	}
	if ok := h.finish(w, op, start, err); !ok {
		return
	}
	writeJSON(w, &StatusResponse{Status: "ok"})
}

func (h *NodeHandler) handleSetCooldown(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, signer, err := recoverSigned[CooldownRequest](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if ok := h.finish(w, "set-cooldown", start, h.node.contract.SetCooldownSeconds(signer, req.Seconds)); !ok {
		return
	}
	writeJSON(w, &StatusResponse{Status: "ok"})
}

func (h *NodeHandler) handlePause(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	_, signer, err := recoverSigned[PauseRequest](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if ok := h.finish(w, "pause", start, h.node.contract.Pause(signer)); !ok {
		return
	}
	writeJSON(w, &StatusResponse{Status: "paused"})
}

func (h *NodeHandler) handleUnpause(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	_, signer, err := recoverSigned[PauseRequest](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if ok := h.finish(w, "unpause", start, h.node.contract.Unpause(signer)); !ok {
		return
	}
	writeJSON(w, &StatusResponse{Status: "active"})
}

func (h *NodeHandler) handleOpenBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	_, signer, err := recoverSigned[OpenBatchRequest](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := h.node.contract.OpenNewBatch(signer)
	if ok := h.finish(w, "open-batch", start, err); !ok {
		return
	}
	writeJSON(w, &BatchResponse{BatchID: id})
}

func (h *NodeHandler) handleCloseBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, signer, err := recoverSigned[CloseBatchRequest](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if ok := h.finish(w, "close-batch", start, h.node.contract.CloseBatch(signer, req.BatchID)); !ok {
		return
	}
	writeJSON(w, &BatchResponse{BatchID: req.BatchID, Closed: true})
}

func (h *NodeHandler) handleSubmitGraph(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, signer, err := recoverSigned[SubmitGraphRequest](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := crypto.NewPublicKeyFromString(req.User)
	if err != nil {
		http.Error(w, "invalid user key", http.StatusBadRequest)
		return
	}

	normalized, err := h.node.contract.SubmitUserGraph(signer, user, req.BatchID, req.Ciphertext)
	if ok := h.finish(w, "submit-graph", start, err); !ok {
		return
	}
	if normalized {
		h.log.Warn("Malformed ciphertext normalized to encrypted zero",
			"batchId", req.BatchID, "user", req.User)
	}
	writeJSON(w, &SubmitGraphResponse{BatchID: req.BatchID, Normalized: normalized})
}

func (h *NodeHandler) handleSimilarityRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	req, signer, err := recoverSigned[SimilarityRequest](r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	userA, err := crypto.NewPublicKeyFromString(req.UserA)
	if err != nil {
		http.Error(w, "invalid user key", http.StatusBadRequest)
		return
	}
	userB, err := crypto.NewPublicKeyFromString(req.UserB)
	if err != nil {
		http.Error(w, "invalid user key", http.StatusBadRequest)
		return
	}

	requestID, err := h.node.contract.RequestGraphSimilarityScore(r.Context(), signer, req.BatchID, userA, userB)
	if ok := h.finish(w, "similarity-request", start, err); !ok {
		return
	}
	writeJSON(w, &SimilarityResponse{RequestID: requestID})
}

// handleOracleCallback is authenticated by the oracle proof inside the body,
// not by a signed envelope: the proof covers the request id and cleartext,
// which is exactly what the contract verifies.
func (h *NodeHandler) handleOracleCallback(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req oracle.CallbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	score, err := h.node.contract.OnDecryptionResult(req.RequestID, req.Cleartext, req.Proof)
	metrics.IncCallback(err)
	metrics.ObserveRequestDuration("oracle-callback", time.Since(start))
	if err != nil {
		h.log.Warn("Oracle callback rejected", "requestId", req.RequestID, "err", err)
		h.writeError(w, err)
		return
	}

	writeJSON(w, &CallbackResponse{RequestID: req.RequestID, Score: score})
}

func (h *NodeHandler) handleRegisterOracle(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req RegisterOracleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	oracleKey, err := crypto.NewPublicKeyFromString(req.OracleKey)
	if err != nil {
		http.Error(w, "invalid oracle key", http.StatusBadRequest)
		return
	}

	if ok := h.finish(w, "register-oracle", start, h.node.RegisterOracle(oracleKey, req.Quote)); !ok {
		return
	}
	writeJSON(w, &StatusResponse{Status: "ok"})
}

func (h *NodeHandler) handleCurrentBatch(w http.ResponseWriter, r *http.Request) {
	b := h.node.contract.CurrentBatch()
	writeJSON(w, &BatchResponse{BatchID: b.ID, Closed: b.Closed})
}

func (h *NodeHandler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid batch id", http.StatusBadRequest)
		return
	}

	b, ok := h.node.contract.GetBatch(id)
	if !ok {
		http.Error(w, "batch not found", http.StatusNotFound)
		return
	}
	writeJSON(w, &BatchResponse{BatchID: b.ID, Closed: b.Closed})
}

// handleGetSubmission exposes the submitted flag only; ciphertext payloads
// never leave the node through the read side.
func (h *NodeHandler) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	batchID, err := strconv.ParseUint(chi.URLParam(r, "batch"), 10, 64)
	if err != nil {
		http.Error(w, "invalid batch id", http.StatusBadRequest)
		return
	}
	user, err := crypto.NewPublicKeyFromString(chi.URLParam(r, "user"))
	if err != nil {
		http.Error(w, "invalid user key", http.StatusBadRequest)
		return
	}

	writeJSON(w, &SubmissionStateResponse{
		BatchID:   batchID,
		User:      user.String(),
		Submitted: h.node.contract.HasSubmission(batchID, user),
	})
}

func (h *NodeHandler) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "id")
	dc, ok := h.node.contract.GetContext(requestID)
	if !ok {
		http.Error(w, "request not found", http.StatusNotFound)
		return
	}

	writeJSON(w, &RequestStateResponse{
		RequestID: requestID,
		BatchID:   dc.BatchID,
		UserA:     dc.UserA,
		UserB:     dc.UserB,
		Processed: dc.Processed,
	})
}

func (h *NodeHandler) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	if h.node.events == nil {
		http.Error(w, "event journal not configured", http.StatusNotFound)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 1000 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	events, err := h.node.events.Recent(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, &EventsResponse{Events: events})
}

func (h *NodeHandler) handleConfig(w http.ResponseWriter, r *http.Request) {
	c := h.node.contract
	writeJSON(w, &ConfigResponse{
		ContractID:      hex.EncodeToString(c.ContractID()),
		CooldownSeconds: c.CooldownSeconds(),
		Paused:          c.IsPaused(),
		CurrentBatch:    c.CurrentBatch().ID,
	})
}
