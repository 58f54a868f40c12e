// Package oracle implements the off-band decryption oracle: the transport
// that carries decryption jobs from the contract node to a worker holding
// the decryption capability, and the worker that reveals cleartexts and
// proves their authenticity back to the node.
package oracle

import (
	"context"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
)

// Common errors.
var (
	ErrQueueEmpty      = errors.New("queue is empty")
	ErrRequestNotFound = errors.New("request not found")
)

// JobStatus represents the state of a decryption job.
type JobStatus uint8

const (
	StatusPending JobStatus = iota
	StatusProcessing
	StatusCompleted
	StatusFailed
)

// Job is a decryption request travelling from the node to a worker.
// Ciphertext order is significant: the proof covers the concatenated
// cleartexts in job order.
type Job struct {
	RequestID   string           `json:"request_id"`
	Ciphertexts []fhe.Ciphertext `json:"ciphertexts"`
	CallbackURL string           `json:"callback_url"`
	Status      JobStatus        `json:"status"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Queue carries jobs between the node and workers.
type Queue interface {
	// Push adds a job to the queue.
	Push(ctx context.Context, job *Job) error
	// Pop blocks until a job is available and removes it from the queue.
	Pop(ctx context.Context) (*Job, error)
	// Update updates job status.
	Update(ctx context.Context, job *Job) error
	// Get retrieves a job by request id.
	Get(ctx context.Context, requestID string) (*Job, error)
	// Close closes the queue connection.
	Close() error
}

// CallbackRequest is the wire format of an oracle result delivery.
type CallbackRequest struct {
	RequestID string     `json:"request_id"`
	Cleartext []byte     `json:"cleartext"`
	Proof     core.Proof `json:"proof"`
}

// NewRequestID generates a fresh 16-byte request id. Ids must never repeat;
// collisions across 128 random bits are treated as impossible.
func NewRequestID() (string, error) {
	raw := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("generating request id: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// AttestationReportData binds an oracle's signing key and queue name into
// TEE attestation report data, so a quote vouches for exactly one key.
func AttestationReportData(oracleKey []byte, queueName string) [64]byte {
	return sha512.Sum512(append(append([]byte{}, oracleKey...), queueName...))
}
