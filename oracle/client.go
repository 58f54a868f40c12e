package oracle

import (
	"context"
	"fmt"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
)

// QueueClient is the node-side oracle transport. It assigns request ids
// and enqueues decryption jobs for a worker to pick up.
type QueueClient struct {
	queue       Queue
	callbackURL string
}

// NewQueueClient wraps a queue as a core.OracleClient. callbackURL is the
// node's own callback endpoint, carried inside each job so the worker knows
// where to deliver the result.
func NewQueueClient(queue Queue, callbackURL string) *QueueClient {
	return &QueueClient{
		queue:       queue,
		callbackURL: callbackURL,
	}
}

func (c *QueueClient) RequestDecryption(ctx context.Context, cts []fhe.Ciphertext) (string, error) {
	requestID, err := NewRequestID()
	if err != nil {
		return "", err
	}

	job := &Job{
		RequestID:   requestID,
		Ciphertexts: cts,
		CallbackURL: c.callbackURL,
	}
	if err := c.queue.Push(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue decryption request: %w", err)
	}

	return requestID, nil
}

var _ core.OracleClient = (*QueueClient)(nil)
