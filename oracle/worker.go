package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
)

// WorkerConfig configures a decryption worker pool.
type WorkerConfig struct {
	Queue      Queue
	Decrypter  fhe.Decrypter
	SigningKey crypto.PrivateKey
	NumWorkers int
	Log        *slog.Logger
	HTTPClient *http.Client
}

// Worker consumes decryption jobs from the queue, reveals cleartexts with
// the decryption key, signs the result over the request id, and delivers it
// to the node's callback endpoint.
type Worker struct {
	queue      Queue
	decrypter  fhe.Decrypter
	signingKey crypto.PrivateKey
	publicKey  crypto.PublicKey
	numWorkers int
	log        *slog.Logger
	httpClient *http.Client

	wg      sync.WaitGroup
	cancel  context.CancelFunc
	running atomic.Bool
}

// NewWorker creates a worker pool. It does not start consuming until Start
// is called.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if cfg.Decrypter == nil {
		return nil, errors.New("decrypter is required")
	}
	if len(cfg.SigningKey) == 0 {
		return nil, errors.New("signing key is required")
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	pub, err := cfg.SigningKey.PublicKey()
	if err != nil {
		return nil, fmt.Errorf("deriving oracle public key: %w", err)
	}

	return &Worker{
		queue:      cfg.Queue,
		decrypter:  cfg.Decrypter,
		signingKey: cfg.SigningKey,
		publicKey:  pub,
		numWorkers: cfg.NumWorkers,
		log:        cfg.Log,
		httpClient: cfg.HTTPClient,
	}, nil
}

// PublicKey returns the worker's proof signing key.
func (w *Worker) PublicKey() crypto.PublicKey {
	return w.publicKey
}

// Start launches the consumer goroutines.
func (w *Worker) Start(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return errors.New("worker already running")
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.log.Info("Starting oracle workers", "numWorkers", w.numWorkers)

	for i := 0; i < w.numWorkers; i++ {
		w.wg.Add(1)
		go w.consume(ctx, i)
	}

	return nil
}

// Stop cancels the consumers and waits for them to drain.
func (w *Worker) Stop() error {
	if !w.running.Load() {
		return nil
	}

	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(30 * time.Second):
		return errors.New("worker shutdown timeout")
	}

	w.running.Store(false)
	return nil
}

func (w *Worker) consume(ctx context.Context, id int) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.queue.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.log.Error("Failed to pop job", "worker", id, "err", err)
			time.Sleep(time.Second)
			continue
		}

		w.processJob(ctx, id, job)
	}
}

func (w *Worker) processJob(ctx context.Context, id int, job *Job) {
	w.log.Info("Processing decryption request", "worker", id, "requestId", job.RequestID)

	job.Status = StatusProcessing
	if err := w.queue.Update(ctx, job); err != nil {
		w.log.Error("Failed to update job status", "worker", id, "err", err)
	}

	cleartext, err := w.decryptAll(job.Ciphertexts)
	if err != nil {
		w.fail(ctx, job, fmt.Errorf("decrypt: %w", err))
		return
	}

	proof, err := w.prove(job.RequestID, cleartext)
	if err != nil {
		w.fail(ctx, job, fmt.Errorf("sign result: %w", err))
		return
	}

	if err := w.deliver(ctx, job, cleartext, proof); err != nil {
		w.fail(ctx, job, fmt.Errorf("deliver result: %w", err))
		return
	}

	job.Status = StatusCompleted
	if err := w.queue.Update(ctx, job); err != nil {
		w.log.Error("Failed to update job status", "worker", id, "err", err)
	}
	w.log.Info("Decryption request completed", "worker", id, "requestId", job.RequestID)
}

// decryptAll reveals each ciphertext and concatenates the fixed-width
// encodings in job order.
func (w *Worker) decryptAll(cts []fhe.Ciphertext) ([]byte, error) {
	cleartext := make([]byte, 0, len(cts)*8)
	for i, ct := range cts {
		v, err := w.decrypter.Decrypt(ct)
		if err != nil {
			return nil, fmt.Errorf("ciphertext %d: %w", i, err)
		}
		cleartext = append(cleartext, core.EncodeScore(v)...)
	}
	return cleartext, nil
}

func (w *Worker) prove(requestID string, cleartext []byte) (core.Proof, error) {
	sig, err := crypto.Sign(w.signingKey, core.ProofMessage(requestID, cleartext))
	if err != nil {
		return core.Proof{}, err
	}
	return core.Proof{
		OracleKey: w.publicKey,
		Signature: sig,
	}, nil
}

func (w *Worker) deliver(ctx context.Context, job *Job, cleartext []byte, proof core.Proof) error {
	body, err := json.Marshal(CallbackRequest{
		RequestID: job.RequestID,
		Cleartext: cleartext,
		Proof:     proof,
	})
	if err != nil {
		return fmt.Errorf("marshal callback: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post callback: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("callback rejected with status %d: %s", resp.StatusCode, msg)
	}
	return nil
}

func (w *Worker) fail(ctx context.Context, job *Job, err error) {
	w.log.Error("Decryption request failed", "requestId", job.RequestID, "err", err)
	job.Status = StatusFailed
	job.Error = err.Error()
	if uerr := w.queue.Update(ctx, job); uerr != nil {
		w.log.Error("Failed to update job status", "err", uerr)
	}
}
