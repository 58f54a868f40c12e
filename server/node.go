// Package server exposes the contract over HTTP: signed operation envelopes
// in, contract state transitions out, plus the oracle registration and
// callback endpoints.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/oracle"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/tdx"
)

// EventReader serves the recent-events endpoint.
type EventReader interface {
	Recent(ctx context.Context, limit int) ([]core.Event, error)
}

// NodeConfig assembles the node service.
type NodeConfig struct {
	Contract *core.Contract

	// Attestation verifies oracle registration quotes. When nil, oracle
	// registration is disabled and keys must be seeded out of band.
	Attestation tdx.Provider

	// QueueName is bound into oracle attestation report data together with
	// the oracle key, tying a quote to one deployment.
	QueueName string

	// Events serves the recent-events endpoint. Optional.
	Events EventReader

	Log *slog.Logger
}

// Node wires the contract state machine to its HTTP surface.
type Node struct {
	contract    *core.Contract
	attestation tdx.Provider
	queueName   string
	events      EventReader
	log         *slog.Logger
}

// NewNode creates the node service.
func NewNode(cfg NodeConfig) (*Node, error) {
	if cfg.Contract == nil {
		return nil, errors.New("contract is required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	return &Node{
		contract:    cfg.Contract,
		attestation: cfg.Attestation,
		queueName:   cfg.QueueName,
		events:      cfg.Events,
		log:         cfg.Log,
	}, nil
}

// Contract returns the underlying state machine.
func (n *Node) Contract() *core.Contract {
	return n.contract
}

// RegisterOracle verifies the TEE quote binding the oracle's signing key to
// this deployment's queue, then registers the key with the contract.
func (n *Node) RegisterOracle(oracleKey crypto.PublicKey, quote []byte) error {
	if n.attestation == nil {
		return errors.New("oracle registration is disabled")
	}

	reportData := oracle.AttestationReportData(oracleKey.Bytes(), n.queueName)
	measurements, err := n.attestation.Verify(quote, reportData)
	if err != nil {
		return fmt.Errorf("verifying oracle attestation: %w", err)
	}
	n.log.Info("Oracle attestation verified",
		"oracleKey", oracleKey.String(),
		"attestationType", n.attestation.AttestationType(),
		"measurements", len(measurements))

	return n.contract.RegisterOracle(oracleKey)
}
