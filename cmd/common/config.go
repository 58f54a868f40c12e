// Package common holds configuration loading and key handling shared by the
// node and oracle commands.
package common

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/journal"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/oracle"
)

// AttestationConfig selects the TEE attestation provider.
type AttestationConfig struct {
	// Provider is "local", "remote" or "dummy".
	Provider string `yaml:"provider"`
	// RemoteURL is the remote quote provider, for Provider "remote".
	RemoteURL string `yaml:"remote_url"`
}

// KeysConfig carries hex-encoded key material. Empty signing keys are
// generated at startup.
type KeysConfig struct {
	SigningKey string `yaml:"signing_key"`
	// SealingKey is the 32-byte scheme key shared between the node and the
	// oracle worker.
	SealingKey string `yaml:"sealing_key"`
}

// Config is the YAML configuration for cmd/node and cmd/oracle.
type Config struct {
	HTTPAddr    string `yaml:"http_addr"`
	MetricsAddr string `yaml:"metrics_addr"`
	EnablePprof bool   `yaml:"enable_pprof"`
	EnableCORS  bool   `yaml:"enable_cors"`

	// ContractID is the deployment identity mixed into state hashes and
	// ciphertext handles. Defaults to the node's public key.
	ContractID string `yaml:"contract_id"`

	// Owner is the hex public key seeded as owner on first run.
	Owner string `yaml:"owner"`

	CooldownSeconds int64 `yaml:"cooldown_seconds"`

	StorePath string `yaml:"store_path"`
	QueueName string `yaml:"queue_name"`

	// NodeURL is the node's base URL; the oracle worker registers against it
	// and the node advertises NodeURL+"/oracle/callback" in jobs.
	NodeURL string `yaml:"node_url"`

	// Workers is the oracle worker pool size.
	Workers int `yaml:"workers"`

	Keys        KeysConfig             `yaml:"keys"`
	Redis       oracle.RedisConfig     `yaml:"redis"`
	Postgres    journal.PostgresConfig `yaml:"postgres"`
	Attestation AttestationConfig      `yaml:"attestation"`

	DrainDuration            time.Duration `yaml:"drain_duration"`
	GracefulShutdownDuration time.Duration `yaml:"graceful_shutdown_duration"`
}

// DefaultConfig returns a config suitable for local development.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:        ":8080",
		CooldownSeconds: 0,
		StorePath:       "",
		QueueName:       "default",
		NodeURL:         "http://localhost:8080",
		Workers:         2,
		Redis: oracle.RedisConfig{
			Addr: "localhost:6379",
		},
		Attestation: AttestationConfig{
			Provider: "dummy",
		},
		DrainDuration:            5 * time.Second,
		GracefulShutdownDuration: 10 * time.Second,
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}
