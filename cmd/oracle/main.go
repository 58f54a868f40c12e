// Command oracle runs a decryption oracle worker. The worker holds the
// scheme key, consumes decryption jobs from the redis queue, reveals
// cleartext scores and delivers signed results to the node's callback
// endpoint. On startup it attests its signing key and registers with the
// node.
//
// # Usage
//
//	go run ./cmd/oracle --config=oracle.yaml
//	go run ./cmd/oracle --redis=localhost:6379 --queue=default --node-url=http://localhost:8080
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/api/httpserver"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/client"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/cmd/common"
	rootcommon "github.com/dolynnhutchings59/Knowledge-Graph-Social/common"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/oracle"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/tdx"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		redisAddr   = flag.String("redis", "", "Redis address for the job queue")
		queueName   = flag.String("queue", "", "Queue name")
		nodeURL     = flag.String("node-url", "", "Contract node base URL")
		metricsAddr = flag.String("metrics", "", "Metrics listen address")
		numWorkers  = flag.Int("workers", 0, "Number of worker goroutines")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *redisAddr != "" {
		cfg.Redis.Addr = *redisAddr
	}
	if *queueName != "" {
		cfg.QueueName = *queueName
	}
	if *nodeURL != "" {
		cfg.NodeURL = *nodeURL
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *numWorkers > 0 {
		cfg.Workers = *numWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		cancel()
	}()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(configPath string) (*common.Config, error) {
	if configPath != "" {
		return common.LoadConfig(configPath)
	}
	return common.DefaultConfig(), nil
}

func run(ctx context.Context, cfg *common.Config) error {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	signingKey, err := common.LoadOrGenerateSigningKey(cfg.Keys.SigningKey)
	if err != nil {
		return fmt.Errorf("signing key: %w", err)
	}

	contractID, err := resolveContractID(ctx, cfg, signingKey, log)
	if err != nil {
		return err
	}

	sealingKey, err := common.LoadOrGenerateSealingKey(cfg.Keys.SealingKey)
	if err != nil {
		return fmt.Errorf("sealing key: %w", err)
	}
	scheme, err := fhe.NewSealedScheme(contractID, sealingKey)
	if err != nil {
		return fmt.Errorf("creating scheme: %w", err)
	}

	queue, err := oracle.NewRedisQueue(cfg.Redis, cfg.QueueName)
	if err != nil {
		return fmt.Errorf("connecting to queue: %w", err)
	}
	defer queue.Close()

	worker, err := oracle.NewWorker(oracle.WorkerConfig{
		Queue:      queue,
		Decrypter:  scheme,
		SigningKey: signingKey,
		NumWorkers: cfg.Workers,
		Log:        log,
	})
	if err != nil {
		return fmt.Errorf("creating worker: %w", err)
	}

	if err := register(ctx, cfg, worker, signingKey, log); err != nil {
		return fmt.Errorf("registering with node: %w", err)
	}

	if err := worker.Start(ctx); err != nil {
		return fmt.Errorf("starting worker: %w", err)
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		Log:                      log,
		DrainDuration:            cfg.DrainDuration,
		GracefulShutdownDuration: cfg.GracefulShutdownDuration,
		ReadTimeout:              5 * time.Second,
		WriteTimeout:             10 * time.Second,
	})
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}
	srv.RunInBackground()

	log.Info("Oracle worker running",
		"version", rootcommon.Version,
		"queue", cfg.QueueName,
		"oracleKey", worker.PublicKey().String(),
		"workers", cfg.Workers)

	<-ctx.Done()

	log.Info("Shutting down oracle worker")
	srv.Shutdown()
	return worker.Stop()
}

// resolveContractID uses the configured id, falling back to the node's
// advertised contract identity so handles derive identically on both sides.
func resolveContractID(ctx context.Context, cfg *common.Config, signingKey crypto.PrivateKey, log *slog.Logger) ([]byte, error) {
	if cfg.ContractID != "" {
		return []byte(cfg.ContractID), nil
	}

	nodeClient := client.New(cfg.NodeURL, signingKey)
	nodeCfg, err := nodeClient.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching contract identity from node: %w", err)
	}
	log.Info("Fetched contract identity from node", "contractId", nodeCfg.ContractID)

	id, err := hex.DecodeString(nodeCfg.ContractID)
	if err != nil {
		return nil, fmt.Errorf("decoding contract identity: %w", err)
	}
	return id, nil
}

func register(ctx context.Context, cfg *common.Config, worker *oracle.Worker, signingKey crypto.PrivateKey, log *slog.Logger) error {
	attestation, err := tdx.NewProvider(cfg.Attestation.Provider, cfg.Attestation.RemoteURL)
	if err != nil {
		return err
	}

	reportData := oracle.AttestationReportData(worker.PublicKey().Bytes(), cfg.QueueName)
	quote, err := attestation.Attest(reportData)
	if err != nil {
		return fmt.Errorf("generating attestation quote: %w", err)
	}

	nodeClient := client.New(cfg.NodeURL, signingKey)
	if err := nodeClient.RegisterOracle(ctx, worker.PublicKey(), quote); err != nil {
		return err
	}

	log.Info("Registered oracle key with node",
		"node", cfg.NodeURL,
		"attestationType", attestation.AttestationType())
	return nil
}
