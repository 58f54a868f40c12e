// Command node runs a contract node: the HTTP surface over the batch
// ledger, submission store and similarity request protocol, plus the
// oracle-facing queue and callback endpoint.
//
// # Configuration File
//
// Create a YAML file with node settings:
//
//	http_addr: ":8080"
//	metrics_addr: ":9090"
//	owner: "<hex ed25519 public key>"
//	cooldown_seconds: 60
//	store_path: "/var/lib/kgs/state"
//	queue_name: "default"
//	node_url: "http://localhost:8080"
//	keys:
//	  sealing_key: "<hex 32 bytes>"
//	redis:
//	  addr: "localhost:6379"
//	postgres:
//	  host: ""            # empty disables the postgres journal
//	attestation:
//	  provider: "dummy"   # local, remote or dummy
//
// # Usage
//
//	go run ./cmd/node --config=node.yaml
//	go run ./cmd/node --addr=:8080 --owner=<hex> --store=/tmp/kgs
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dolynnhutchings59/Knowledge-Graph-Social/api/httpserver"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/cmd/common"
	rootcommon "github.com/dolynnhutchings59/Knowledge-Graph-Social/common"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/core"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/crypto"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/fhe"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/journal"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/oracle"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/server"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/store"
	"github.com/dolynnhutchings59/Knowledge-Graph-Social/tdx"
)

func main() {
	var (
		configPath  = flag.String("config", "", "Path to YAML config file")
		addr        = flag.String("addr", "", "HTTP listen address")
		metricsAddr = flag.String("metrics", "", "Metrics listen address")
		ownerHex    = flag.String("owner", "", "Initial owner public key (hex)")
		storePath   = flag.String("store", "", "Badger state directory (empty for in-memory)")
		redisAddr   = flag.String("redis", "", "Redis address for the oracle queue")
		queueName   = flag.String("queue", "", "Oracle queue name")
		nodeURL     = flag.String("node-url", "", "Externally reachable base URL of this node")
		cooldown    = flag.Int64("cooldown", -1, "Cooldown seconds between rate-limited actions")
	)
	flag.Parse()

	cfg, err := loadConfiguration(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *addr != "" {
		cfg.HTTPAddr = *addr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *ownerHex != "" {
		cfg.Owner = *ownerHex
	}
	if *storePath != "" {
		cfg.StorePath = *storePath
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
	if *cooldown >= 0 {
		cfg.CooldownSeconds = *cooldown
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

	owner, err := crypto.NewPublicKeyFromString(cfg.Owner)
	if err != nil {
		return fmt.Errorf("owner key: %w", err)
	}

	contractID := []byte(cfg.ContractID)
	if len(contractID) == 0 {
		contractID = owner.Bytes()
	}

	sealingKey, err := common.LoadOrGenerateSealingKey(cfg.Keys.SealingKey)
	if err != nil {
		return fmt.Errorf("sealing key: %w", err)
	}
	scheme, err := fhe.NewSealedScheme(contractID, sealingKey)
	if err != nil {
		return fmt.Errorf("creating scheme: %w", err)
	}

	stateStore, err := openStore(cfg.StorePath)
	if err != nil {
		return fmt.Errorf("opening state store: %w", err)
	}
	defer stateStore.Close()

	queue, err := oracle.NewRedisQueue(cfg.Redis, cfg.QueueName)
	if err != nil {
		return fmt.Errorf("connecting to oracle queue: %w", err)
	}
	defer queue.Close()
	oracleClient := oracle.NewQueueClient(queue, cfg.NodeURL+"/oracle/callback")

	events, eventReader, closeJournal, err := openJournal(cfg, log)
	if err != nil {
		return fmt.Errorf("opening event journal: %w", err)
	}
	defer closeJournal()

	contract, err := core.New(core.Config{
		Store:           stateStore,
		Scheme:          scheme,
		Oracle:          oracleClient,
		Events:          events,
		ContractID:      contractID,
		InitialOwner:    owner,
		CooldownSeconds: cfg.CooldownSeconds,
	})
	if err != nil {
		return fmt.Errorf("loading contract: %w", err)
	}

	attestation, err := tdx.NewProvider(cfg.Attestation.Provider, cfg.Attestation.RemoteURL)
	if err != nil {
		return fmt.Errorf("attestation provider: %w", err)
	}

	node, err := server.NewNode(server.NodeConfig{
		Contract:    contract,
		Attestation: attestation,
		QueueName:   cfg.QueueName,
		Events:      eventReader,
		Log:         log,
	})
	if err != nil {
		return fmt.Errorf("creating node: %w", err)
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.HTTPAddr,
		MetricsAddr:              cfg.MetricsAddr,
		EnablePprof:              cfg.EnablePprof,
		EnableCORS:               cfg.EnableCORS,
		Log:                      log,
		DrainDuration:            cfg.DrainDuration,
		GracefulShutdownDuration: cfg.GracefulShutdownDuration,
		ReadTimeout:              15 * time.Second,
		WriteTimeout:             15 * time.Second,
	}, server.NewNodeHandler(node))
	if err != nil {
		return fmt.Errorf("creating HTTP server: %w", err)
	}

	log.Info("Node starting",
		"version", rootcommon.Version,
		"listenAddr", cfg.HTTPAddr,
		"owner", owner.String(),
		"currentBatch", contract.CurrentBatch().ID,
		"queue", cfg.QueueName)
	srv.RunInBackground()

	<-ctx.Done()

	log.Info("Shutting down node")
	srv.Shutdown()
	return nil
}

func openStore(path string) (store.StateStore, error) {
	if path == "" {
		return store.NewMemoryStore(), nil
	}
	return store.NewBadgerStore(store.BadgerConfig{Path: path, SyncWrites: true})
}

func openJournal(cfg *common.Config, log *slog.Logger) (core.Sink, server.EventReader, func(), error) {
	if cfg.Postgres.Host == "" {
		j := journal.NewMemoryJournal()
		return j, j, func() {}, nil
	}

	j, err := journal.NewPostgresJournal(&cfg.Postgres, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return j, j, func() {
		if err := j.Close(); err != nil {
			log.Error("Failed to close event journal", "err", err)
		}
	}, nil
}
