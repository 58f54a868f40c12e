// Package cmd provides the service binaries.
//
// # Commands
//
// node: Runs the contract node. Hosts the batch ledger and the signed
// operation API, dispatches decryption jobs to the oracle queue, and
// consumes oracle callbacks.
//
//	go run ./cmd/node --owner=<hex pubkey>
//	go run ./cmd/node --config=config.yaml
//
// oracle: Runs the decryption oracle worker pool. Consumes jobs from the
// queue, reveals cleartexts with the sealing key, signs result proofs and
// delivers them to the node's callback endpoint. Registers its proof key
// with the node on startup, vouched for by a TEE quote.
//
//	go run ./cmd/oracle --node-url=http://localhost:8080
//	go run ./cmd/oracle --config=config.yaml --workers=4
//
// # Configuration
//
// Both commands support YAML configuration files via the --config flag.
// Command-line flags override config file values. See cmd/common for the
// full schema.
package cmd
