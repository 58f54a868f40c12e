// Package common holds identifiers shared across the node's components.
package common

// PackageName labels metrics and logs emitted by this module.
const PackageName = "knowledge-graph-social"

// Version is set at build time via -ldflags.
var Version = "dev"
