// Package main (cmd/registryd) runs the proof compliance registry server.
//
// Configuration comes from an optional YAML file (--config) with command line flags taking
// precedence. A minimal single node setup:
//
//	registryd --store sqlite:///var/lib/proof-registry/proofs.db --sink log://
//
// Block numbers come from a local clock (--genesis, --block-time) or from an Ethereum chain
// head when --rpc-addr is set.
package main
