// Package main (cmd/registry_client) is a command line client for the proof compliance registry.
//
//	keygen  - generate a new account key
//	create  - register a proof for the account of --private-key
//	revoke  - revoke a proof owned by the account of --private-key
//	lookup  - print the owner and registration block of a proof
//
// Requests go to --server-addr, or to the first server found under the DNS SRV name given
// with --discover-srv. Proofs are given as hex strings with an optional 0x prefix.
package main
