package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/flashbots/go-utils/signature"
	"github.com/ruteri/proof-compliance-registry/api"
	"github.com/ruteri/proof-compliance-registry/api/clients"
	"github.com/ruteri/proof-compliance-registry/interfaces"
	"github.com/urfave/cli/v2"
)

var flagServerAddr = &cli.StringFlag{
	Name:  "server-addr",
	Value: "http://127.0.0.1:8080",
	Usage: "registry server address",
}
var flagDiscoverSRV = &cli.StringFlag{
	Name:  "discover-srv",
	Usage: "DNS SRV name to discover the registry server from, e.g. _registry._tcp.example.com",
}
var flagResolver = &cli.StringFlag{
	Name:  "dns-resolver",
	Usage: "DNS server (host:port) for --discover-srv, defaults to the system resolver",
}
var flagPrivateKey = &cli.StringFlag{
	Name:    "private-key",
	EnvVars: []string{"REGISTRY_PRIVATE_KEY"},
	Usage:   "hex-encoded secp256k1 private key of the calling account",
}
var flagTimeout = &cli.DurationFlag{
	Name:  "timeout",
	Value: 30 * time.Second,
	Usage: "request timeout",
}

func main() {
	app := &cli.App{
		Name:  "registry-client",
		Usage: "Register, revoke and look up compliance proofs",
		Flags: []cli.Flag{flagServerAddr, flagDiscoverSRV, flagResolver, flagTimeout},
		Commands: []*cli.Command{
			{
				Name:   "keygen",
				Usage:  "Generate a new account key",
				Action: keygen,
			},
			{
				Name:      "create",
				Usage:     "Register a proof for the calling account",
				ArgsUsage: "<proof-hex>",
				Flags:     []cli.Flag{flagPrivateKey},
				Action: func(cCtx *cli.Context) error {
					client, proof, err := setup(cCtx, true)
					if err != nil {
						return err
					}
					return runCreate(cCtx.Context, client, proof, os.Stdout)
				},
			},
			{
				Name:      "revoke",
				Usage:     "Revoke a proof owned by the calling account",
				ArgsUsage: "<proof-hex>",
				Flags:     []cli.Flag{flagPrivateKey},
				Action: func(cCtx *cli.Context) error {
					client, proof, err := setup(cCtx, true)
					if err != nil {
						return err
					}
					return runRevoke(cCtx.Context, client, proof, os.Stdout)
				},
			},
			{
				Name:      "lookup",
				Usage:     "Show the owner of a proof",
				ArgsUsage: "<proof-hex>",
				Action: func(cCtx *cli.Context) error {
					client, proof, err := setup(cCtx, false)
					if err != nil {
						return err
					}
					return runLookup(cCtx.Context, client, proof, os.Stdout)
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func keygen(cCtx *cli.Context) error {
	key, err := crypto.GenerateKey()
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, map[string]string{
		"private_key": hex.EncodeToString(crypto.FromECDSA(key)),
		"account":     interfaces.AccountIDFromAddress(crypto.PubkeyToAddress(key.PublicKey)).String(),
	})
}

func setup(cCtx *cli.Context, signed bool) (api.RegistryProvider, interfaces.Proof, error) {
	if cCtx.NArg() != 1 {
		return nil, nil, errors.New("expected exactly one proof argument")
	}
	proof, err := interfaces.ParseProof(cCtx.Args().First())
	if err != nil {
		return nil, nil, fmt.Errorf("invalid proof: %w", err)
	}

	var signer *signature.Signer
	if signed {
		keyHex := strings.TrimPrefix(cCtx.String(flagPrivateKey.Name), "0x")
		if keyHex == "" {
			return nil, nil, errors.New("--private-key is required")
		}
		signer, err = signature.NewSignerFromHexPrivateKey(keyHex)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid private key: %w", err)
		}
	}

	serverAddr := cCtx.String(flagServerAddr.Name)
	if srv := cCtx.String(flagDiscoverSRV.Name); srv != "" {
		servers, err := clients.ResolveServers(cCtx.Context, srv, cCtx.String(flagResolver.Name))
		if err != nil {
			return nil, nil, fmt.Errorf("server discovery failed: %w", err)
		}
		serverAddr = servers[0]
	}

	return clients.NewRegistryClient(serverAddr, signer, cCtx.Duration(flagTimeout.Name)), proof, nil
}

func runCreate(ctx context.Context, provider api.RegistryProvider, proof interfaces.Proof, out io.Writer) error {
	resp, err := provider.Create(ctx, proof)
	if err != nil {
		return fmt.Errorf("create %s: %w", proof, err)
	}
	return printJSON(out, resp)
}

func runRevoke(ctx context.Context, provider api.RegistryProvider, proof interfaces.Proof, out io.Writer) error {
	resp, err := provider.Revoke(ctx, proof)
	if err != nil {
		return fmt.Errorf("revoke %s: %w", proof, err)
	}
	return printJSON(out, resp)
}

func runLookup(ctx context.Context, provider api.RegistryProvider, proof interfaces.Proof, out io.Writer) error {
	resp, err := provider.Lookup(ctx, proof)
	if err != nil {
		return fmt.Errorf("lookup %s: %w", proof, err)
	}
	return printJSON(out, resp)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
