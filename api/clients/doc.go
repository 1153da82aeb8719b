/*
Package clients provides a Go client for the proof-compliance registry API.

RegistryClient signs create and revoke requests with the caller's key using
github.com/flashbots/go-utils/signature; the signing address becomes the owner of
created proofs. Error responses are mapped back to the registry's sentinel errors, so
callers can use errors.Is(err, registry.ErrNotOwner) and friends.

	signer, _ := signature.NewSignerFromHexPrivateKey(key)
	client := clients.NewRegistryClient("http://localhost:8080", signer)
	resp, err := client.Create(ctx, proof)

Servers can be discovered through DNS SRV records with ResolveServers.
*/
package clients
