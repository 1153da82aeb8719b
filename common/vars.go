package common

var (
	// Version is set at build time via -ldflags "-X ...common.Version=..."
	Version = "dev"

	// PackageName is used as the namespace for exported metrics.
	PackageName = "proof_registry"
)
