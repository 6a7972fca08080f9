package ports

import (
	"context"
)

// Secret represents a retrieved secret with metadata
type Secret struct {
	Value     string            // The secret value (API key, webhook signing secret)
	Version   string            // Secret version identifier
	Metadata  map[string]string // Additional secret metadata
	CreatedAt string            // When this version was created
}

// SecretManagerAdapter defines the port for retrieving secrets from a secret
// management service. Supports multiple backends: AWS Secrets Manager,
// HashiCorp Vault, local environment variables.
// Implementation is responsible for:
//   - Authentication with the secret manager service
//   - Caching secrets appropriately (with TTL)
//   - Handling secret rotation gracefully (re-read after cache expiry)
type SecretManagerAdapter interface {
	// GetSecret retrieves a secret by its path/name
	// Path format depends on implementation:
	//   - AWS: "payment-engine/stripe/api_key" or a full ARN
	//   - Vault: KV v2 path "payment-engine/stripe" with key "api_key"
	//   - Local: path mapped to an environment variable name
	// Returns error if:
	//   - Secret does not exist
	//   - Insufficient permissions
	//   - Network communication fails
	//   - Secret manager service is unavailable
	GetSecret(ctx context.Context, path string) (*Secret, error)
}
