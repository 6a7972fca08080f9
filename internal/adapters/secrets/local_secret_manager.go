package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/adapters/ports"
)

// localSecretManager implements SecretManagerAdapter over environment
// variables. The secret path "stripe/api_key" maps to the env var
// SECRET_STRIPE_API_KEY.
// WARNING: This is for development only. Use AWS Secrets Manager or Vault in production.
type localSecretManager struct {
	prefix string
	logger *zap.Logger
}

// NewLocalSecretManager creates a new environment-backed secret manager
func NewLocalSecretManager(logger *zap.Logger) ports.SecretManagerAdapter {
	return &localSecretManager{
		prefix: "SECRET_",
		logger: logger,
	}
}

// GetSecret retrieves a secret from the environment
func (m *localSecretManager) GetSecret(ctx context.Context, secretPath string) (*ports.Secret, error) {
	envName := m.envName(secretPath)

	m.logger.Debug("Reading secret from environment",
		zap.String("path", secretPath),
		zap.String("env", envName),
	)

	value, ok := os.LookupEnv(envName)
	if !ok || value == "" {
		return nil, fmt.Errorf("secret not found: %s (env %s)", secretPath, envName)
	}

	return &ports.Secret{
		Value:   value,
		Version: "v1",
	}, nil
}

func (m *localSecretManager) envName(secretPath string) string {
	name := strings.ToUpper(secretPath)
	name = strings.NewReplacer("/", "_", "-", "_", ".", "_").Replace(name)
	return m.prefix + name
}
