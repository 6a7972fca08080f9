package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/scribeline/payment-engine/internal/adapters/ports"
	"github.com/scribeline/payment-engine/internal/adapters/secrets"
	"github.com/scribeline/payment-engine/internal/config"
)

// initSecretManager initializes the configured secret manager backend.
// Supports:
//   - AWS Secrets Manager (production): SECRETS_BACKEND=aws
//   - HashiCorp Vault: SECRETS_BACKEND=vault with SECRETS_VAULT_ADDR
//   - Local environment variables (development): the default
func initSecretManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) ports.SecretManagerAdapter {
	switch cfg.Secrets.Backend {
	case "aws":
		return initAWSSecretsManager(ctx, cfg.Secrets, logger)
	case "vault":
		return initVaultSecretManager(ctx, cfg.Secrets, logger)
	default:
		return initLocalSecretManager(logger)
	}
}

func initAWSSecretsManager(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) ports.SecretManagerAdapter {
	awsCfg := secrets.DefaultAWSSecretsManagerConfig(cfg.AWSRegion)
	if cfg.CacheTTL > 0 {
		awsCfg.CacheTTL = cfg.CacheTTL
	}

	sm, err := secrets.NewAWSSecretsManagerAdapter(ctx, awsCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize AWS Secrets Manager",
			zap.Error(err),
			zap.String("region", cfg.AWSRegion),
		)
	}

	logger.Info("AWS Secrets Manager initialized",
		zap.String("region", cfg.AWSRegion),
		zap.Duration("cache_ttl", awsCfg.CacheTTL),
	)

	return sm
}

func initVaultSecretManager(ctx context.Context, cfg config.SecretsConfig, logger *zap.Logger) ports.SecretManagerAdapter {
	vaultCfg := secrets.DefaultVaultConfig(cfg.VaultAddr)
	vaultCfg.Token = cfg.VaultToken
	if cfg.CacheTTL > 0 {
		vaultCfg.CacheTTL = cfg.CacheTTL
	}

	sm, err := secrets.NewVaultAdapter(ctx, vaultCfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Vault secret manager",
			zap.Error(err),
			zap.String("address", cfg.VaultAddr),
		)
	}

	logger.Info("Vault secret manager initialized",
		zap.String("address", cfg.VaultAddr),
	)

	return sm
}

// initLocalSecretManager resolves secret paths to environment variables,
// for development without an external secret service
func initLocalSecretManager(logger *zap.Logger) ports.SecretManagerAdapter {
	logger.Warn("Using local environment secret manager - not for production use")
	return secrets.NewLocalSecretManager(logger)
}
