// Package secrets retrieves warehouse and database credentials from Infisical
// at startup, so the deployment config never has to carry a plaintext
// password in an env var or config file.
package secrets

import (
	"context"
	"fmt"

	infisical "github.com/infisical/go-sdk"
)

// Config names the Infisical project/environment to pull secrets from.
type Config struct {
	Host         string
	ClientID     string
	ClientSecret string
	ProjectID    string
	Environment  string
	SecretPath   string
}

// Fetch authenticates against Infisical and returns every secret under
// Config.SecretPath as a key/value map. An empty SecretPath defaults to "/".
func Fetch(ctx context.Context, cfg Config) (map[string]string, error) {
	secretPath := cfg.SecretPath
	if secretPath == "" {
		secretPath = "/"
	}

	client := infisical.NewInfisicalClient(ctx, infisical.Config{
		SiteUrl:          "https://" + cfg.Host,
		AutoTokenRefresh: false,
	})

	if _, err := client.Auth().UniversalAuthLogin(cfg.ClientID, cfg.ClientSecret); err != nil {
		return nil, fmt.Errorf("infisical authentication: %w", err)
	}

	list, err := client.Secrets().List(infisical.ListSecretsOptions{
		AttachToProcessEnv: false,
		Environment:        cfg.Environment,
		ProjectID:          cfg.ProjectID,
		SecretPath:         secretPath,
		IncludeImports:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("infisical list secrets: %w", err)
	}

	out := make(map[string]string, len(list))
	for _, s := range list {
		out[s.SecretKey] = s.SecretValue
	}
	return out, nil
}

// WarehouseDSN builds a Postgres-style DSN from the conventional
// DB_HOST/DB_PORT/DB_USER/DB_PASSWORD/DB_NAME secret keys, returning an error
// naming the first missing key.
func WarehouseDSN(secretsMap map[string]string) (string, error) {
	required := []string{"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME"}
	for _, key := range required {
		if secretsMap[key] == "" {
			return "", fmt.Errorf("missing required secret %s", key)
		}
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=require",
		secretsMap["DB_HOST"], secretsMap["DB_PORT"], secretsMap["DB_USER"], secretsMap["DB_PASSWORD"], secretsMap["DB_NAME"],
	), nil
}
