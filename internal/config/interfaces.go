package config

import "context"

// SecretProvider resolves secret paths to plaintext values. SSMProvider backs
// deployed environments; EnvVarProvider backs local runs and tests.
type SecretProvider interface {
	// GetParametersBatch returns path -> value for every path it could
	// resolve. Unknown paths are omitted rather than reported as errors.
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
