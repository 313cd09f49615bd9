package config

import (
	"fmt"
	"os"
)

// ConfigurationError reports a setting that is required but missing.
// It is fatal: nothing that depends on the setting should be attempted.
type ConfigurationError struct {
	Key     string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Message)
}

// ResolveAPIKey reads the subscription key from the environment variable
// envName. An unset or empty variable yields a *ConfigurationError.
func ResolveAPIKey(envName string) (string, error) {
	if envName == "" {
		envName = DefaultKeyEnv
	}
	key := os.Getenv(envName)
	if key == "" {
		return "", &ConfigurationError{
			Key:     envName,
			Message: fmt.Sprintf("environment variable is not set. Please set it using: export %s='your-api-key'", envName),
		}
	}
	return key, nil
}
