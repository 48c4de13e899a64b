package config

import (
	"os"
)

const (
	configAPIURLVar    = "CONFIG_API_URL"
	runtimeAPIURLVar   = "RUNTIME_API_URL"
	appNameVar         = "APP_NAME"
	credentialsFileVar = "CREDENTIALS_FILE"
)

type EnvConfig interface {
	GetConfigAPIURL() string
	GetRuntimeAPIURL() string
	GetAppName() string
	GetCredentialsFile() string
	GetEnv() string
}

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

// GetConfigAPIURL returns the base URL of the management/config API.
// Resource paths on this backend are prefixed with /api/v1.
func (EnvVars) GetConfigAPIURL() string {
	return GetEnv(configAPIURLVar, "http://localhost:8080")
}

// GetRuntimeAPIURL returns the base URL of the runtime API (unprefixed paths).
func (EnvVars) GetRuntimeAPIURL() string {
	return GetEnv(runtimeAPIURLVar, "http://localhost:8081")
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Console Client")
}

func (EnvVars) GetCredentialsFile() string {
	return GetEnv(credentialsFileVar, ".console-credentials.json")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}
