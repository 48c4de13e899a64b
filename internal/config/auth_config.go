package config

import "time"

type AuthConfig interface {
	GetRefreshInterval() time.Duration
	GetHTTPTimeout() time.Duration
	GetRefreshRequestTimeout() time.Duration
}

type Auth struct{}

var _ AuthConfig = Auth{}

// GetRefreshInterval returns the proactive token renewal interval. It must be
// shorter than the access token lifetime so renewal happens before expiry.
func (Auth) GetRefreshInterval() time.Duration {
	if raw := GetEnv("REFRESH_INTERVAL", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return 14 * time.Minute
}

func (Auth) GetHTTPTimeout() time.Duration {
	if raw := GetEnv("HTTP_TIMEOUT", ""); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
	}
	return 30 * time.Second
}

func (Auth) GetRefreshRequestTimeout() time.Duration {
	return 10 * time.Second
}
