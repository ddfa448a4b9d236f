package config

import (
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
)

const (
	EnvTenantID     = "TENANT_ID"
	EnvClientID     = "CLIENT_ID"
	EnvClientSecret = "CLIENT_SECRET"
	EnvUseGraphBeta = "USE_GRAPH_BETA"
)

// Credentials are the Entra ID settings the child reads from its environment.
type Credentials struct {
	TenantID     string `env:"TENANT_ID"`
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	UseGraphBeta string `env:"USE_GRAPH_BETA"`
}

// LoadCredentials reads Credentials from the process environment. Unset
// variables leave fields empty.
func LoadCredentials() (Credentials, error) {
	var creds Credentials
	if err := envdecode.Decode(&creds); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Credentials{}, fmt.Errorf("decode credentials: %w", err)
	}
	return creds, nil
}

func (c Credentials) values() map[string]string {
	return map[string]string{
		EnvTenantID:     c.TenantID,
		EnvClientID:     c.ClientID,
		EnvClientSecret: c.ClientSecret,
		EnvUseGraphBeta: c.UseGraphBeta,
	}
}

// MergeInto returns env with every non-empty credential added. Keys already
// present in env are kept.
func (c Credentials) MergeInto(env map[string]string) map[string]string {
	out := make(map[string]string, len(env)+4)
	for k, v := range env {
		out[k] = v
	}
	for k, v := range c.values() {
		if v == "" {
			continue
		}
		if _, ok := out[k]; ok {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MissingCredentials lists the required credential keys absent from env.
func MissingCredentials(env map[string]string) []string {
	var missing []string
	for _, key := range []string{EnvTenantID, EnvClientID, EnvClientSecret} {
		if env[key] == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// IsSecretKey reports whether an env key holds a value that must not be printed.
func IsSecretKey(key string) bool {
	return key == EnvClientSecret
}
