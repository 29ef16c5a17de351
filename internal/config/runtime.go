// pattern: Functional Core
package config

import (
	"os"
	"strings"
)

const (
	EnvBaseURL  = "CMT_CONF_BASE_URL"
	EnvEmail    = "CMT_CONF_EMAIL"
	EnvAPIToken = "CMT_CONF_TOKEN"
)

type RuntimeFlags struct {
	BaseURL      string
	Email        string
	SpaceKey     string
	ParentPageID string
	LogLevel     string
	LogFormat    string
}

type Environment struct {
	BaseURL  string
	Email    string
	APIToken string
}

type ResolveOptions struct {
	// RequireCredentials is set by commands that reach the remote API.
	// Local-only commands resolve without base URL, email, or token.
	RequireCredentials bool
}

type RuntimeSettings struct {
	BaseURL           string
	Email             string
	APIToken          string
	SpaceKey          string
	ParentPageID      string
	Labels            []string
	FidelityThreshold float64
	LogLevel          string
	LogFormat         string
}

// Resolve layers flags over environment over the config file. The API
// token is environment-only so it can never end up committed to a repo.
func Resolve(file FileConfig, flags RuntimeFlags, env Environment, options ResolveOptions) (RuntimeSettings, error) {
	for name, value := range map[string]string{
		"--base-url": flags.BaseURL,
		"--email":    flags.Email,
		"--space":    flags.SpaceKey,
		"--parent":   flags.ParentPageID,
	} {
		if value != "" && strings.TrimSpace(value) == "" {
			return RuntimeSettings{}, &ResolveError{
				Code:    ResolveErrorCodeInvalidFlag,
				Message: name + " must not be only whitespace",
			}
		}
	}

	settings := RuntimeSettings{
		BaseURL:           firstNonEmpty(flags.BaseURL, env.BaseURL, file.BaseURL),
		Email:             firstNonEmpty(flags.Email, env.Email, file.Email),
		APIToken:          strings.TrimSpace(env.APIToken),
		SpaceKey:          firstNonEmpty(flags.SpaceKey, file.SpaceKey),
		ParentPageID:      firstNonEmpty(flags.ParentPageID, file.ParentPageID),
		Labels:            append([]string(nil), file.Labels...),
		FidelityThreshold: file.FidelityThreshold,
		LogLevel:          firstNonEmpty(flags.LogLevel, file.LogLevel),
		LogFormat:         firstNonEmpty(flags.LogFormat, file.LogFormat),
	}

	if options.RequireCredentials {
		if settings.BaseURL == "" {
			return RuntimeSettings{}, &ResolveError{
				Code:    ResolveErrorCodeMissingBaseURL,
				Message: "base URL is required: set " + EnvBaseURL + ", --base-url, or base_url in the config file",
			}
		}
		if settings.Email == "" {
			return RuntimeSettings{}, &ResolveError{
				Code:    ResolveErrorCodeMissingEmail,
				Message: "email is required: set " + EnvEmail + ", --email, or email in the config file",
			}
		}
		if settings.APIToken == "" {
			return RuntimeSettings{}, &ResolveError{
				Code:    ResolveErrorCodeMissingToken,
				Message: EnvAPIToken + " is required",
			}
		}
	}

	return settings, nil
}

func EnvironmentFromOS() Environment {
	return EnvironmentFromLookup(os.LookupEnv)
}

func EnvironmentFromLookup(lookup func(string) (string, bool)) Environment {
	if lookup == nil {
		return Environment{}
	}

	return Environment{
		BaseURL:  lookupTrimmed(lookup, EnvBaseURL),
		Email:    lookupTrimmed(lookup, EnvEmail),
		APIToken: lookupTrimmed(lookup, EnvAPIToken),
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

func lookupTrimmed(lookup func(string) (string, bool), key string) string {
	value, ok := lookup(key)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}
