// Package config resolves Etrieve connection credentials from a configuration
// source (YAML file, reader or in-memory map) into a validated Credentials value.
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// DefaultTimeout is used when a source does not set a timeout.
const DefaultTimeout = 30 * time.Second

// Credentials holds everything needed to authenticate against the token
// endpoint and address the content API. It is immutable once loaded.
type Credentials struct {
	// AuthURL is the client-credentials token endpoint.
	AuthURL string

	// BaseURL is the root of the content API (e.g. "https://etrieve.example.edu").
	BaseURL string

	Username string
	Password string

	// Timeout bounds every HTTP request made with these credentials. An
	// explicit 0 means no timeout.
	Timeout time.Duration

	// VerifySSL disables TLS certificate verification when false.
	VerifySSL bool
}

// rawCredentials mirrors the configuration keys. Pointer fields distinguish
// a missing key from its zero value.
type rawCredentials struct {
	AuthURL   string   `mapstructure:"auth_url"`
	BaseURL   string   `mapstructure:"base_url"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	Timeout   *float64 `mapstructure:"timeout"`
	VerifySSL *bool    `mapstructure:"verify_ssl"`
}

// Load resolves src into Credentials. Any problem reading or decoding the
// source is reported as a *ConfigurationError.
func Load(src Source) (Credentials, error) {
	if src == nil {
		return Credentials{}, &ConfigurationError{Reason: "invalid configuration options supplied"}
	}

	values, err := src.values()
	if err != nil {
		return Credentials{}, err
	}

	return FromMap(values)
}

// FromMap decodes a structured map into Credentials. Unknown keys are ignored
// and missing keys fall back to their defaults.
func FromMap(values map[string]any) (Credentials, error) {
	var raw rawCredentials

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &raw,
	})
	if err != nil {
		return Credentials{}, &ConfigurationError{Reason: "build decoder", Err: err}
	}

	if err := decoder.Decode(values); err != nil {
		return Credentials{}, &ConfigurationError{Reason: "invalid configuration values", Err: err}
	}

	creds := Credentials{
		AuthURL:   raw.AuthURL,
		BaseURL:   raw.BaseURL,
		Username:  raw.Username,
		Password:  raw.Password,
		Timeout:   DefaultTimeout,
		VerifySSL: true,
	}

	if raw.Timeout != nil {
		if *raw.Timeout < 0 {
			return Credentials{}, &ConfigurationError{
				Reason: fmt.Sprintf("timeout must be >= 0 (got %v)", *raw.Timeout),
			}
		}
		creds.Timeout = time.Duration(*raw.Timeout * float64(time.Second))
	}

	if raw.VerifySSL != nil && !*raw.VerifySSL {
		creds.VerifySSL = false
	}

	return creds, nil
}
