package config

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Validate checks that the credentials can address both endpoints. The first
// failing rule is reported as a *ConfigurationError.
func (c Credentials) Validate() error {
	rules := []struct {
		value any
		rule  validation.Rule
	}{
		{c.AuthURL, validation.Required.Error("auth_url is required")},
		{c.BaseURL, validation.Required.Error("base_url is required")},
		{c.Timeout, validation.Min(0).Error("timeout must be >= 0")},
	}

	for _, r := range rules {
		if err := validation.Validate(r.value, r.rule); err != nil {
			return &ConfigurationError{Reason: err.Error()}
		}
	}
	return nil
}
