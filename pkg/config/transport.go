package config

import (
	"crypto/tls"
	"net/http"
)

// HTTPClient builds an *http.Client honouring the credential's timeout and
// TLS verification settings.
func (c Credentials) HTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !c.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via verify_ssl: false
	}

	return &http.Client{
		Timeout:   c.Timeout,
		Transport: transport,
	}
}
