package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokenAcquisitions counts token acquisition attempts by outcome
	// ("success", "reused", "rejected", "transport_error", "decode_error").
	TokenAcquisitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etrieve_token_acquisitions_total",
			Help: "Total number of token acquisitions by outcome",
		},
		[]string{"outcome"},
	)

	// SessionResets counts explicit and failure-driven session resets.
	SessionResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "etrieve_session_resets_total",
			Help: "Total number of session resets",
		},
	)
)
