// Package metrics exposes Prometheus counters for the authentication flows.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// NoncesIssued counts issued challenge nonces, by chain family.
	NoncesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletauth_nonces_issued_total",
		Help: "Number of challenge nonces issued.",
	}, []string{"family"})

	// Logins counts verification attempts, by provider and outcome.
	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletauth_logins_total",
		Help: "Number of wallet login attempts.",
	}, []string{"provider", "result"})

	// Handshakes counts deep-link handshake stage transitions.
	Handshakes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "walletauth_handshakes_total",
		Help: "Number of deep-link handshake stage transitions.",
	}, []string{"stage"})
)

// Result label values for Logins.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
