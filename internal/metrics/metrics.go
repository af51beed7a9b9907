// ABOUTME: Prometheus collectors for login, session and KDF activity
// ABOUTME: Registered on the default registry and exposed by the server via promhttp

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Login results used as the "result" label of LoginsTotal.
const (
	LoginSuccess = "success"
	LoginFailure = "failure"
	LoginError   = "error"
)

var (
	// LoginsTotal counts login attempts by outcome.
	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timecard_logins_total",
			Help: "Number of login attempts by result.",
		},
		[]string{"result"})

	// SessionsActive tracks the number of live sessions held by the in-memory store.
	SessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "timecard_sessions_active",
		Help: "Number of sessions currently held in memory.",
	})

	// KDFDuration observes the wall time of each password hash or verification.
	KDFDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "timecard_kdf_duration_seconds",
			Help:    "Time spent deriving password keys.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"kind"})

	// AuthzDenied counts requests rejected by the authorization gate.
	AuthzDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "timecard_authz_denied_total",
			Help: "Number of requests rejected by route requirement.",
		},
		[]string{"requirement"})
)
