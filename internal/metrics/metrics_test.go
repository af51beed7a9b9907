package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestLoginsTotal(t *testing.T) {
	before := testutil.ToFloat64(LoginsTotal.WithLabelValues(LoginFailure))
	LoginsTotal.WithLabelValues(LoginFailure).Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(LoginsTotal.WithLabelValues(LoginFailure)))
}

func TestAuthzDenied(t *testing.T) {
	before := testutil.ToFloat64(AuthzDenied.WithLabelValues("admin"))
	AuthzDenied.WithLabelValues("admin").Inc()
	AuthzDenied.WithLabelValues("admin").Inc()
	assert.Equal(t, before+2, testutil.ToFloat64(AuthzDenied.WithLabelValues("admin")))
}

func TestSessionsActive(t *testing.T) {
	SessionsActive.Set(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(SessionsActive))
}
