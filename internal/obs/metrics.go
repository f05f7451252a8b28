package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counters for the Whoop connect flow. Callback results are labeled with
// the coarse outcome only; state-validation failures are not broken out
// per kind on purpose.
var (
	ConnectStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "whoop_connect_started_total",
		Help: "Connect URLs issued.",
	})
	CallbackResult = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whoop_callback_total",
		Help: "OAuth callback outcomes.",
	}, []string{"result"})
	TokenWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "whoop_token_writes_total",
		Help: "Token store writes by operation.",
	}, []string{"op"})
)

func MetricsHandler() http.Handler { return promhttp.Handler() }
