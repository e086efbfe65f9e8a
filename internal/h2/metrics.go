package h2

import (
	"github.com/armon/go-metrics"
)

var (
	metricDispatched    = []string{"h2conn", "client", "dispatched"}
	metricCanceled      = []string{"h2conn", "client", "canceled"}
	metricDispatchError = []string{"h2conn", "client", "dispatch_error"}
	metricResponseError = []string{"h2conn", "client", "response_error"}
	metricBodyError     = []string{"h2conn", "client", "body_error"}
	metricConnReady     = []string{"h2conn", "conn", "ready"}
	metricConnShutdown  = []string{"h2conn", "conn", "shutdown"}
)

func incr(key []string) {
	metrics.IncrCounter(key, 1)
}
