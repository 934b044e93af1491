package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InstrumentTransport wraps next so that requests awaiting a response are
// counted in basex_client_requests_in_flight. A nil next wraps
// http.DefaultTransport.
func (m *ClientMetrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(m.requestsInFlight, next)
}
