package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrumentCountsByPattern(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /post/{id}/{$}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	h := Instrument(mux)

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET /post/{id}/{$}", "GET", "404"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/post/1/", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET /post/{id}/{$}", "GET", "404"))

	assert.Equal(t, before+1, after)
}

func TestHandlerExposesCounters(t *testing.T) {
	RuleViolations.WithLabelValues("follow").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "forum_rule_violations_total")
}
