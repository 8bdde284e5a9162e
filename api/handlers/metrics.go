package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/landviz/collab-api/api"
	"github.com/landviz/collab-api/config"
	"github.com/landviz/collab-api/relay"
)

// MetricsHandler exposes request and relay traffic metrics
type MetricsHandler struct {
	Hub *relay.Hub
}

// GetMetricsSummary returns overall request and relay statistics
func (m MetricsHandler) GetMetricsSummary(w http.ResponseWriter, r *http.Request) {
	summary := api.GetMetrics().GetSummary()
	summary["liveSessions"] = m.Hub.SessionCount()

	b, err := json.Marshal(summary)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// GetRouteMetrics returns the per-route aggregates
func (m MetricsHandler) GetRouteMetrics(w http.ResponseWriter, r *http.Request) {
	b, err := json.Marshal(api.GetMetrics().GetRouteMetrics())
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// GetTraces returns the most recent request traces
func (m MetricsHandler) GetTraces(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		limit = 100
	}
	b, err := json.Marshal(api.GetMetrics().GetTraces(limit))
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
