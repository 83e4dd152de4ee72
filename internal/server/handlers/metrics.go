package handlers

import (
	"log/slog"
	"net/http"

	metrics "github.com/rcrowley/go-metrics"

	"github.com/information-sharing-networks/cmp-trust/internal/logger"
)

// HandleMetrics godoc
//
//	@Summary		Validation metrics
//	@Description	Returns the verdict counters and validation timings as JSON
//	@Tags			Common
//	@Produce		json
//	@Success		200	{object}	map[string]any	"metric snapshot"
//	@Router			/metrics [get]
func HandleMetrics(registry metrics.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		metrics.WriteJSONOnce(registry, w)

		logger.ContextWithLogAttrs(r.Context(), slog.Int("metric_count", len(registry.GetAll())))
	}
}
