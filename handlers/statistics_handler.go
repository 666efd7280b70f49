package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/repositories"
	"github.com/corebanking/pipeline-audit/services"
	"github.com/corebanking/pipeline-audit/services/statistics"
	"github.com/corebanking/pipeline-audit/utils"
)

// StatisticsHandler handles aggregate statistics requests
type StatisticsHandler struct {
	store  repositories.EventStore
	stats  *statistics.Service
	logger *zap.Logger
}

// NewStatisticsHandler creates a new StatisticsHandler
func NewStatisticsHandler(store repositories.EventStore, stats *statistics.Service, logger *zap.Logger) *StatisticsHandler {
	return &StatisticsHandler{store: store, stats: stats, logger: logger}
}

// HandleStatistics handles GET /api/v1/statistics?start=...&end=...
func (h *StatisticsHandler) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	window, err := windowFromQuery(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	events, err := h.store.FindByTimestampRange(ctx, window.Start, window.End)
	if err != nil {
		HandleServiceError(w, services.WrapUpstream("querying events for window", err), h.logger)
		return
	}

	result, err := h.stats.Compute(window, events)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	_ = utils.WriteOK(w, result)
}

// windowFromQuery parses the required start/end RFC3339 query parameters
func windowFromQuery(r *http.Request) (statistics.Window, error) {
	startStr := r.URL.Query().Get("start")
	endStr := r.URL.Query().Get("end")
	if startStr == "" || endStr == "" {
		return statistics.Window{}, services.NewDomainError(services.ErrorTypeValidation,
			"start and end query parameters are required", nil)
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return statistics.Window{}, services.NewDomainError(services.ErrorTypeValidation,
			"start must be an RFC3339 timestamp", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return statistics.Window{}, services.NewDomainError(services.ErrorTypeValidation,
			"end must be an RFC3339 timestamp", err)
	}
	if end.Before(start) {
		return statistics.Window{}, services.ErrInvalidWindow
	}

	return statistics.Window{Start: start, End: end}, nil
}
