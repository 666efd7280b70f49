package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/models"
	"github.com/corebanking/pipeline-audit/observability"
	"github.com/corebanking/pipeline-audit/services/reconciliation"
	"github.com/corebanking/pipeline-audit/utils"
)

// ReconciliationHandler handles per-run reconciliation report requests
type ReconciliationHandler struct {
	reconciler *reconciliation.Service
	logger     *zap.Logger
}

// NewReconciliationHandler creates a new ReconciliationHandler
func NewReconciliationHandler(reconciler *reconciliation.Service, logger *zap.Logger) *ReconciliationHandler {
	return &ReconciliationHandler{reconciler: reconciler, logger: logger}
}

// HandleReconciliation handles GET /api/v1/reconciliation/{correlationID}
func (h *ReconciliationHandler) HandleReconciliation(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	correlationID := chi.URLParam(r, "correlationID")

	level := models.DetailStandard
	if levelStr := r.URL.Query().Get("detail"); levelStr != "" {
		level = models.DetailLevel(levelStr)
	}

	report, err := h.reconciler.Build(ctx, correlationID, level)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	observability.ReconciliationReportsTotal.WithLabelValues(string(report.OverallStatus)).Inc()
	h.logger.Info("reconciliation report generated",
		zap.String("correlation_id", correlationID),
		zap.String("detail_level", string(level)),
		zap.String("overall_status", string(report.OverallStatus)),
		zap.Int("critical_issues", report.CriticalIssues))

	_ = utils.WriteOK(w, report)
}
