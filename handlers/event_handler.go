package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/corebanking/pipeline-audit/models"
	"github.com/corebanking/pipeline-audit/observability"
	"github.com/corebanking/pipeline-audit/repositories"
	"github.com/corebanking/pipeline-audit/services"
	"github.com/corebanking/pipeline-audit/services/correlation"
	"github.com/corebanking/pipeline-audit/utils"
)

// CreateEventRequest represents a request to record one checkpoint event
type CreateEventRequest struct {
	CorrelationID     string          `json:"correlation_id"`
	SourceSystem      string          `json:"source_system" validate:"required"`
	ModuleName        *string         `json:"module_name,omitempty"`
	ProcessName       *string         `json:"process_name,omitempty"`
	SourceEntity      *string         `json:"source_entity,omitempty"`
	DestinationEntity *string         `json:"destination_entity,omitempty"`
	KeyIdentifier     *string         `json:"key_identifier,omitempty"`
	Checkpoint        string          `json:"checkpoint" validate:"required"`
	Status            string          `json:"status" validate:"required,oneof=SUCCESS FAILURE WARNING"`
	Message           *string         `json:"message,omitempty"`
	Details           json.RawMessage `json:"details,omitempty"`
}

// EventHandler handles audit event ingestion and queries
type EventHandler struct {
	store  repositories.EventStore
	logger *zap.Logger
}

// NewEventHandler creates a new EventHandler
func NewEventHandler(store repositories.EventStore, logger *zap.Logger) *EventHandler {
	return &EventHandler{store: store, logger: logger}
}

// HandleCreateEvent handles POST /api/v1/events
func (h *EventHandler) HandleCreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid JSON body", nil)
		return
	}

	if err := utils.ValidateStruct(req); err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	// Correlation id may come from the body or from the request context
	// (X-Correlation-ID header bound by middleware)
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID, _ = correlation.Current(ctx)
	}
	if correlationID == "" {
		HandleServiceError(w, services.ErrMissingCorrelationID, h.logger)
		return
	}

	checkpoint, ok := models.ParseCheckpoint(req.Checkpoint)
	if !ok {
		HandleServiceError(w, services.NewDomainError(services.ErrorTypeValidation,
			"unknown checkpoint stage", nil).WithDetail("checkpoint", req.Checkpoint), h.logger)
		return
	}

	event := models.NewAuditEvent(correlationID, req.SourceSystem, checkpoint, models.Status(req.Status))
	event.ModuleName = req.ModuleName
	event.ProcessName = req.ProcessName
	event.SourceEntity = req.SourceEntity
	event.DestinationEntity = req.DestinationEntity
	event.KeyIdentifier = req.KeyIdentifier
	event.Message = req.Message
	event.Details = req.Details

	if err := h.store.Insert(ctx, event); err != nil {
		HandleServiceError(w, services.WrapUpstream("inserting audit event", err), h.logger)
		return
	}

	observability.EventsIngestedTotal.WithLabelValues(string(event.Checkpoint), string(event.Status)).Inc()
	h.logger.Info("audit event recorded",
		zap.String("event_id", event.EventID.String()),
		zap.String("correlation_id", event.CorrelationID),
		zap.String("checkpoint", string(event.Checkpoint)),
		zap.String("status", string(event.Status)))

	_ = utils.WriteCreated(w, event)
}

// HandleListEvents handles GET /api/v1/events
func (h *EventHandler) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := filterFromQuery(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	page, size, err := paginationFromQuery(r)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	events, err := h.store.FindByFilter(ctx, filter, page, size)
	if err != nil {
		HandleServiceError(w, services.WrapUpstream("querying audit events", err), h.logger)
		return
	}

	total, err := h.store.CountByFilter(ctx, filter)
	if err != nil {
		HandleServiceError(w, services.WrapUpstream("counting audit events", err), h.logger)
		return
	}

	_ = utils.WriteOK(w, map[string]interface{}{
		"events": events,
		"page":   page,
		"size":   size,
		"total":  total,
	})
}

// filterFromQuery builds an EventFilter from query parameters
func filterFromQuery(r *http.Request) (repositories.EventFilter, error) {
	filter := repositories.EventFilter{
		SourceSystem: r.URL.Query().Get("source_system"),
		ModuleName:   r.URL.Query().Get("module_name"),
	}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status := models.Status(statusStr)
		if !status.IsValid() {
			return filter, services.NewDomainError(services.ErrorTypeValidation,
				"unknown event status", nil).WithDetail("status", statusStr)
		}
		filter.Status = status
	}

	if checkpointStr := r.URL.Query().Get("checkpoint"); checkpointStr != "" {
		checkpoint, ok := models.ParseCheckpoint(checkpointStr)
		if !ok {
			return filter, services.NewDomainError(services.ErrorTypeValidation,
				"unknown checkpoint stage", nil).WithDetail("checkpoint", checkpointStr)
		}
		filter.Checkpoint = checkpoint
	}

	return filter, nil
}

// paginationFromQuery parses page/size with defaults
func paginationFromQuery(r *http.Request) (page, size int, err error) {
	page, size = 0, 50

	if pageStr := r.URL.Query().Get("page"); pageStr != "" {
		page, err = strconv.Atoi(pageStr)
		if err != nil || page < 0 {
			return 0, 0, services.ErrInvalidPagination
		}
	}
	if sizeStr := r.URL.Query().Get("size"); sizeStr != "" {
		size, err = strconv.Atoi(sizeStr)
		if err != nil || size < 1 || size > 1000 {
			return 0, 0, services.ErrInvalidPagination
		}
	}
	return page, size, nil
}
