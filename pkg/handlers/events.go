package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ekaya-inc/finmon/pkg/auth"
	"github.com/ekaya-inc/finmon/pkg/models"
	"github.com/ekaya-inc/finmon/pkg/services"
)

// CostRequest carries file cost fields. Amounts may be JSON numbers or
// strings; they are parsed as exact decimals. Omitted fields are unchanged.
type CostRequest struct {
	BudgetIncomeCurrency  *string          `json:"budget_income_currency" validate:"omitempty,currency"`
	BudgetIncome          *decimal.Decimal `json:"budget_income"`
	BudgetExpenseCurrency *string          `json:"budget_expense_currency" validate:"omitempty,currency"`
	BudgetExpense         *decimal.Decimal `json:"budget_expense"`
	RealIncomeCurrency    *string          `json:"real_income_currency" validate:"omitempty,currency"`
	RealIncome            *decimal.Decimal `json:"real_income"`
	RealIncomeCreatedAt   *time.Time       `json:"real_income_created_at"`
	RealExpenseCurrency   *string          `json:"real_expense_currency" validate:"omitempty,currency"`
	RealExpense           *decimal.Decimal `json:"real_expense"`
	RealExpenseCreatedAt  *time.Time       `json:"real_expense_created_at"`
}

func (c *CostRequest) patch() *models.FileCostPatch {
	if c == nil {
		return nil
	}
	return &models.FileCostPatch{
		BudgetIncomeCurrency:  c.BudgetIncomeCurrency,
		BudgetIncome:          c.BudgetIncome,
		BudgetExpenseCurrency: c.BudgetExpenseCurrency,
		BudgetExpense:         c.BudgetExpense,
		RealIncomeCurrency:    c.RealIncomeCurrency,
		RealIncome:            c.RealIncome,
		RealIncomeCreatedAt:   c.RealIncomeCreatedAt,
		RealExpenseCurrency:   c.RealExpenseCurrency,
		RealExpense:           c.RealExpense,
		RealExpenseCreatedAt:  c.RealExpenseCreatedAt,
	}
}

// CreateEventRequest is the body of POST /api/projects/{pid}/events.
type CreateEventRequest struct {
	ParentID    *uuid.UUID     `json:"parent_id"`
	Name        string         `json:"name" validate:"required,max=255"`
	Description *string        `json:"description"`
	EventType   string         `json:"event_type" validate:"omitempty,oneof=folder file"`
	SortOrder   int            `json:"sort_order" validate:"min=0"`
	Extra       map[string]any `json:"extra"`
	Cost        *CostRequest   `json:"cost"`
}

// UpdateEventRequest is the body of PATCH /api/events/{eid}.
type UpdateEventRequest struct {
	Name        *string        `json:"name" validate:"omitempty,max=255"`
	Description *string        `json:"description"`
	SortOrder   *int           `json:"sort_order" validate:"omitempty,min=0"`
	Extra       map[string]any `json:"extra"`
	Note        *string        `json:"note"`
	Cost        *CostRequest   `json:"cost"`
}

// EventsHandler handles project event HTTP requests.
type EventsHandler struct {
	eventService services.EventService
	logger       *zap.Logger
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(eventService services.EventService, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		eventService: eventService,
		logger:       logger,
	}
}

// RegisterRoutes registers the events handler's routes on the given mux.
func (h *EventsHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("GET /api/projects/{pid}/events", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/projects/{pid}/events", authMiddleware.RequireAuth(h.Create))
	mux.HandleFunc("GET /api/events/{eid}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("PATCH /api/events/{eid}", authMiddleware.RequireAuth(h.Update))
	mux.HandleFunc("PUT /api/events/{eid}/cost", authMiddleware.RequireAuth(h.UpdateCost))
	mux.HandleFunc("POST /api/events/{eid}/recompute", authMiddleware.RequireAuth(h.Recompute))
	mux.HandleFunc("DELETE /api/events/{eid}", authMiddleware.RequireAuth(h.Delete))
}

// List handles GET /api/projects/{pid}/events
// Returns a flat, paginated listing without costs.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	filter := models.EventFilter{
		ListOptions: parseListOptions(r),
		EventType:   models.EventType(r.URL.Query().Get("type")),
	}

	events, meta, err := h.eventService.List(r.Context(), userID, projectID, filter)
	if err != nil {
		writeServiceError(w, h.logger, "list events", err, zap.String("project_id", projectID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: events, Meta: meta}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/projects/{pid}/events
// A file created with a cost is rolled into every ancestor folder before the
// response is written.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	projectID, ok := ParseProjectID(w, r, h.logger)
	if !ok {
		return
	}

	var req CreateEventRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	event, err := h.eventService.Create(r.Context(), userID, &models.NewEventInput{
		ProjectID:   projectID,
		ParentID:    req.ParentID,
		Name:        req.Name,
		Description: req.Description,
		EventType:   models.EventType(req.EventType),
		SortOrder:   req.SortOrder,
		Extra:       req.Extra,
		Cost:        req.Cost.patch(),
	})
	if err != nil {
		writeServiceError(w, h.logger, "create event", err, zap.String("project_id", projectID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: event}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/events/{eid}
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	eventID, ok := ParseEventID(w, r, h.logger)
	if !ok {
		return
	}

	event, err := h.eventService.Get(r.Context(), userID, eventID)
	if err != nil {
		writeServiceError(w, h.logger, "get event", err, zap.String("event_id", eventID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: event}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/events/{eid}
// A cost in the body is only accepted for files.
func (h *EventsHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	eventID, ok := ParseEventID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateEventRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	patch := models.EventPatch{
		Name:        req.Name,
		Description: req.Description,
		SortOrder:   req.SortOrder,
		Extra:       req.Extra,
		Note:        req.Note,
	}

	event, err := h.eventService.Update(r.Context(), userID, eventID, patch, req.Cost.patch())
	if err != nil {
		writeServiceError(w, h.logger, "update event", err, zap.String("event_id", eventID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: event}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// UpdateCost handles PUT /api/events/{eid}/cost
func (h *EventsHandler) UpdateCost(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	eventID, ok := ParseEventID(w, r, h.logger)
	if !ok {
		return
	}

	var req CostRequest
	if !decodeRequest(w, r, &req, h.logger) {
		return
	}

	event, err := h.eventService.UpdateFileCost(r.Context(), userID, eventID, *req.patch())
	if err != nil {
		writeServiceError(w, h.logger, "update event cost", err, zap.String("event_id", eventID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: event}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Recompute handles POST /api/events/{eid}/recompute
// Rebuilds a folder's summary from its descendant files and propagates it.
func (h *EventsHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	eventID, ok := ParseEventID(w, r, h.logger)
	if !ok {
		return
	}

	event, err := h.eventService.Recompute(r.Context(), userID, eventID)
	if err != nil {
		writeServiceError(w, h.logger, "recompute event", err, zap.String("event_id", eventID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: event}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/events/{eid}
// Removes the event with its whole subtree.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r, h.logger)
	if !ok {
		return
	}
	eventID, ok := ParseEventID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.eventService.Delete(r.Context(), userID, eventID); err != nil {
		writeServiceError(w, h.logger, "delete event", err, zap.String("event_id", eventID.String()))
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Message: "Event deleted"}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
