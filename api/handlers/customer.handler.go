package handlers

import (
	"context"
	"net/http"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"go.uber.org/zap"
)

type customerStore interface {
	UpsertCustomer(ctx context.Context, p *models.CustomerPayload) (*models.CustomerIngestResult, error)
	ListCustomers(ctx context.Context) ([]*models.CustomerDB, error)
}

type CustomerHandler struct {
	DB     customerStore
	logger *zap.Logger
}

func NewCustomerHandler(db customerStore, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{DB: db, logger: logger}
}

// AddCustomer handles POST /api/v1/customers. Replays upsert by external id.
func (h *CustomerHandler) AddCustomer(w http.ResponseWriter, r *http.Request) {
	var payload models.CustomerPayload
	if err := utils.ReadJSON(w, r, &payload); err != nil {
		h.logger.Warn("customer payload unreadable", zap.Error(err))
		utils.BadRequest(w, err)
		return
	}

	if err := payload.Validate(); err != nil {
		h.logger.Warn("customer payload rejected",
			zap.String("external_id", payload.ExternalID),
			zap.Error(err))
		utils.UnprocessableEntity(w, err)
		return
	}

	result, err := h.DB.UpsertCustomer(r.Context(), &payload)
	if err != nil {
		h.logger.Error("customer ingestion failed",
			zap.String("external_id", payload.ExternalID),
			zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	status := http.StatusCreated
	message := "Customer recorded successfully"
	if result.IsDuplicate {
		status = http.StatusOK
		message = "Customer updated"
	}

	resp := map[string]any{
		"error":        false,
		"status":       "success",
		"message":      message,
		"is_duplicate": result.IsDuplicate,
		"customer":     result.Customer,
	}
	utils.WriteJSON(w, status, resp)
}

// GetCustomers handles GET /api/v1/customers, the client cache feed.
func (h *CustomerHandler) GetCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.DB.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("list customers failed", zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	resp := map[string]any{
		"error":     false,
		"status":    "success",
		"customers": customers,
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}
