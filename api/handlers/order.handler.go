package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/Waesta/Wapos-sub011/internal/dbrepo"
	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type orderStore interface {
	CreateOrder(ctx context.Context, p *models.OrderPayload) (*models.OrderIngestResult, error)
	GetOrderByID(ctx context.Context, id int64) (*models.OrderDB, error)
}

type OrderHandler struct {
	DB     orderStore
	logger *zap.Logger
}

func NewOrderHandler(db orderStore, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{DB: db, logger: logger}
}

// AddOrder handles POST /api/v1/orders
func (h *OrderHandler) AddOrder(w http.ResponseWriter, r *http.Request) {
	var payload models.OrderPayload
	if err := utils.ReadJSON(w, r, &payload); err != nil {
		h.logger.Warn("order payload unreadable", zap.Error(err))
		utils.BadRequest(w, err)
		return
	}

	if err := payload.Validate(); err != nil {
		h.logger.Warn("order payload rejected",
			zap.String("external_id", payload.ExternalID),
			zap.Error(err))
		utils.UnprocessableEntity(w, err)
		return
	}

	result, err := h.DB.CreateOrder(r.Context(), &payload)
	if err != nil {
		h.logger.Error("order ingestion failed",
			zap.String("external_id", payload.ExternalID),
			zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	status := http.StatusCreated
	message := "Order recorded successfully"
	if result.IsDuplicate {
		status = http.StatusOK
		message = "Order already recorded"
	}

	resp := map[string]any{
		"error":        false,
		"status":       "success",
		"message":      message,
		"is_duplicate": result.IsDuplicate,
		"order":        result.Order,
	}
	utils.WriteJSON(w, status, resp)
}

// GetOrderByID handles GET /api/v1/orders/{id}
func (h *OrderHandler) GetOrderByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.BadRequest(w, errors.New("invalid order id"))
		return
	}

	order, err := h.DB.GetOrderByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, dbrepo.ErrOrderNotFound) {
			utils.NotFound(w, "Order not found")
			return
		}
		h.logger.Error("get order failed", zap.Int64("id", id), zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	resp := map[string]any{
		"error":  false,
		"status": "success",
		"order":  order,
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}
