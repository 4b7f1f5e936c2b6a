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

type saleStore interface {
	CreateSale(ctx context.Context, p *models.SalePayload) (*models.SaleIngestResult, error)
	GetSaleByID(ctx context.Context, id int64) (*models.SaleDB, error)
}

type SaleHandler struct {
	DB     saleStore
	logger *zap.Logger
}

func NewSaleHandler(db saleStore, logger *zap.Logger) *SaleHandler {
	return &SaleHandler{DB: db, logger: logger}
}

// AddSale handles POST /api/v1/sales. The response status encodes the
// outcome the sync engine acts on: 201 committed, 200 already committed,
// 422 rejected for manual resolution, 500 retry later.
func (h *SaleHandler) AddSale(w http.ResponseWriter, r *http.Request) {
	var payload models.SalePayload
	if err := utils.ReadJSON(w, r, &payload); err != nil {
		h.logger.Warn("sale payload unreadable", zap.Error(err))
		utils.BadRequest(w, err)
		return
	}

	if err := payload.Validate(); err != nil {
		h.logger.Warn("sale payload rejected",
			zap.String("external_id", payload.ExternalID),
			zap.Error(err))
		utils.UnprocessableEntity(w, err)
		return
	}

	result, err := h.DB.CreateSale(r.Context(), &payload)
	if err != nil {
		if errors.Is(err, dbrepo.ErrProductNotFound) {
			h.logger.Warn("sale references missing product",
				zap.String("external_id", payload.ExternalID),
				zap.Error(err))
			utils.UnprocessableEntity(w, err)
			return
		}
		h.logger.Error("sale ingestion failed",
			zap.String("external_id", payload.ExternalID),
			zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	status := http.StatusCreated
	message := "Sale recorded successfully"
	if result.IsDuplicate {
		status = http.StatusOK
		message = "Sale already recorded"
	}
	h.logger.Info("sale ingested",
		zap.String("external_id", payload.ExternalID),
		zap.String("sale_number", result.Sale.SaleNumber),
		zap.Bool("is_duplicate", result.IsDuplicate),
		zap.Bool("sync_request", utils.IsSyncRequest(r)))

	resp := map[string]any{
		"error":        false,
		"status":       "success",
		"message":      message,
		"is_duplicate": result.IsDuplicate,
		"sale":         result.Sale,
	}
	utils.WriteJSON(w, status, resp)
}

// GetSaleByID handles GET /api/v1/sales/{id}
func (h *SaleHandler) GetSaleByID(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		utils.BadRequest(w, errors.New("invalid sale id"))
		return
	}

	sale, err := h.DB.GetSaleByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, dbrepo.ErrSaleNotFound) {
			utils.NotFound(w, "Sale not found")
			return
		}
		h.logger.Error("get sale failed", zap.Int64("id", id), zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	resp := map[string]any{
		"error":  false,
		"status": "success",
		"sale":   sale,
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}
