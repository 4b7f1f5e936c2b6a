package handlers

import (
	"context"
	"net/http"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"go.uber.org/zap"
)

type productStore interface {
	GetProducts(ctx context.Context) ([]*models.Product, error)
	GetCategories(ctx context.Context) ([]*models.Category, error)
}

type ProductHandler struct {
	DB     productStore
	logger *zap.Logger
}

func NewProductHandler(db productStore, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{DB: db, logger: logger}
}

// GetProductsHandler fetches the catalog for the client reference cache
// Example: GET /api/v1/products
func (h *ProductHandler) GetProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := h.DB.GetProducts(r.Context())
	if err != nil {
		h.logger.Error("list products failed", zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	var resp struct {
		Error    bool              `json:"error"`
		Status   string            `json:"status"`
		Products []*models.Product `json:"products"`
	}
	resp.Error = false
	resp.Status = "success"
	resp.Products = products

	utils.WriteJSON(w, http.StatusOK, resp)
}

// GetCategoriesHandler fetches categories for the client reference cache
// Example: GET /api/v1/categories
func (h *ProductHandler) GetCategoriesHandler(w http.ResponseWriter, r *http.Request) {
	categories, err := h.DB.GetCategories(r.Context())
	if err != nil {
		h.logger.Error("list categories failed", zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	var resp struct {
		Error      bool               `json:"error"`
		Status     string             `json:"status"`
		Categories []*models.Category `json:"categories"`
	}
	resp.Error = false
	resp.Status = "success"
	resp.Categories = categories

	utils.WriteJSON(w, http.StatusOK, resp)
}
