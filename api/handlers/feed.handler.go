package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Waesta/Wapos-sub011/internal/dbrepo"
	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"go.uber.org/zap"
)

type saleLister interface {
	ListSales(ctx context.Context, f dbrepo.SaleFilter) ([]*models.SaleDB, error)
}

// FeedHandler serves the delta query surface clients poll to pull sales
// recorded by other registers.
type FeedHandler struct {
	DB     saleLister
	logger *zap.Logger
}

func NewFeedHandler(db saleLister, logger *zap.Logger) *FeedHandler {
	return &FeedHandler{DB: db, logger: logger}
}

// GetSales handles GET /api/v1/sales?since=...&after_id=...&limit=...&offset=...&location_id=...
// The response carries a content fingerprint as the ETag; a request whose
// If-None-Match still matches gets 304 with no body.
func (h *FeedHandler) GetSales(w http.ResponseWriter, r *http.Request) {
	filter, err := parseSaleFilter(r)
	if err != nil {
		utils.BadRequest(w, err)
		return
	}

	sales, err := h.DB.ListSales(r.Context(), filter)
	if err != nil {
		h.logger.Error("delta feed query failed", zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	resp := struct {
		Error bool             `json:"error"`
		Count int              `json:"count"`
		Sales []*models.SaleDB `json:"sales"`
	}{
		Error: false,
		Count: len(sales),
		Sales: sales,
	}

	body, err := json.Marshal(resp)
	if err != nil {
		utils.ServerError(w, err)
		return
	}

	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:]) + `"`
	w.Header().Set("ETag", etag)
	if lm := maxUpdatedAt(sales); !lm.IsZero() {
		w.Header().Set("Last-Modified", lm.UTC().Format(http.TimeFormat))
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func parseSaleFilter(r *http.Request) (dbrepo.SaleFilter, error) {
	var f dbrepo.SaleFilter

	if s := utils.GetURLParam(r, "since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return f, errors.New("invalid since format (expected RFC3339)")
		}
		f.Since = &t
	}
	if s := utils.GetURLParam(r, "after_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id < 0 {
			return f, errors.New("invalid after_id")
		}
		f.AfterID = id
	}
	if s := utils.GetURLParam(r, "limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 1 {
			return f, errors.New("invalid limit")
		}
		if limit > 100 {
			limit = 100
		}
		f.Limit = limit
	}
	if s := utils.GetURLParam(r, "offset"); s != "" {
		offset, err := strconv.Atoi(s)
		if err != nil || offset < 0 {
			return f, errors.New("invalid offset")
		}
		f.Offset = offset
	}
	if s := utils.GetURLParam(r, "location_id"); s != "" {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil || id < 0 {
			return f, errors.New("invalid location_id")
		}
		f.LocationID = id
	}
	return f, nil
}

func maxUpdatedAt(sales []*models.SaleDB) time.Time {
	var max time.Time
	for _, s := range sales {
		if s.UpdatedAt.After(max) {
			max = s.UpdatedAt
		}
	}
	return max
}
