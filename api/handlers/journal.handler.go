package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Waesta/Wapos-sub011/internal/models"
	"github.com/Waesta/Wapos-sub011/internal/utils"
	"go.uber.org/zap"
)

type journalStore interface {
	ListBySource(ctx context.Context, source string, sourceID int64) ([]*models.JournalEntry, error)
}

// JournalHandler exposes the postings view operators use to verify that a
// synced sale produced a balanced journal entry.
type JournalHandler struct {
	DB     journalStore
	logger *zap.Logger
}

func NewJournalHandler(db journalStore, logger *zap.Logger) *JournalHandler {
	return &JournalHandler{DB: db, logger: logger}
}

// ListJournal handles GET /api/v1/journal?source=sale&source_id=N
func (h *JournalHandler) ListJournal(w http.ResponseWriter, r *http.Request) {
	source := utils.GetURLParam(r, "source")
	if source == "" {
		source = models.SOURCE_SALE
	}
	sourceID, _ := strconv.ParseInt(utils.GetURLParam(r, "source_id"), 10, 64)

	entries, err := h.DB.ListBySource(r.Context(), source, sourceID)
	if err != nil {
		h.logger.Error("list journal failed", zap.Error(err))
		utils.ServerError(w, err)
		return
	}

	resp := map[string]any{
		"error":   false,
		"status":  "success",
		"entries": entries,
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}
