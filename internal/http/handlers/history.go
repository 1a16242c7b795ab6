package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/lifeplus/internal/config"
	"github.com/geocoder89/lifeplus/internal/domain/medicine"
	"github.com/gin-gonic/gin"
)

type DoseLedger interface {
	RecordDose(ctx context.Context, medicineID, callerID string, takenAt *time.Time, onTime bool) (medicine.HistoryEntry, error)
	ListHistory(ctx context.Context, medicineID, callerID string) ([]medicine.HistoryEntry, error)
	GetHistoryEntry(ctx context.Context, historyID, callerID string) (medicine.HistoryEntry, error)
	DeleteHistoryEntry(ctx context.Context, historyID, callerID string) error
}

type HistoryHandler struct {
	ledger DoseLedger
	log    *slog.Logger
}

func NewHistoryHandler(ledger DoseLedger, log *slog.Logger) *HistoryHandler {
	if log == nil {
		log = slog.Default()
	}
	return &HistoryHandler{ledger: ledger, log: log}
}

// RecordDose appends a dose to the medicine's history. With onTime the
// server computes the time from the schedule and ignores takenAt.
func (h *HistoryHandler) RecordDose(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id", "Medicine not found")
	if !ok {
		return
	}

	var req medicine.RecordDoseRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	entry, err := h.ledger.RecordDose(cctx, id, uid, req.TakenAt, req.OnTime)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, entry)
}

func (h *HistoryHandler) List(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id", "Medicine not found")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	entries, err := h.ledger.ListHistory(cctx, id, uid)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": entries, "count": len(entries)})
}

func (h *HistoryHandler) Get(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "historyId", "History entry not found")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	entry, err := h.ledger.GetHistoryEntry(cctx, id, uid)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, entry)
}

func (h *HistoryHandler) Delete(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "historyId", "History entry not found")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.ledger.DeleteHistoryEntry(cctx, id, uid); err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
