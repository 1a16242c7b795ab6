package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/lifeplus/internal/config"
	"github.com/geocoder89/lifeplus/internal/domain/medicine"
	"github.com/geocoder89/lifeplus/internal/medicines"
	"github.com/gin-gonic/gin"
)

type MedicineService interface {
	List(ctx context.Context, callerID string) ([]medicines.View, error)
	Create(ctx context.Context, callerID string, req medicine.CreateRequest) (medicines.View, error)
	Get(ctx context.Context, id, callerID string) (medicines.View, error)
	Update(ctx context.Context, id, callerID string, req medicine.UpdateRequest) (medicines.View, error)
	Delete(ctx context.Context, id, callerID string) error
}

type MedicinesHandler struct {
	svc MedicineService
	log *slog.Logger
}

func NewMedicinesHandler(svc MedicineService, log *slog.Logger) *MedicinesHandler {
	if log == nil {
		log = slog.Default()
	}
	return &MedicinesHandler{svc: svc, log: log}
}

func (h *MedicinesHandler) List(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	items, err := h.svc.List(cctx, uid)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *MedicinesHandler) Create(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}

	var req medicine.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	v, err := h.svc.Create(cctx, uid, req)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, v)
}

func (h *MedicinesHandler) Get(ctx *gin.Context) {
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

	v, err := h.svc.Get(cctx, id, uid)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, v)
}

func (h *MedicinesHandler) Update(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id", "Medicine not found")
	if !ok {
		return
	}

	var req medicine.UpdateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	v, err := h.svc.Update(cctx, id, uid, req)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, v)
}

func (h *MedicinesHandler) Delete(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id", "Medicine not found")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.svc.Delete(cctx, id, uid); err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
