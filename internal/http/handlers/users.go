package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/lifeplus/internal/config"
	"github.com/geocoder89/lifeplus/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type AccountService interface {
	Me(ctx context.Context, id string) (user.User, error)
	List(ctx context.Context) ([]user.User, error)
	UpdatePassword(ctx context.Context, id string, req user.UpdatePasswordRequest) error
	UpdateEmail(ctx context.Context, id string, req user.UpdateEmailRequest) (user.User, error)
	UpdateProfile(ctx context.Context, id string, req user.UpdateProfileRequest) (user.User, error)
	Delete(ctx context.Context, id string) error
}

type UsersHandler struct {
	accounts AccountService
	log      *slog.Logger
}

func NewUsersHandler(accounts AccountService, log *slog.Logger) *UsersHandler {
	if log == nil {
		log = slog.Default()
	}
	return &UsersHandler{accounts: accounts, log: log}
}

func (h *UsersHandler) Me(ctx *gin.Context) {
	id, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.accounts.Me(cctx, id)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

// List is admin only; the router enforces the role.
func (h *UsersHandler) List(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	users, err := h.accounts.List(cctx)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": users, "count": len(users)})
}

func (h *UsersHandler) UpdatePassword(ctx *gin.Context) {
	id, ok := callerID(ctx)
	if !ok {
		return
	}

	var req user.UpdatePasswordRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.accounts.UpdatePassword(cctx, id, req); err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"message": "Password updated."})
}

func (h *UsersHandler) UpdateEmail(ctx *gin.Context) {
	id, ok := callerID(ctx)
	if !ok {
		return
	}

	var req user.UpdateEmailRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	u, err := h.accounts.UpdateEmail(cctx, id, req)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) UpdateProfile(ctx *gin.Context) {
	id, ok := callerID(ctx)
	if !ok {
		return
	}

	var req user.UpdateProfileRequest
	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	u, err := h.accounts.UpdateProfile(cctx, id, req)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}

func (h *UsersHandler) Delete(ctx *gin.Context) {
	id, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.accounts.Delete(cctx, id); err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
