package handlers

import (
	"context"
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/geocoder89/lifeplus/internal/config"
	"github.com/geocoder89/lifeplus/internal/domain/exam"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ExamService interface {
	List(ctx context.Context, callerID string) ([]exam.Exam, error)
	Get(ctx context.Context, id, callerID string) (exam.Exam, error)
	Create(ctx context.Context, callerID string, in exam.CreateInput) (exam.Exam, error)
	Update(ctx context.Context, id, callerID string, in exam.UpdateInput) (exam.Exam, error)
	Delete(ctx context.Context, id, callerID string) error
	GetPhoto(ctx context.Context, photoID, callerID string) (exam.Photo, error)
}

type ExamsHandler struct {
	svc ExamService
	log *slog.Logger
}

func NewExamsHandler(svc ExamService, log *slog.Logger) *ExamsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &ExamsHandler{svc: svc, log: log}
}

func (h *ExamsHandler) List(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 3*time.Second)
	defer cancel()

	items, err := h.svc.List(cctx, uid)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{"items": items, "count": len(items)})
}

func (h *ExamsHandler) Get(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id", "Exam not found")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 2*time.Second)
	defer cancel()

	e, err := h.svc.Get(cctx, id, uid)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, e)
}

func (h *ExamsHandler) Create(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}

	form, ok := parseForm(ctx)
	if !ok {
		return
	}

	in := exam.CreateInput{
		Name:        ctx.PostForm("name"),
		Description: ctx.PostForm("description"),
	}

	if raw := ctx.PostForm("date"); raw != "" {
		d, err := parseExamDate(raw)
		if err != nil {
			respondBadDate(ctx)
			return
		}
		in.Date = d
	}
	if r, ok := ctx.GetPostForm("result"); ok {
		in.Result = &r
	}

	if in.Photos, ok = h.readPhotos(ctx, formFiles(form, "files")); !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()

	e, err := h.svc.Create(cctx, uid, in)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusCreated, e)
}

func (h *ExamsHandler) Update(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id", "Exam not found")
	if !ok {
		return
	}

	form, ok := parseForm(ctx)
	if !ok {
		return
	}

	var in exam.UpdateInput

	// absent fields stay untouched
	if v, ok := ctx.GetPostForm("name"); ok {
		in.Name = &v
	}
	if v, ok := ctx.GetPostForm("description"); ok {
		in.Description = &v
	}
	if v, ok := ctx.GetPostForm("result"); ok {
		in.Result = &v
	}
	if raw, ok := ctx.GetPostForm("date"); ok {
		d, err := parseExamDate(raw)
		if err != nil {
			respondBadDate(ctx)
			return
		}
		in.Date = &d
	}

	if in.RemovePhotoIDs, ok = removePhotoIDs(ctx, form); !ok {
		return
	}

	if in.AddPhotos, ok = h.readPhotos(ctx, formFiles(form, "files")); !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 10*time.Second)
	defer cancel()

	e, err := h.svc.Update(cctx, id, uid, in)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.JSON(http.StatusOK, e)
}

func (h *ExamsHandler) Delete(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "id", "Exam not found")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.svc.Delete(cctx, id, uid); err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}

// GetPhoto streams the stored bytes back with the original name and type.
func (h *ExamsHandler) GetPhoto(ctx *gin.Context) {
	uid, ok := callerID(ctx)
	if !ok {
		return
	}
	id, ok := pathID(ctx, "photoId", "Photo not found")
	if !ok {
		return
	}

	cctx, cancel := config.WithTimeout(ctx.Request.Context(), 5*time.Second)
	defer cancel()

	p, err := h.svc.GetPhoto(cctx, id, uid)
	if err != nil {
		RespondDomainError(ctx, h.log, err)
		return
	}

	ctx.Header("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": p.FileName}))
	ctx.Header("Cache-Control", "private, no-store")
	ctx.Data(http.StatusOK, p.MimeType, p.Data)
}

func (h *ExamsHandler) readPhotos(ctx *gin.Context, files []*multipart.FileHeader) ([]exam.NewPhoto, bool) {
	photos, err := readUploads(files)
	if err == nil {
		return photos, true
	}

	var ue *uploadError
	if !errors.As(err, &ue) {
		RespondDomainError(ctx, h.log, err)
		return nil, false
	}

	switch {
	case errors.Is(err, errFileTooLarge):
		RespondError(ctx, http.StatusRequestEntityTooLarge, "file_too_large", ue.err.Error(), gin.H{"file": ue.file})
	case errors.Is(err, errContentTypeSpoofed):
		RespondError(ctx, http.StatusBadRequest, "content_type_mismatch", ue.err.Error(), gin.H{"file": ue.file})
	default:
		RespondError(ctx, http.StatusUnsupportedMediaType, "unsupported_file_type", ue.err.Error(), gin.H{"file": ue.file})
	}
	return nil, false
}

func parseForm(ctx *gin.Context) (*multipart.Form, bool) {
	form, err := ctx.MultipartForm()
	if err == nil {
		return form, true
	}

	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		RespondError(ctx, http.StatusRequestEntityTooLarge, "request_too_large", "Request body is too large", nil)
		return nil, false
	}

	RespondBadRequest(ctx, "Invalid multipart form", gin.H{"reason": err.Error()})
	return nil, false
}

// removePhotoIDs reads removePhotos ids; ids are uuids so anything else is
// rejected before it reaches the store.
func removePhotoIDs(ctx *gin.Context, form *multipart.Form) ([]string, bool) {
	raw := formValues(form, "removePhotos")
	ids := make([]string, 0, len(raw))

	for _, v := range raw {
		id, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			RespondBadRequest(ctx, "Invalid photo id", gin.H{"fields": []FieldError{{
				Field:   "removePhotos",
				Rule:    "uuid",
				Message: "must contain photo ids",
			}}})
			return nil, false
		}
		ids = append(ids, id.String())
	}
	return ids, true
}

func respondBadDate(ctx *gin.Context) {
	RespondBadRequest(ctx, "Invalid date", gin.H{"fields": []FieldError{{
		Field:   "date",
		Rule:    "datetime",
		Message: "must be YYYY-MM-DD or an RFC3339 timestamp",
	}}})
}
