package exam

import (
	"time"

	"github.com/geocoder89/lifeplus/internal/apperr"
	"github.com/google/uuid"
)

// Exam is used both for the stored form, where Result and the photo
// names/mime types hold cipher tokens, and for the decrypted view returned
// to the owner.
type Exam struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Date        time.Time `json:"date"`
	Result      *string   `json:"result"`
	Photos      []Photo   `json:"photos"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Photo struct {
	ID        string    `json:"id"`
	ExamID    string    `json:"examId"`
	FileName  string    `json:"fileName"`
	MimeType  string    `json:"mimeType"`
	Size      int       `json:"size"`
	Data      []byte    `json:"-"`
	CreatedAt time.Time `json:"createdAt"`

	// owner of the parent exam, filled by photo lookups
	UserID string `json:"-"`
}

var (
	ErrNotFound      = apperr.New(apperr.KindNotFound, "exam_not_found", "exam not found")
	ErrPhotoNotFound = apperr.New(apperr.KindNotFound, "photo_not_found", "photo not found")
	ErrMissingFields = apperr.New(apperr.KindValidation, "missing_fields", "name and date are required")
)

// NewPhoto is an uploaded file before encryption.
type NewPhoto struct {
	FileName string
	MimeType string
	Data     []byte
}

type CreateInput struct {
	Name        string
	Description string
	Date        time.Time
	Result      *string
	Photos      []NewPhoto
}

type UpdateInput struct {
	Name           *string
	Description    *string
	Date           *time.Time
	Result         *string
	AddPhotos      []NewPhoto
	RemovePhotoIDs []string
}

func New(userID string, in CreateInput) Exam {
	now := time.Now().UTC()
	return Exam{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        in.Name,
		Description: in.Description,
		Date:        in.Date.UTC(),
		Result:      in.Result,
		Photos:      []Photo{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewStoredPhoto builds a photo row; fileName and mimeType are expected to be
// cipher tokens already.
func NewStoredPhoto(examID, fileName, mimeType string, data []byte) Photo {
	return Photo{
		ID:        uuid.NewString(),
		ExamID:    examID,
		FileName:  fileName,
		MimeType:  mimeType,
		Size:      len(data),
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}
