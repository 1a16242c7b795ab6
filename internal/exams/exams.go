// Package exams stores medical exam records. The result text and each
// attachment's file name and mime type are encrypted at rest; owners always
// read them decrypted.
package exams

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/geocoder89/lifeplus/internal/domain/exam"
	"github.com/geocoder89/lifeplus/internal/ownership"
)

type Store interface {
	Create(ctx context.Context, e exam.Exam, photos []exam.Photo) (exam.Exam, error)
	GetByID(ctx context.Context, id string) (exam.Exam, error)
	ListByUser(ctx context.Context, userID string) ([]exam.Exam, error)
	Update(ctx context.Context, e exam.Exam, add []exam.Photo, removeIDs []string) (exam.Exam, error)
	Delete(ctx context.Context, id string) error
	GetPhoto(ctx context.Context, id string) (exam.Photo, error)
}

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
	EncryptOptional(v *string) (*string, error)
	DecryptOptional(v *string) (*string, error)
}

type Service struct {
	store  Store
	cipher Cipher
}

func NewService(store Store, cipher Cipher) *Service {
	return &Service{store: store, cipher: cipher}
}

func (s *Service) owned(ctx context.Context, id, callerID string) (exam.Exam, error) {
	return ownership.Load(ctx, s.store.GetByID, func(e exam.Exam) string { return e.UserID },
		id, callerID, exam.ErrNotFound)
}

func (s *Service) List(ctx context.Context, callerID string) ([]exam.Exam, error) {
	stored, err := s.store.ListByUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	out := make([]exam.Exam, 0, len(stored))
	for _, e := range stored {
		v, err := s.reveal(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id, callerID string) (exam.Exam, error) {
	e, err := s.owned(ctx, id, callerID)
	if err != nil {
		return exam.Exam{}, err
	}
	return s.reveal(e)
}

func (s *Service) Create(ctx context.Context, callerID string, in exam.CreateInput) (exam.Exam, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" || in.Date.IsZero() {
		return exam.Exam{}, exam.ErrMissingFields
	}

	e := exam.New(callerID, in)

	var err error
	if e.Result, err = s.cipher.EncryptOptional(normalizeResult(in.Result)); err != nil {
		return exam.Exam{}, fmt.Errorf("encrypt result: %w", err)
	}

	photos, err := s.sealPhotos(e.ID, in.Photos)
	if err != nil {
		return exam.Exam{}, err
	}

	stored, err := s.store.Create(ctx, e, photos)
	if err != nil {
		return exam.Exam{}, err
	}
	return s.reveal(stored)
}

// Update applies the set fields, drops RemovePhotoIDs that belong to this
// exam and attaches AddPhotos. An empty result clears it.
func (s *Service) Update(ctx context.Context, id, callerID string, in exam.UpdateInput) (exam.Exam, error) {
	e, err := s.owned(ctx, id, callerID)
	if err != nil {
		return exam.Exam{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return exam.Exam{}, exam.ErrMissingFields
		}
		e.Name = name
	}
	if in.Description != nil {
		e.Description = *in.Description
	}
	if in.Date != nil {
		e.Date = in.Date.UTC()
	}
	if in.Result != nil {
		if e.Result, err = s.cipher.EncryptOptional(normalizeResult(in.Result)); err != nil {
			return exam.Exam{}, fmt.Errorf("encrypt result: %w", err)
		}
	}
	e.UpdatedAt = time.Now().UTC()

	add, err := s.sealPhotos(e.ID, in.AddPhotos)
	if err != nil {
		return exam.Exam{}, err
	}

	stored, err := s.store.Update(ctx, e, add, in.RemovePhotoIDs)
	if err != nil {
		return exam.Exam{}, err
	}
	return s.reveal(stored)
}

// Delete removes the exam and all of its photos.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.owned(ctx, id, callerID); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}

// GetPhoto returns the photo bytes with the decrypted name and mime type.
func (s *Service) GetPhoto(ctx context.Context, photoID, callerID string) (exam.Photo, error) {
	p, err := ownership.Load(ctx, s.store.GetPhoto, func(p exam.Photo) string { return p.UserID },
		photoID, callerID, exam.ErrPhotoNotFound)
	if err != nil {
		return exam.Photo{}, err
	}
	return s.revealPhoto(p)
}

func (s *Service) sealPhotos(examID string, in []exam.NewPhoto) ([]exam.Photo, error) {
	out := make([]exam.Photo, 0, len(in))
	for _, np := range in {
		name, err := s.cipher.Encrypt(np.FileName)
		if err != nil {
			return nil, fmt.Errorf("encrypt file name: %w", err)
		}
		mime, err := s.cipher.Encrypt(np.MimeType)
		if err != nil {
			return nil, fmt.Errorf("encrypt mime type: %w", err)
		}
		out = append(out, exam.NewStoredPhoto(examID, name, mime, np.Data))
	}
	return out, nil
}

func (s *Service) reveal(e exam.Exam) (exam.Exam, error) {
	var err error
	if e.Result, err = s.cipher.DecryptOptional(e.Result); err != nil {
		return exam.Exam{}, fmt.Errorf("decrypt exam %s result: %w", e.ID, err)
	}

	photos := make([]exam.Photo, 0, len(e.Photos))
	for _, p := range e.Photos {
		rp, err := s.revealPhoto(p)
		if err != nil {
			return exam.Exam{}, err
		}
		photos = append(photos, rp)
	}
	e.Photos = photos
	return e, nil
}

func (s *Service) revealPhoto(p exam.Photo) (exam.Photo, error) {
	var err error
	if p.FileName, err = s.cipher.Decrypt(p.FileName); err != nil {
		return exam.Photo{}, fmt.Errorf("decrypt photo %s name: %w", p.ID, err)
	}
	if p.MimeType, err = s.cipher.Decrypt(p.MimeType); err != nil {
		return exam.Photo{}, fmt.Errorf("decrypt photo %s mime type: %w", p.ID, err)
	}
	return p, nil
}

func normalizeResult(r *string) *string {
	if r == nil || strings.TrimSpace(*r) == "" {
		return nil
	}
	return r
}
