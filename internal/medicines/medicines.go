package medicines

import (
	"context"
	"time"

	"github.com/geocoder89/lifeplus/internal/domain/medicine"
	"github.com/geocoder89/lifeplus/internal/ownership"
)

type Store interface {
	Create(ctx context.Context, m medicine.Medicine) (medicine.Medicine, error)
	GetByID(ctx context.Context, id string) (medicine.Medicine, error)
	ListByUser(ctx context.Context, userID string) ([]medicine.Medicine, error)
	Update(ctx context.Context, m medicine.Medicine) (medicine.Medicine, error)
	Delete(ctx context.Context, id string) error
	ListHistory(ctx context.Context, medicineID string) ([]medicine.HistoryEntry, error)
}

// View is a medicine as returned to its owner.
type View struct {
	medicine.Medicine
	NextDoseAt *time.Time              `json:"nextDoseAt"`
	History    []medicine.HistoryEntry `json:"history,omitempty"`
}

func NewView(m medicine.Medicine) View {
	return View{Medicine: m, NextDoseAt: m.NextDose()}
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) owned(ctx context.Context, id, callerID string) (medicine.Medicine, error) {
	return ownership.Load(ctx, s.store.GetByID, func(m medicine.Medicine) string { return m.UserID },
		id, callerID, medicine.ErrNotFound)
}

func (s *Service) List(ctx context.Context, callerID string) ([]View, error) {
	ms, err := s.store.ListByUser(ctx, callerID)
	if err != nil {
		return nil, err
	}

	out := make([]View, 0, len(ms))
	for _, m := range ms {
		out = append(out, NewView(m))
	}
	return out, nil
}

func (s *Service) Create(ctx context.Context, callerID string, req medicine.CreateRequest) (View, error) {
	m := medicine.NewFromCreateRequest(callerID, req)
	if err := m.ValidateStock(); err != nil {
		return View{}, err
	}

	m, err := s.store.Create(ctx, m)
	if err != nil {
		return View{}, err
	}
	return NewView(m), nil
}

// Get returns the medicine with its dose history, newest first.
func (s *Service) Get(ctx context.Context, id, callerID string) (View, error) {
	m, err := s.owned(ctx, id, callerID)
	if err != nil {
		return View{}, err
	}

	hist, err := s.store.ListHistory(ctx, m.ID)
	if err != nil {
		return View{}, err
	}

	v := NewView(m)
	v.History = hist
	return v, nil
}

func (s *Service) Update(ctx context.Context, id, callerID string, req medicine.UpdateRequest) (View, error) {
	m, err := s.owned(ctx, id, callerID)
	if err != nil {
		return View{}, err
	}

	m = m.Apply(req)
	if err := m.ValidateStock(); err != nil {
		return View{}, err
	}

	m, err = s.store.Update(ctx, m)
	if err != nil {
		return View{}, err
	}
	return NewView(m), nil
}

// Delete removes the medicine together with its history.
func (s *Service) Delete(ctx context.Context, id, callerID string) error {
	if _, err := s.owned(ctx, id, callerID); err != nil {
		return err
	}
	return s.store.Delete(ctx, id)
}
