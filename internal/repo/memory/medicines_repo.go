package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/lifeplus/internal/domain/medicine"
)

type MedicinesRepo struct {
	s *Store
}

func (r *MedicinesRepo) Create(_ context.Context, m medicine.Medicine) (medicine.Medicine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.medicines[m.ID] = m
	return m, nil
}

func (r *MedicinesRepo) GetByID(_ context.Context, id string) (medicine.Medicine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.medicines[id]
	if !ok {
		return medicine.Medicine{}, medicine.ErrNotFound
	}
	return m, nil
}

func (r *MedicinesRepo) ListByUser(_ context.Context, userID string) ([]medicine.Medicine, error) {
	r.s.mu.RLock()
	out := make([]medicine.Medicine, 0)
	for _, m := range r.s.medicines {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MedicinesRepo) Update(_ context.Context, m medicine.Medicine) (medicine.Medicine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.medicines[m.ID]
	if !ok {
		return medicine.Medicine{}, medicine.ErrNotFound
	}
	// the dose cursor only moves through RecordDose
	m.LastTakenAt = cur.LastTakenAt
	m.UserID = cur.UserID
	m.CreatedAt = cur.CreatedAt
	r.s.medicines[m.ID] = m
	return m, nil
}

func (r *MedicinesRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.medicines[id]; !ok {
		return medicine.ErrNotFound
	}
	r.s.deleteMedicineLocked(id)
	return nil
}

// RecordDose holds the store lock across load, decide and apply. Nothing is
// written unless decide succeeds.
func (r *MedicinesRepo) RecordDose(_ context.Context, medicineID string, decide func(m medicine.Medicine) (medicine.HistoryEntry, error)) (medicine.HistoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.medicines[medicineID]
	if !ok {
		return medicine.HistoryEntry{}, medicine.ErrNotFound
	}

	entry, err := decide(m)
	if err != nil {
		return medicine.HistoryEntry{}, err
	}

	taken := entry.TakenAt
	m.LastTakenAt = &taken
	m.UpdatedAt = entry.CreatedAt

	r.s.history[entry.ID] = entry
	r.s.medicines[medicineID] = m
	return entry, nil
}

func (r *MedicinesRepo) ListHistory(_ context.Context, medicineID string) ([]medicine.HistoryEntry, error) {
	r.s.mu.RLock()
	out := make([]medicine.HistoryEntry, 0)
	for _, h := range r.s.history {
		if h.MedicineID == medicineID {
			out = append(out, h)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].TakenAt.Equal(out[j].TakenAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].TakenAt.After(out[j].TakenAt)
	})
	return out, nil
}

func (r *MedicinesRepo) GetHistory(_ context.Context, id string) (medicine.HistoryEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	h, ok := r.s.history[id]
	if !ok {
		return medicine.HistoryEntry{}, medicine.ErrHistoryNotFound
	}
	return h, nil
}

func (r *MedicinesRepo) DeleteHistory(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.history[id]; !ok {
		return medicine.ErrHistoryNotFound
	}
	delete(r.s.history, id)
	return nil
}

func (s *Store) deleteMedicineLocked(id string) {
	for hid, h := range s.history {
		if h.MedicineID == id {
			delete(s.history, hid)
		}
	}
	delete(s.medicines, id)
}
