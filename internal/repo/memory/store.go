// Package memory is an in-process record store for development and tests.
// One lock guards every table so multi-table operations are atomic.
package memory

import (
	"sync"

	"github.com/geocoder89/lifeplus/internal/domain/exam"
	"github.com/geocoder89/lifeplus/internal/domain/medicine"
	"github.com/geocoder89/lifeplus/internal/domain/user"
)

type Store struct {
	mu        sync.RWMutex
	users     map[string]user.User
	medicines map[string]medicine.Medicine
	history   map[string]medicine.HistoryEntry
	exams     map[string]exam.Exam
	photos    map[string]exam.Photo
}

func NewStore() *Store {
	return &Store{
		users:     make(map[string]user.User),
		medicines: make(map[string]medicine.Medicine),
		history:   make(map[string]medicine.HistoryEntry),
		exams:     make(map[string]exam.Exam),
		photos:    make(map[string]exam.Photo),
	}
}

func (s *Store) Users() *UsersRepo         { return &UsersRepo{s: s} }
func (s *Store) Medicines() *MedicinesRepo { return &MedicinesRepo{s: s} }
func (s *Store) Exams() *ExamsRepo         { return &ExamsRepo{s: s} }

// Counts reports table sizes, used by tests to check cascades.
func (s *Store) Counts() (users, medicines, history, exams, photos int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), len(s.medicines), len(s.history), len(s.exams), len(s.photos)
}
