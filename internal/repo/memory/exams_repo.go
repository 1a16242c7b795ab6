package memory

import (
	"context"
	"sort"

	"github.com/geocoder89/lifeplus/internal/domain/exam"
)

type ExamsRepo struct {
	s *Store
}

func (s *Store) photosOfLocked(examID string) []exam.Photo {
	out := make([]exam.Photo, 0)
	for _, p := range s.photos {
		if p.ExamID == examID {
			p.Data = nil
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) deleteExamLocked(id string) {
	for pid, p := range s.photos {
		if p.ExamID == id {
			delete(s.photos, pid)
		}
	}
	delete(s.exams, id)
}

func (r *ExamsRepo) Create(_ context.Context, e exam.Exam, photos []exam.Photo) (exam.Exam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e.Photos = nil
	r.s.exams[e.ID] = e
	for _, p := range photos {
		r.s.photos[p.ID] = p
	}

	e.Photos = r.s.photosOfLocked(e.ID)
	return e, nil
}

func (r *ExamsRepo) GetByID(_ context.Context, id string) (exam.Exam, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.exams[id]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	e.Photos = r.s.photosOfLocked(id)
	return e, nil
}

func (r *ExamsRepo) ListByUser(_ context.Context, userID string) ([]exam.Exam, error) {
	r.s.mu.RLock()
	out := make([]exam.Exam, 0)
	for _, e := range r.s.exams {
		if e.UserID == userID {
			e.Photos = r.s.photosOfLocked(e.ID)
			out = append(out, e)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID < out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

func (r *ExamsRepo) Update(_ context.Context, e exam.Exam, add []exam.Photo, removeIDs []string) (exam.Exam, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.exams[e.ID]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}

	e.UserID = cur.UserID
	e.CreatedAt = cur.CreatedAt
	e.Photos = nil
	r.s.exams[e.ID] = e

	for _, id := range removeIDs {
		if p, ok := r.s.photos[id]; ok && p.ExamID == e.ID {
			delete(r.s.photos, id)
		}
	}
	for _, p := range add {
		r.s.photos[p.ID] = p
	}

	e.Photos = r.s.photosOfLocked(e.ID)
	return e, nil
}

func (r *ExamsRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.exams[id]; !ok {
		return exam.ErrNotFound
	}
	r.s.deleteExamLocked(id)
	return nil
}

func (r *ExamsRepo) GetPhoto(_ context.Context, id string) (exam.Photo, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.photos[id]
	if !ok {
		return exam.Photo{}, exam.ErrPhotoNotFound
	}
	e, ok := r.s.exams[p.ExamID]
	if !ok {
		return exam.Photo{}, exam.ErrPhotoNotFound
	}
	p.UserID = e.UserID
	return p, nil
}
