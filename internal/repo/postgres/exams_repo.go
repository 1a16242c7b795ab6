package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/lifeplus/internal/domain/exam"
	"github.com/geocoder89/lifeplus/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const examColumns = `id, user_id, name, description, date, result, created_at, updated_at`

// photo metadata only; bytes are read by GetPhoto
const photoMetaColumns = `id, exam_id, file_name, mime_type, size, created_at`

type ExamsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewExamsRepo(pool *pgxpool.Pool, prom *observability.Prom) *ExamsRepo {
	return &ExamsRepo{pool: pool, prom: prom}
}

func (r *ExamsRepo) observe(op string, fn func() error) error {
	return storeErr(r.prom.ObserveDB(op, fn))
}

func scanExam(row pgx.Row) (exam.Exam, error) {
	var e exam.Exam
	err := row.Scan(&e.ID, &e.UserID, &e.Name, &e.Description, &e.Date, &e.Result, &e.CreatedAt, &e.UpdatedAt)
	e.Photos = []exam.Photo{}
	return e, err
}

func insertPhotos(ctx context.Context, tx pgx.Tx, photos []exam.Photo) error {
	if len(photos) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range photos {
		batch.Queue(`
			INSERT INTO exam_photos (id, exam_id, file_name, mime_type, size, data, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			p.ID, p.ExamID, p.FileName, p.MimeType, p.Size, p.Data, p.CreatedAt)
	}
	return tx.SendBatch(ctx, batch).Close()
}

func (r *ExamsRepo) Create(ctx context.Context, e exam.Exam, photos []exam.Photo) (out exam.Exam, err error) {
	tx, err := begin(ctx, r.pool)
	if err != nil {
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("exams.create", func() error {
		_, e2 := tx.Exec(ctx, `
			INSERT INTO exams (`+examColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			e.ID, e.UserID, e.Name, e.Description, e.Date, e.Result, e.CreatedAt, e.UpdatedAt)
		return e2
	})
	if err != nil {
		return
	}

	err = r.observe("exams.create.photos", func() error {
		return insertPhotos(ctx, tx, photos)
	})
	if err != nil {
		return
	}

	if err = commit(ctx, tx); err != nil {
		return
	}

	out = e
	out.Photos = stripData(photos)
	return
}

func (r *ExamsRepo) GetByID(ctx context.Context, id string) (exam.Exam, error) {
	var e exam.Exam
	err := r.observe("exams.get_by_id", func() error {
		var err error
		e, err = scanExam(r.pool.QueryRow(ctx, `SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return exam.Exam{}, exam.ErrNotFound
		}
		return exam.Exam{}, err
	}

	byExam, err := r.photosFor(ctx, []string{e.ID})
	if err != nil {
		return exam.Exam{}, err
	}
	e.Photos = byExam[e.ID]
	if e.Photos == nil {
		e.Photos = []exam.Photo{}
	}
	return e, nil
}

func (r *ExamsRepo) ListByUser(ctx context.Context, userID string) ([]exam.Exam, error) {
	out := make([]exam.Exam, 0)

	err := r.observe("exams.list_by_user", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+examColumns+`
			FROM exams
			WHERE user_id = $1
			ORDER BY date DESC, id`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			e, err := scanExam(rows)
			if err != nil {
				return err
			}
			out = append(out, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(out))
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	byExam, err := r.photosFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		if ps, ok := byExam[out[i].ID]; ok {
			out[i].Photos = ps
		}
	}
	return out, nil
}

func (r *ExamsRepo) photosFor(ctx context.Context, examIDs []string) (map[string][]exam.Photo, error) {
	out := make(map[string][]exam.Photo, len(examIDs))
	if len(examIDs) == 0 {
		return out, nil
	}

	err := r.observe("exams.photos_for", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+photoMetaColumns+`
			FROM exam_photos
			WHERE exam_id = ANY($1::uuid[])
			ORDER BY created_at, id`, examIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var p exam.Photo
			if err := rows.Scan(&p.ID, &p.ExamID, &p.FileName, &p.MimeType, &p.Size, &p.CreatedAt); err != nil {
				return err
			}
			out[p.ExamID] = append(out[p.ExamID], p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update rewrites the exam row, removes the listed photos that belong to this
// exam and adds new ones, all in one transaction. Ids of other exams' photos
// are ignored.
func (r *ExamsRepo) Update(ctx context.Context, e exam.Exam, add []exam.Photo, removeIDs []string) (out exam.Exam, err error) {
	tx, err := begin(ctx, r.pool)
	if err != nil {
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var tag pgconn.CommandTag
	err = r.observe("exams.update", func() error {
		var err error
		tag, err = tx.Exec(ctx, `
			UPDATE exams
			SET name = $2, description = $3, date = $4, result = $5, updated_at = $6
			WHERE id = $1`,
			e.ID, e.Name, e.Description, e.Date, e.Result, e.UpdatedAt)
		return err
	})
	if err != nil {
		return
	}
	if tag.RowsAffected() == 0 {
		err = exam.ErrNotFound
		return
	}

	if len(removeIDs) > 0 {
		err = r.observe("exams.update.remove_photos", func() error {
			_, err := tx.Exec(ctx, `DELETE FROM exam_photos WHERE exam_id = $1 AND id = ANY($2::uuid[])`, e.ID, removeIDs)
			return err
		})
		if err != nil {
			return
		}
	}

	err = r.observe("exams.update.add_photos", func() error {
		return insertPhotos(ctx, tx, add)
	})
	if err != nil {
		return
	}

	if err = commit(ctx, tx); err != nil {
		return
	}

	return r.GetByID(ctx, e.ID)
}

// Delete removes the photos, then the exam, in one transaction.
func (r *ExamsRepo) Delete(ctx context.Context, id string) (err error) {
	tx, err := begin(ctx, r.pool)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("exams.delete.photos", func() error {
		_, err := tx.Exec(ctx, `DELETE FROM exam_photos WHERE exam_id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}

	var tag pgconn.CommandTag
	err = r.observe("exams.delete", func() error {
		var err error
		tag, err = tx.Exec(ctx, `DELETE FROM exams WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return exam.ErrNotFound
	}

	return commit(ctx, tx)
}

// GetPhoto returns the photo with its bytes and the owning user of its exam.
func (r *ExamsRepo) GetPhoto(ctx context.Context, id string) (exam.Photo, error) {
	var p exam.Photo
	err := r.observe("exams.get_photo", func() error {
		return r.pool.QueryRow(ctx, `
			SELECT p.id, p.exam_id, p.file_name, p.mime_type, p.size, p.data, p.created_at, e.user_id
			FROM exam_photos p
			JOIN exams e ON e.id = p.exam_id
			WHERE p.id = $1`, id,
		).Scan(&p.ID, &p.ExamID, &p.FileName, &p.MimeType, &p.Size, &p.Data, &p.CreatedAt, &p.UserID)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return exam.Photo{}, exam.ErrPhotoNotFound
		}
		return exam.Photo{}, err
	}
	return p, nil
}

func stripData(photos []exam.Photo) []exam.Photo {
	out := make([]exam.Photo, len(photos))
	for i, p := range photos {
		p.Data = nil
		out[i] = p
	}
	return out
}
