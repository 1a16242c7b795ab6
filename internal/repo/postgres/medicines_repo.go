package postgres

import (
	"context"
	"errors"

	"github.com/geocoder89/lifeplus/internal/domain/medicine"
	"github.com/geocoder89/lifeplus/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const medicineColumns = `id, user_id, name, type, interval_hours, last_taken_at, continuous_use,
	treatment_finished, total_pills, pills_per_dose, total_ml, ml_per_dose, created_at, updated_at`

const historyColumns = `id, medicine_id, taken_at, on_time, created_at`

type MedicinesRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewMedicinesRepo(pool *pgxpool.Pool, prom *observability.Prom) *MedicinesRepo {
	return &MedicinesRepo{pool: pool, prom: prom}
}

func (r *MedicinesRepo) observe(op string, fn func() error) error {
	return storeErr(r.prom.ObserveDB(op, fn))
}

func scanMedicine(row pgx.Row) (medicine.Medicine, error) {
	var m medicine.Medicine
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Name,
		&m.Type,
		&m.IntervalHours,
		&m.LastTakenAt,
		&m.ContinuousUse,
		&m.TreatmentFinished,
		&m.TotalPills,
		&m.PillsPerDose,
		&m.TotalMl,
		&m.MlPerDose,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

func scanHistory(row pgx.Row) (medicine.HistoryEntry, error) {
	var h medicine.HistoryEntry
	err := row.Scan(&h.ID, &h.MedicineID, &h.TakenAt, &h.OnTime, &h.CreatedAt)
	return h, err
}

func (r *MedicinesRepo) Create(ctx context.Context, m medicine.Medicine) (medicine.Medicine, error) {
	err := r.observe("medicines.create", func() error {
		_, e := r.pool.Exec(ctx, `
			INSERT INTO medicines (`+medicineColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			m.ID, m.UserID, m.Name, m.Type, m.IntervalHours, m.LastTakenAt, m.ContinuousUse,
			m.TreatmentFinished, m.TotalPills, m.PillsPerDose, m.TotalMl, m.MlPerDose, m.CreatedAt, m.UpdatedAt,
		)
		return e
	})
	if err != nil {
		return medicine.Medicine{}, err
	}
	return m, nil
}

func (r *MedicinesRepo) GetByID(ctx context.Context, id string) (medicine.Medicine, error) {
	var m medicine.Medicine
	err := r.observe("medicines.get_by_id", func() error {
		var e error
		m, e = scanMedicine(r.pool.QueryRow(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1`, id))
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return medicine.Medicine{}, medicine.ErrNotFound
		}
		return medicine.Medicine{}, err
	}
	return m, nil
}

func (r *MedicinesRepo) ListByUser(ctx context.Context, userID string) ([]medicine.Medicine, error) {
	out := make([]medicine.Medicine, 0)

	err := r.observe("medicines.list_by_user", func() error {
		rows, e := r.pool.Query(ctx, `
			SELECT `+medicineColumns+`
			FROM medicines
			WHERE user_id = $1
			ORDER BY created_at DESC, id`, userID)
		if e != nil {
			return e
		}
		defer rows.Close()

		for rows.Next() {
			m, e := scanMedicine(rows)
			if e != nil {
				return e
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Update writes every profile column. last_taken_at is left alone.
func (r *MedicinesRepo) Update(ctx context.Context, m medicine.Medicine) (medicine.Medicine, error) {
	var out medicine.Medicine
	err := r.observe("medicines.update", func() error {
		var e error
		out, e = scanMedicine(r.pool.QueryRow(ctx, `
			UPDATE medicines
			SET name = $2,
			    type = $3,
			    interval_hours = $4,
			    continuous_use = $5,
			    treatment_finished = $6,
			    total_pills = $7,
			    pills_per_dose = $8,
			    total_ml = $9,
			    ml_per_dose = $10,
			    updated_at = $11
			WHERE id = $1
			RETURNING `+medicineColumns,
			m.ID, m.Name, m.Type, m.IntervalHours, m.ContinuousUse, m.TreatmentFinished,
			m.TotalPills, m.PillsPerDose, m.TotalMl, m.MlPerDose, m.UpdatedAt,
		))
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return medicine.Medicine{}, medicine.ErrNotFound
		}
		return medicine.Medicine{}, err
	}
	return out, nil
}

// Delete removes the medicine and its dose history in one transaction. The
// medicine row is locked first so a concurrent RecordDose either commits
// before the history is cleared or finds the medicine gone.
func (r *MedicinesRepo) Delete(ctx context.Context, id string) (err error) {
	tx, err := begin(ctx, r.pool)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = r.observe("medicines.delete.lock", func() error {
		var locked string
		return tx.QueryRow(ctx, `SELECT id FROM medicines WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return medicine.ErrNotFound
		}
		return err
	}

	err = r.observe("medicines.delete.history", func() error {
		_, e := tx.Exec(ctx, `DELETE FROM medicine_history WHERE medicine_id = $1`, id)
		return e
	})
	if err != nil {
		return err
	}

	err = r.observe("medicines.delete", func() error {
		_, e := tx.Exec(ctx, `DELETE FROM medicines WHERE id = $1`, id)
		return e
	})
	if err != nil {
		return err
	}

	return commit(ctx, tx)
}

// RecordDose locks the medicine row, lets decide build the entry from the
// locked state, then inserts it and advances last_taken_at before commit.
// Concurrent calls for one medicine are applied one at a time.
func (r *MedicinesRepo) RecordDose(ctx context.Context, medicineID string, decide func(m medicine.Medicine) (medicine.HistoryEntry, error)) (entry medicine.HistoryEntry, err error) {
	tx, err := begin(ctx, r.pool)
	if err != nil {
		return
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var m medicine.Medicine
	err = r.observe("medicines.record_dose.lock", func() error {
		var e error
		m, e = scanMedicine(tx.QueryRow(ctx, `SELECT `+medicineColumns+` FROM medicines WHERE id = $1 FOR UPDATE`, medicineID))
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = medicine.ErrNotFound
		}
		return
	}

	entry, err = decide(m)
	if err != nil {
		return
	}

	err = r.observe("medicines.record_dose.insert", func() error {
		_, e := tx.Exec(ctx, `
			INSERT INTO medicine_history (`+historyColumns+`)
			VALUES ($1,$2,$3,$4,$5)`,
			entry.ID, entry.MedicineID, entry.TakenAt, entry.OnTime, entry.CreatedAt)
		return e
	})
	if err != nil {
		return
	}

	err = r.observe("medicines.record_dose.advance", func() error {
		_, e := tx.Exec(ctx, `UPDATE medicines SET last_taken_at = $2, updated_at = $3 WHERE id = $1`,
			medicineID, entry.TakenAt, entry.CreatedAt)
		return e
	})
	if err != nil {
		return
	}

	err = commit(ctx, tx)
	return
}

func (r *MedicinesRepo) ListHistory(ctx context.Context, medicineID string) ([]medicine.HistoryEntry, error) {
	out := make([]medicine.HistoryEntry, 0)

	err := r.observe("medicines.list_history", func() error {
		rows, e := r.pool.Query(ctx, `
			SELECT `+historyColumns+`
			FROM medicine_history
			WHERE medicine_id = $1
			ORDER BY taken_at DESC, id`, medicineID)
		if e != nil {
			return e
		}
		defer rows.Close()

		for rows.Next() {
			h, e := scanHistory(rows)
			if e != nil {
				return e
			}
			out = append(out, h)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *MedicinesRepo) GetHistory(ctx context.Context, id string) (medicine.HistoryEntry, error) {
	var h medicine.HistoryEntry
	err := r.observe("medicines.get_history", func() error {
		var e error
		h, e = scanHistory(r.pool.QueryRow(ctx, `SELECT `+historyColumns+` FROM medicine_history WHERE id = $1`, id))
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return medicine.HistoryEntry{}, medicine.ErrHistoryNotFound
		}
		return medicine.HistoryEntry{}, err
	}
	return h, nil
}

func (r *MedicinesRepo) DeleteHistory(ctx context.Context, id string) error {
	var tag pgconn.CommandTag
	err := r.observe("medicines.delete_history", func() error {
		var e error
		tag, e = r.pool.Exec(ctx, `DELETE FROM medicine_history WHERE id = $1`, id)
		return e
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return medicine.ErrHistoryNotFound
	}
	return nil
}
