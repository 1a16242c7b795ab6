package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/geocoder89/lifeplus/internal/domain/user"
	"github.com/geocoder89/lifeplus/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, name, email, password_hash, birth_date, role, created_at, updated_at`

type UsersRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewUsersRepo(pool *pgxpool.Pool, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{pool: pool, prom: prom}
}

func (r *UsersRepo) observe(op string, fn func() error) error {
	return storeErr(r.prom.ObserveDB(op, fn))
}

func scanUser(row pgx.Row) (user.User, error) {
	var u user.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.BirthDate,
		&u.Role,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

func isEmailConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "users_email_uniq"
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	err := r.observe("users.create", func() error {
		_, e := r.pool.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, birth_date, role, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			u.ID, u.Name, u.Email, u.PasswordHash, u.BirthDate, u.Role, u.CreatedAt, u.UpdatedAt,
		)
		return e
	})
	if err != nil {
		if isEmailConflict(err) {
			return user.User{}, user.ErrEmailAlreadyUsed
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	var u user.User
	err := r.observe("users.get_by_id", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := r.observe("users.get_by_email", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UsersRepo) List(ctx context.Context) ([]user.User, error) {
	out := make([]user.User, 0)

	err := r.observe("users.list", func() error {
		rows, e := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id`)
		if e != nil {
			return e
		}
		defer rows.Close()

		for rows.Next() {
			u, e := scanUser(rows)
			if e != nil {
				return e
			}
			out = append(out, u)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateOne(ctx, "users.update_password",
		`UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`,
		id, passwordHash, time.Now().UTC())
}

func (r *UsersRepo) UpdateEmail(ctx context.Context, id, email string) error {
	err := r.updateOne(ctx, "users.update_email",
		`UPDATE users SET email = $2, updated_at = $3 WHERE id = $1`,
		id, email, time.Now().UTC())
	if isEmailConflict(err) {
		return user.ErrEmailAlreadyUsed
	}
	return err
}

func (r *UsersRepo) UpdateProfile(ctx context.Context, id string, p user.Profile) (user.User, error) {
	var u user.User
	err := r.observe("users.update_profile", func() error {
		var e error
		u, e = scanUser(r.pool.QueryRow(ctx, `
			UPDATE users
			SET name = COALESCE($2, name),
			    birth_date = COALESCE($3, birth_date),
			    updated_at = $4
			WHERE id = $1
			RETURNING `+userColumns,
			id, p.Name, p.BirthDate, time.Now().UTC()))
		return e
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

// Delete removes the user and everything the user owns in one transaction,
// children first.
func (r *UsersRepo) Delete(ctx context.Context, id string) (err error) {
	tx, err := begin(ctx, r.pool)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	steps := []struct {
		op  string
		sql string
	}{
		// hold concurrent dose recordings off the medicines being removed
		{"users.delete.lock_medicines", `SELECT id FROM medicines WHERE user_id = $1 FOR UPDATE`},
		{"users.delete.exam_photos", `DELETE FROM exam_photos WHERE exam_id IN (SELECT id FROM exams WHERE user_id = $1)`},
		{"users.delete.exams", `DELETE FROM exams WHERE user_id = $1`},
		{"users.delete.medicine_history", `DELETE FROM medicine_history WHERE medicine_id IN (SELECT id FROM medicines WHERE user_id = $1)`},
		{"users.delete.medicines", `DELETE FROM medicines WHERE user_id = $1`},
	}
	for _, s := range steps {
		err = r.observe(s.op, func() error {
			_, e := tx.Exec(ctx, s.sql, id)
			return e
		})
		if err != nil {
			return err
		}
	}

	var tag pgconn.CommandTag
	err = r.observe("users.delete", func() error {
		var e error
		tag, e = tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
		return e
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}

	return commit(ctx, tx)
}

func (r *UsersRepo) updateOne(ctx context.Context, op, sql string, args ...any) error {
	var tag pgconn.CommandTag
	err := r.observe(op, func() error {
		var e error
		tag, e = r.pool.Exec(ctx, sql, args...)
		return e
	})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}
