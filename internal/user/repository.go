package user

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/ahinestrog/onlinebookstore/internal/apperr"
	"github.com/ahinestrog/onlinebookstore/internal/cart"
	"github.com/ahinestrog/onlinebookstore/internal/domain"
	"github.com/ahinestrog/onlinebookstore/internal/storage"
)

type Repository interface {
	Create(ctx context.Context, u *domain.User) (int64, error)
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUserName(ctx context.Context, name string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Update(ctx context.Context, u *domain.User) error
	// Delete returns reserved cart stock to the shelf, then removes the user.
	Delete(ctx context.Context, id int64) (int, error)
}

type sqliteRepo struct{ db *storage.DB }

func NewSQLiteRepo(db *storage.DB) Repository { return &sqliteRepo{db: db} }

const userColumns = `id,user_name,email,full_name,password_hash,created_unix,updated_unix`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u                domain.User
		created, updated int64
	)
	if err := row.Scan(&u.ID, &u.UserName, &u.Email, &u.FullName, &u.PasswordHash, &created, &updated); err != nil {
		return nil, err
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return &u, nil
}

func duplicate(err error) error {
	if storage.IsUniqueViolation(err) {
		return apperr.Wrap(apperr.Conflict, err, "user name or email already taken")
	}
	return err
}

func (r *sqliteRepo) Create(ctx context.Context, u *domain.User) (int64, error) {
	now := time.Now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	var id int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users(user_name,email,full_name,password_hash,created_unix,updated_unix)
			VALUES(?,?,?,?,?,?)`, u.UserName, u.Email, u.FullName, u.PasswordHash, now.Unix(), now.Unix())
		if err != nil {
			return duplicate(err)
		}
		id, err = res.LastInsertId()
		return err
	})
	return id, err
}

func (r *sqliteRepo) get(ctx context.Context, where string, arg any) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.NotFound, "user not found")
	}
	if err != nil {
		return nil, r.db.Read(ctx, err)
	}
	return u, nil
}

func (r *sqliteRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.get(ctx, `id=?`, id)
}

func (r *sqliteRepo) GetByUserName(ctx context.Context, name string) (*domain.User, error) {
	return r.get(ctx, `user_name=?`, name)
}

func (r *sqliteRepo) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, r.db.Read(ctx, err)
	}
	return storage.Collect(ctx, r.db, rows, func(rows *sql.Rows) (domain.User, error) {
		u, err := scanUser(rows)
		if err != nil {
			return domain.User{}, err
		}
		return *u, nil
	})
}

func (r *sqliteRepo) Update(ctx context.Context, u *domain.User) error {
	u.UpdatedAt = time.Now().UTC()
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users SET user_name=?, email=?, full_name=?, updated_unix=? WHERE id=?`,
			u.UserName, u.Email, u.FullName, u.UpdatedAt.Unix(), u.ID)
		if err != nil {
			return duplicate(err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperr.New(apperr.NotFound, "user not found")
		}
		return nil
	})
}

func (r *sqliteRepo) Delete(ctx context.Context, id int64) (int, error) {
	var released int
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id=?`, id)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return apperr.New(apperr.NotFound, "user not found")
		}
		released, err = cart.ReleaseUserCart(ctx, tx, id)
		return err
	})
	return released, err
}
