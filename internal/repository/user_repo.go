package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"auth-api/internal/domain"
)

// ErrDuplicateEmail indica una violación del índice único sobre email.
var ErrDuplicateEmail = errors.New("duplicate email")

// UserRepository define el contrato de persistencia para usuarios.
// Los métodos de actualización condicional devuelven la cantidad de filas
// afectadas; el llamador decide qué significa cero.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (domain.User, error)
	GetByEmail(ctx context.Context, email string) (domain.User, error)
	SetResetCode(ctx context.Context, email, code string) (int64, error)
	CompletePasswordReset(ctx context.Context, email, code, passwordHash string) (int64, error)
}

// PgUserRepository implementa UserRepository usando pgxpool.
type PgUserRepository struct {
	pool *pgxpool.Pool
}

func NewPgUserRepository(pool *pgxpool.Pool) *PgUserRepository {
	return &PgUserRepository{pool: pool}
}

func (r *PgUserRepository) Create(ctx context.Context, user domain.User) error {
	const query = `
		INSERT INTO users (id, email, name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (r *PgUserRepository) GetByID(ctx context.Context, id string) (domain.User, error) {
	const query = `
		SELECT id, email, name, password_hash, COALESCE(password_reset_code, ''), created_at, updated_at
		FROM users
		WHERE id = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PgUserRepository) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	const query = `
		SELECT id, email, name, password_hash, COALESCE(password_reset_code, ''), created_at, updated_at
		FROM users
		WHERE email = $1
	`
	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

// SetResetCode escribe el código de reset pendiente; un código nuevo siempre
// pisa al anterior.
func (r *PgUserRepository) SetResetCode(ctx context.Context, email, code string) (int64, error) {
	const query = `
		UPDATE users
		SET password_reset_code = $2, updated_at = $3
		WHERE email = $1
	`
	tag, err := r.pool.Exec(ctx, query, email, code, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// CompletePasswordReset reemplaza el hash y limpia el código en una sola
// escritura condicionada por email y código vigente.
func (r *PgUserRepository) CompletePasswordReset(ctx context.Context, email, code, passwordHash string) (int64, error) {
	const query = `
		UPDATE users
		SET password_hash = $3, password_reset_code = NULL, updated_at = $4
		WHERE email = $1 AND password_reset_code = $2
	`
	tag, err := r.pool.Exec(ctx, query, email, code, passwordHash, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PgUserRepository) scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Name,
		&u.PasswordHash,
		&u.PasswordResetCode,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}
