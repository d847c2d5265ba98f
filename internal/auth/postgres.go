package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"lingualabel.org/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, u *User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" {
		return ErrInvalidInput
	}
	if u.ID == "" {
		u.ID = ids.New()
	}
	u.Email = email
	res, err := s.db.ExecContext(ctx, `
		insert into users(id, email, password_hash, full_name, role, is_active)
		values ($1,$2,$3,$4,$5,$6)
		on conflict (email) do nothing
	`, u.ID, u.Email, u.PasswordHash, u.FullName, string(u.Role), u.Active)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (s *PGStore) Find(ctx context.Context, id string) (*User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		select id, email, password_hash, full_name, role, is_active, created_at, updated_at
		from users where id=$1
	`, id))
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanOne(s.db.QueryRowContext(ctx, `
		select id, email, password_hash, full_name, role, is_active, created_at, updated_at
		from users where email=$1
	`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *PGStore) scanOne(row *sql.Row) (*User, error) {
	var (
		u    User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FullName, &role, &u.Active, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}
