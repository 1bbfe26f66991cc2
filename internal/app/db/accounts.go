package db

import (
	"context"

	"github.com/jackc/pgx/v5"

	"hotelchat/internal/app/user"
	"hotelchat/internal/model"
	"hotelchat/internal/pkg/errs"
)

const identityColumns = `id, email, username, role, first_name, last_name, bio, avatar_ref, version, created_at, updated_at`

func scanAccount(row pgx.Row, withHash bool) (user.Account, error) {
	var (
		acct user.Account
		role string
	)
	dest := []any{
		&acct.ID, &acct.Email, &acct.Username, &role,
		&acct.Profile.FirstName, &acct.Profile.LastName, &acct.Profile.Bio,
		&acct.AvatarRef, &acct.Version, &acct.CreatedAt, &acct.UpdatedAt,
	}
	if withHash {
		dest = append(dest, &acct.PasswordHash)
	}

	if err := row.Scan(dest...); err != nil {
		if IsNoRows(err) {
			return user.Account{}, errs.NewError(errs.ErrUserNotFound)
		}
		return user.Account{}, internal(err)
	}
	acct.Role = model.Role(role)
	return acct, nil
}

func (s *Store) CreateAccount(ctx context.Context, acct user.Account) (model.Identity, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, email, username, password_hash, role, first_name, last_name, bio, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		acct.ID, acct.Email, acct.Username, acct.PasswordHash, string(acct.Role),
		acct.Profile.FirstName, acct.Profile.LastName, acct.Profile.Bio,
		acct.Version, acct.CreatedAt, acct.UpdatedAt,
	)
	if constraint, dup := IsUniqueViolation(err); dup {
		e := errs.NewError(errs.ErrUserAlreadyExists)
		if constraint == "users_username_key" {
			e.Fields = map[string]string{"username": "This username is already taken"}
		} else {
			e.Fields = map[string]string{"email": "This email is already registered"}
		}
		return model.Identity{}, e
	}
	if err != nil {
		return model.Identity{}, internal(err)
	}
	return acct.Identity, nil
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (user.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+`, password_hash FROM users WHERE lower(email) = lower($1)`, email)
	return scanAccount(row, true)
}

func (s *Store) IdentityByID(ctx context.Context, id string) (model.Identity, error) {
	acct, err := scanAccount(s.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM users WHERE id = $1`, id), false)
	return acct.Identity, err
}

func (s *Store) UpdateProfile(ctx context.Context, id string, profile model.Profile) (model.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET first_name = $2, last_name = $3, bio = $4, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING `+identityColumns,
		id, profile.FirstName, profile.LastName, profile.Bio,
	)
	acct, err := scanAccount(row, false)
	return acct.Identity, err
}

func (s *Store) UpdateAvatar(ctx context.Context, id, avatarRef string) (model.Identity, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET avatar_ref = $2, version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING `+identityColumns,
		id, avatarRef,
	)
	acct, err := scanAccount(row, false)
	return acct.Identity, err
}
