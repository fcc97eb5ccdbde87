package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"campusmarket/internal/model"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const userColumns = `
	id, email, username, hashed_password, full_name, phone, student_id, role,
	is_active, is_verified, access_token, refresh_token, created_by, updated_by,
	created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (model.User, error) {
	var user model.User
	err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.HashedPassword,
		&user.FullName,
		&user.Phone,
		&user.StudentID,
		&user.Role,
		&user.IsActive,
		&user.IsVerified,
		&user.AccessToken,
		&user.RefreshToken,
		&user.CreatedBy,
		&user.UpdatedBy,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	return user, err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	return scanUser(row)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1
	`, username)
	return scanUser(row)
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

// UserExists reports whether any user already claims the email, username or
// student id. Signup uses it for its uniqueness checks.
func (s *Store) UserExists(ctx context.Context, email, username, studentID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM users
			WHERE email = $1 OR username = $2 OR student_id = $3
		)
	`, email, username, studentID).Scan(&exists)
	return exists, err
}

func (s *Store) CreateUser(ctx context.Context, user model.User) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (email, username, hashed_password, full_name, phone, student_id, role, is_active, is_verified, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`, user.Email, user.Username, user.HashedPassword, user.FullName, user.Phone, user.StudentID, user.Role, user.IsActive, user.IsVerified, user.CreatedBy)
	err := row.Scan(&user.ID, &user.CreatedAt)
	return user, err
}

func (s *Store) ListUsers(ctx context.Context, limit, offset int64) ([]model.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

// UpdateUserTokens overwrites the stored token pair. Passing nil for both
// clears the pair, which revokes every outstanding token.
func (s *Store) UpdateUserTokens(ctx context.Context, id int64, access, refresh *string, updatedBy string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET access_token = $1, refresh_token = $2, updated_by = $3, updated_at = now()
		WHERE id = $4
	`, access, refresh, updatedBy, id)
	return err
}

// UpdateUserPassword stores the new hash and clears the token pair in the
// same statement so no session survives a password change.
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, hashedPassword, updatedBy string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users
		SET hashed_password = $1, access_token = NULL, refresh_token = NULL, updated_by = $2, updated_at = now()
		WHERE id = $3
	`, hashedPassword, updatedBy, id)
	return err
}

// UpdateUserProfile applies the nil-able profile fields, keeping current
// values where the caller passes nil.
func (s *Store) UpdateUserProfile(ctx context.Context, id int64, fullName, phone *string, updatedBy string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET full_name = COALESCE($1, full_name),
		    phone = COALESCE($2, phone),
		    updated_by = $3,
		    updated_at = now()
		WHERE id = $4
		RETURNING `+userColumns+`
	`, fullName, phone, updatedBy, id)
	return scanUser(row)
}

// UserUpdate is the moderation update: any nil field keeps its current
// value.
type UserUpdate struct {
	FullName   *string
	Phone      *string
	Role       *model.Role
	IsActive   *bool
	IsVerified *bool
}

func (s *Store) AdminUpdateUser(ctx context.Context, id int64, update UserUpdate, updatedBy string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET full_name = COALESCE($1, full_name),
		    phone = COALESCE($2, phone),
		    role = COALESCE($3, role),
		    is_active = COALESCE($4, is_active),
		    is_verified = COALESCE($5, is_verified),
		    updated_by = $6,
		    updated_at = now()
		WHERE id = $7
		RETURNING `+userColumns+`
	`, update.FullName, update.Phone, update.Role, update.IsActive, update.IsVerified, updatedBy, id)
	return scanUser(row)
}

func (s *Store) SetUserActive(ctx context.Context, id int64, active bool, updatedBy string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET is_active = $1, updated_by = $2, updated_at = now()
		WHERE id = $3
		RETURNING `+userColumns+`
	`, active, updatedBy, id)
	return scanUser(row)
}

func (s *Store) SetUserVerified(ctx context.Context, id int64, verified bool, updatedBy string) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE users
		SET is_verified = $1, updated_by = $2, updated_at = now()
		WHERE id = $3
		RETURNING `+userColumns+`
	`, verified, updatedBy, id)
	return scanUser(row)
}
