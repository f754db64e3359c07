package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/aqram/core"
	"github.com/trezcool/aqram/core/user"
)

const userColumns = `id, name, email, phone, role, is_active, password_hash, must_change_password, created_at, updated_at, last_login`

type userRow struct {
	ID                 string    `db:"id"`
	Name               string    `db:"name"`
	Email              string    `db:"email"`
	Phone              string    `db:"phone"`
	Role               string    `db:"role"`
	IsActive           bool      `db:"is_active"`
	PasswordHash       []byte    `db:"password_hash"`
	MustChangePassword bool      `db:"must_change_password"`
	CreatedAt          time.Time `db:"created_at"`
	UpdatedAt          time.Time `db:"updated_at"`
	LastLogin          null.Time `db:"last_login"`
}

func (r userRow) unrow() user.User {
	return user.User{
		ID:                 r.ID,
		Name:               r.Name,
		Email:              r.Email,
		Phone:              r.Phone,
		Role:               user.Role(r.Role),
		IsActive:           r.IsActive,
		PasswordHash:       r.PasswordHash,
		MustChangePassword: r.MustChangePassword,
		CreatedAt:          r.CreatedAt.UTC(),
		UpdatedAt:          r.UpdatedAt.UTC(),
		LastLogin:          r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	repository
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{repository{exec: exec}}
}

func (repo userRepository) CheckEmailUniqueness(ctx context.Context, email string, exec ...core.DBExecutor) error {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &exists, q, email); err != nil {
		return errors.Wrap(err, "checking email")
	}
	if exists {
		return user.ErrEmailExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	q := `INSERT INTO users (name, email, phone, role, is_active, password_hash, must_change_password, created_at, updated_at, last_login)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := sqlx.GetContext(
		ctx, repo.getExec(exec), &usr.ID, q,
		usr.Name, usr.Email, usr.Phone, usr.Role, usr.IsActive, usr.PasswordHash, usr.MustChangePassword,
		usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var conds []string
	var args []interface{}
	if filter.ID != "" {
		if !isUUID(filter.ID) {
			return user.User{}, user.ErrNotFound
		}
		args = append(args, filter.ID)
		conds = append(conds, "id = $1")
	}
	if filter.Email != "" {
		args = append(args, filter.Email)
		conds = append(conds, "email = $"+itoa(len(args)))
	}
	if len(conds) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(conds, " AND ")
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.unrow(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	if !isUUID(usr.ID) {
		return user.User{}, user.ErrNotFound
	}
	var row userRow
	q := `UPDATE users SET name = $2, email = $3, phone = $4, role = $5, is_active = $6, password_hash = $7,
		must_change_password = $8, updated_at = $9, last_login = $10
		WHERE id = $1 RETURNING ` + userColumns
	err := sqlx.GetContext(
		ctx, repo.getExec(exec), &row, q,
		usr.ID, usr.Name, usr.Email, usr.Phone, usr.Role, usr.IsActive, usr.PasswordHash, usr.MustChangePassword,
		usr.UpdatedAt.UTC(), null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return row.unrow(), nil
}

func (repo userRepository) SaveParentProfile(ctx context.Context, prof user.ParentProfile, exec ...core.DBExecutor) (user.ParentProfile, error) {
	q := `INSERT INTO parent_profiles (user_id, address, medical_instructions, signature) VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET address = EXCLUDED.address, medical_instructions = EXCLUDED.medical_instructions, signature = EXCLUDED.signature`
	_, err := repo.getExec(exec).ExecContext(
		ctx, q, prof.UserID, prof.Address, null.NewString(prof.MedicalInstructions, prof.MedicalInstructions != ""), prof.Signature,
	)
	if err != nil {
		return user.ParentProfile{}, errors.Wrap(err, "upserting parent profile")
	}
	return prof, nil
}

func (repo userRepository) GetParentProfile(ctx context.Context, userID string, exec ...core.DBExecutor) (user.ParentProfile, error) {
	if !isUUID(userID) {
		return user.ParentProfile{}, user.ErrNotFound
	}
	var row struct {
		UserID              string      `db:"user_id"`
		Address             string      `db:"address"`
		MedicalInstructions null.String `db:"medical_instructions"`
		Signature           string      `db:"signature"`
	}
	q := `SELECT user_id, address, medical_instructions, signature FROM parent_profiles WHERE user_id = $1`
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q, userID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.ParentProfile{}, user.ErrNotFound
		}
		return user.ParentProfile{}, errors.Wrap(err, "selecting parent profile")
	}
	return user.ParentProfile{
		UserID:              row.UserID,
		Address:             row.Address,
		MedicalInstructions: row.MedicalInstructions.String,
		Signature:           row.Signature,
	}, nil
}

func (repo userRepository) SaveAdminProfile(ctx context.Context, prof user.AdminProfile, exec ...core.DBExecutor) (user.AdminProfile, error) {
	q := `INSERT INTO admin_profiles (user_id, position, department) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET position = EXCLUDED.position, department = EXCLUDED.department`
	if _, err := repo.getExec(exec).ExecContext(ctx, q, prof.UserID, prof.Position, prof.Department); err != nil {
		return user.AdminProfile{}, errors.Wrap(err, "upserting admin profile")
	}
	return prof, nil
}
