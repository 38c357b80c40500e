package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core/admin"
)

type adminRepository struct {
	db *sqlx.DB
}

var _ admin.Repository = (*adminRepository)(nil)

func NewAdminRepository(db *sqlx.DB) admin.Repository {
	return &adminRepository{db: db}
}

func (repo *adminRepository) CreateAdmin(ctx context.Context, adm admin.Admin) (admin.Admin, error) {
	q := `INSERT INTO admins (email, password_hash, created_at)
		VALUES (:email, :password_hash, :created_at) RETURNING id`
	rows, err := repo.db.NamedQueryContext(ctx, q, adm)
	if err != nil {
		if isUniqueViolation(err) {
			return admin.Admin{}, admin.ErrEmailExists
		}
		return admin.Admin{}, errors.Wrap(err, "inserting admin")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err = rows.Scan(&adm.ID); err != nil {
			return admin.Admin{}, errors.Wrap(err, "scanning admin id")
		}
	}
	return adm, errors.Wrap(rows.Err(), "inserting admin")
}

func (repo *adminRepository) GetAdminByID(ctx context.Context, id int) (admin.Admin, error) {
	var adm admin.Admin
	err := repo.db.GetContext(ctx, &adm, `SELECT * FROM admins WHERE id = $1`, id)
	if err != nil {
		return admin.Admin{}, notFound(err, admin.ErrNotFound, "selecting admin by id")
	}
	return adm, nil
}

func (repo *adminRepository) GetAdminByEmail(ctx context.Context, email string) (admin.Admin, error) {
	var adm admin.Admin
	err := repo.db.GetContext(ctx, &adm, `SELECT * FROM admins WHERE lower(email) = lower($1)`, email)
	if err != nil {
		return admin.Admin{}, notFound(err, admin.ErrNotFound, "selecting admin by email")
	}
	return adm, nil
}

func (repo *adminRepository) UpdateAdmin(ctx context.Context, adm admin.Admin) (admin.Admin, error) {
	res, err := repo.db.NamedExecContext(ctx, `UPDATE admins SET email = :email, password_hash = :password_hash WHERE id = :id`, adm)
	if err != nil {
		if isUniqueViolation(err) {
			return admin.Admin{}, admin.ErrEmailExists
		}
		return admin.Admin{}, errors.Wrap(err, "updating admin")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return admin.Admin{}, admin.ErrNotFound
	}
	return adm, nil
}
