package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core/tutor"
)

type tutorRepository struct {
	db *sqlx.DB
}

var _ tutor.Repository = (*tutorRepository)(nil)

func NewTutorRepository(db *sqlx.DB) tutor.Repository {
	return &tutorRepository{db: db}
}

func (repo *tutorRepository) CreateTutor(ctx context.Context, t tutor.Tutor) (tutor.Tutor, error) {
	q := `INSERT INTO tutors (admin_id, name, description, target_language, created_at)
		VALUES (:admin_id, :name, :description, :target_language, :created_at) RETURNING id`
	rows, err := repo.db.NamedQueryContext(ctx, q, t)
	if err != nil {
		return tutor.Tutor{}, errors.Wrap(err, "inserting tutor")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err = rows.Scan(&t.ID); err != nil {
			return tutor.Tutor{}, errors.Wrap(err, "scanning tutor id")
		}
	}
	return t, errors.Wrap(rows.Err(), "inserting tutor")
}

func (repo *tutorRepository) GetTutorByID(ctx context.Context, id int) (tutor.Tutor, error) {
	var t tutor.Tutor
	if err := repo.db.GetContext(ctx, &t, `SELECT * FROM tutors WHERE id = $1`, id); err != nil {
		return tutor.Tutor{}, notFound(err, tutor.ErrNotFound, "selecting tutor by id")
	}
	return t, nil
}

func (repo *tutorRepository) QueryTutorsByAdmin(ctx context.Context, adminID int) ([]tutor.Tutor, error) {
	tutors := make([]tutor.Tutor, 0)
	err := repo.db.SelectContext(ctx, &tutors, `SELECT * FROM tutors WHERE admin_id = $1 ORDER BY id DESC`, adminID)
	return tutors, errors.Wrap(err, "selecting tutors by admin")
}

// DeleteTutor relies on ON DELETE CASCADE to remove the tutor's students, avatars & sessions.
func (repo *tutorRepository) DeleteTutor(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM tutors WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting tutor")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return tutor.ErrNotFound
	}
	return nil
}
