package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core/student"
)

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(db *sqlx.DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) CreateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	q := `INSERT INTO students (tutor_id, email, name, password_hash, is_active, created_at)
		VALUES (:tutor_id, :email, :name, :password_hash, :is_active, :created_at) RETURNING id`
	rows, err := repo.db.NamedQueryContext(ctx, q, stu)
	if err != nil {
		if isUniqueViolation(err) {
			return student.Student{}, student.ErrEmailExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err = rows.Scan(&stu.ID); err != nil {
			return student.Student{}, errors.Wrap(err, "scanning student id")
		}
	}
	return stu, errors.Wrap(rows.Err(), "inserting student")
}

func (repo *studentRepository) GetStudentByID(ctx context.Context, id int) (student.Student, error) {
	var stu student.Student
	if err := repo.db.GetContext(ctx, &stu, `SELECT * FROM students WHERE id = $1`, id); err != nil {
		return student.Student{}, notFound(err, student.ErrNotFound, "selecting student by id")
	}
	return stu, nil
}

func (repo *studentRepository) GetStudentByEmail(ctx context.Context, email string) (student.Student, error) {
	var stu student.Student
	if err := repo.db.GetContext(ctx, &stu, `SELECT * FROM students WHERE lower(email) = lower($1)`, email); err != nil {
		return student.Student{}, notFound(err, student.ErrNotFound, "selecting student by email")
	}
	return stu, nil
}

func (repo *studentRepository) QueryStudentsByTutor(ctx context.Context, tutorID int) ([]student.Student, error) {
	students := make([]student.Student, 0)
	err := repo.db.SelectContext(ctx, &students, `SELECT * FROM students WHERE tutor_id = $1 ORDER BY id DESC`, tutorID)
	return students, errors.Wrap(err, "selecting students by tutor")
}

func (repo *studentRepository) UpdateStudent(ctx context.Context, stu student.Student) (student.Student, error) {
	q := `UPDATE students SET name = :name, is_active = :is_active, password_hash = :password_hash WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, stu)
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return stu, nil
}
