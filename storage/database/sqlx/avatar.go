package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core/avatar"
)

type avatarRepository struct {
	db *sqlx.DB
}

var _ avatar.Repository = (*avatarRepository)(nil)

func NewAvatarRepository(db *sqlx.DB) avatar.Repository {
	return &avatarRepository{db: db}
}

func (repo *avatarRepository) CreateAvatar(ctx context.Context, a avatar.Avatar) (avatar.Avatar, error) {
	q := `INSERT INTO avatars (
			tutor_id, name, display_name, avatar_model, tts_model, timbre, avatar_blur, support_clone, ref_text,
			description, status, preview_image_path, video_path, audio_path, engine_url, created_at, updated_at
		) VALUES (
			:tutor_id, :name, :display_name, :avatar_model, :tts_model, :timbre, :avatar_blur, :support_clone, :ref_text,
			:description, :status, :preview_image_path, :video_path, :audio_path, :engine_url, :created_at, :updated_at
		) RETURNING id`
	rows, err := repo.db.NamedQueryContext(ctx, q, a)
	if err != nil {
		if isUniqueViolation(err) {
			return avatar.Avatar{}, avatar.ErrNameExists
		}
		return avatar.Avatar{}, errors.Wrap(err, "inserting avatar")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err = rows.Scan(&a.ID); err != nil {
			return avatar.Avatar{}, errors.Wrap(err, "scanning avatar id")
		}
	}
	return a, errors.Wrap(rows.Err(), "inserting avatar")
}

func (repo *avatarRepository) GetAvatarByID(ctx context.Context, id int) (avatar.Avatar, error) {
	var a avatar.Avatar
	if err := repo.db.GetContext(ctx, &a, `SELECT * FROM avatars WHERE id = $1`, id); err != nil {
		return avatar.Avatar{}, notFound(err, avatar.ErrNotFound, "selecting avatar by id")
	}
	return a, nil
}

func (repo *avatarRepository) GetAvatarByName(ctx context.Context, name string) (avatar.Avatar, error) {
	var a avatar.Avatar
	if err := repo.db.GetContext(ctx, &a, `SELECT * FROM avatars WHERE name = $1`, name); err != nil {
		return avatar.Avatar{}, notFound(err, avatar.ErrNotFound, "selecting avatar by name")
	}
	return a, nil
}

func (repo *avatarRepository) GetAvatarByTutor(ctx context.Context, tutorID int) (avatar.Avatar, error) {
	var a avatar.Avatar
	err := repo.db.GetContext(ctx, &a, `SELECT * FROM avatars WHERE tutor_id = $1 ORDER BY id LIMIT 1`, tutorID)
	if err != nil {
		return avatar.Avatar{}, notFound(err, avatar.ErrNotFound, "selecting avatar by tutor")
	}
	return a, nil
}

func (repo *avatarRepository) QueryAvatarsByTutors(ctx context.Context, tutorIDs ...int) ([]avatar.Avatar, error) {
	avatars := make([]avatar.Avatar, 0)
	if len(tutorIDs) == 0 {
		return avatars, nil
	}
	q, args, err := avatarsByTutorsQuery(repo.db, tutorIDs)
	if err != nil {
		return nil, err
	}
	err = repo.db.SelectContext(ctx, &avatars, q, args...)
	return avatars, errors.Wrap(err, "selecting avatars by tutors")
}

// avatarsByTutorsQuery expands the tutor ids into the placeholders of db's driver.
func avatarsByTutorsQuery(db *sqlx.DB, tutorIDs []int) (string, []interface{}, error) {
	q, args, err := sqlx.In(`SELECT * FROM avatars WHERE tutor_id IN (?) ORDER BY created_at DESC, id DESC`, tutorIDs)
	if err != nil {
		return "", nil, errors.Wrap(err, "building avatars query")
	}
	return db.Rebind(q), args, nil
}

func (repo *avatarRepository) UpdateAvatarStatus(ctx context.Context, id int, status string) (avatar.Avatar, error) {
	var a avatar.Avatar
	q := `UPDATE avatars SET status = $1, updated_at = $2 WHERE id = $3 RETURNING *`
	if err := repo.db.GetContext(ctx, &a, q, status, time.Now().UTC(), id); err != nil {
		return avatar.Avatar{}, notFound(err, avatar.ErrNotFound, "updating avatar status")
	}
	return a, nil
}

func (repo *avatarRepository) DeleteAvatar(ctx context.Context, id int) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM avatars WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting avatar")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return avatar.ErrNotFound
	}
	return nil
}
