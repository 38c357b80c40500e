package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core/session"
)

type sessionRepository struct {
	db *sqlx.DB
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *sqlx.DB) session.Repository {
	return &sessionRepository{db: db}
}

func (repo *sessionRepository) CreateSession(ctx context.Context, s session.Session) (session.Session, error) {
	q := `INSERT INTO sessions (tutor_id, student_id, admin_id, status, engine_session_id, engine_url, engine_token, started_at)
		VALUES (:tutor_id, :student_id, :admin_id, :status, :engine_session_id, :engine_url, :engine_token, :started_at)
		RETURNING id`
	rows, err := repo.db.NamedQueryContext(ctx, q, s)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "inserting session")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err = rows.Scan(&s.ID); err != nil {
			return session.Session{}, errors.Wrap(err, "scanning session id")
		}
	}
	return s, errors.Wrap(rows.Err(), "inserting session")
}

func (repo *sessionRepository) GetSessionByID(ctx context.Context, id int) (session.Session, error) {
	var s session.Session
	if err := repo.db.GetContext(ctx, &s, `SELECT * FROM sessions WHERE id = $1`, id); err != nil {
		return session.Session{}, notFound(err, session.ErrNotFound, "selecting session by id")
	}
	return s, nil
}

func (repo *sessionRepository) QuerySessionsByStudent(ctx context.Context, studentID int) ([]session.Session, error) {
	sessions := make([]session.Session, 0)
	q := `SELECT * FROM sessions WHERE student_id = $1 ORDER BY started_at DESC, id DESC`
	err := repo.db.SelectContext(ctx, &sessions, q, studentID)
	return sessions, errors.Wrap(err, "selecting sessions by student")
}

func (repo *sessionRepository) UpdateSession(ctx context.Context, s session.Session) (session.Session, error) {
	res, err := repo.db.NamedExecContext(ctx, `UPDATE sessions SET status = :status, ended_at = :ended_at WHERE id = :id`, s)
	if err != nil {
		return session.Session{}, errors.Wrap(err, "updating session")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (repo *sessionRepository) CreateMessage(ctx context.Context, m session.Message) (session.Message, error) {
	q := `INSERT INTO chat_messages (session_id, role, content, created_at)
		VALUES (:session_id, :role, :content, :created_at) RETURNING id`
	rows, err := repo.db.NamedQueryContext(ctx, q, m)
	if err != nil {
		return session.Message{}, errors.Wrap(err, "inserting message")
	}
	defer func() { _ = rows.Close() }()
	if rows.Next() {
		if err = rows.Scan(&m.ID); err != nil {
			return session.Message{}, errors.Wrap(err, "scanning message id")
		}
	}
	return m, errors.Wrap(rows.Err(), "inserting message")
}

func (repo *sessionRepository) QueryMessages(ctx context.Context, sessionID int) ([]session.Message, error) {
	msgs := make([]session.Message, 0)
	q := `SELECT * FROM chat_messages WHERE session_id = $1 ORDER BY created_at, id`
	err := repo.db.SelectContext(ctx, &msgs, q, sessionID)
	return msgs, errors.Wrap(err, "selecting messages")
}
