package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/student"
	"github.com/trezcool/virtualtutor/core/tutor"
)

var (
	ErrNotFound        = errors.New("session not found")
	ErrStudentInactive = errors.New("student account is not active")
)

type (
	Repository interface {
		CreateSession(ctx context.Context, s Session) (Session, error)
		GetSessionByID(ctx context.Context, id int) (Session, error)
		// QuerySessionsByStudent returns the sessions of a student, latest started first.
		QuerySessionsByStudent(ctx context.Context, studentID int) ([]Session, error)
		UpdateSession(ctx context.Context, s Session) (Session, error)
		CreateMessage(ctx context.Context, m Message) (Message, error)
		// QueryMessages returns the messages of a session, oldest first.
		QueryMessages(ctx context.Context, sessionID int) ([]Message, error)
	}

	Service struct {
		repo      Repository
		engineURL string
	}
)

func NewService(repo Repository, conf *core.Config) *Service {
	return &Service{repo: repo, engineURL: conf.Engine.SessionURL}
}

// Start opens a new Session between stu and their tutor t.
func (svc *Service) Start(ctx context.Context, stu student.Student, t tutor.Tutor) (Session, error) {
	if !stu.IsActive {
		return Session{}, ErrStudentInactive
	}
	s := Session{
		TutorID:         stu.TutorID,
		StudentID:       stu.ID,
		AdminID:         null.IntFrom(t.AdminID),
		Status:          StatusActive,
		EngineSessionID: null.StringFrom(uuid.NewString()),
		EngineURL:       null.NewString(svc.engineURL, svc.engineURL != ""),
		EngineToken:     null.StringFrom(uuid.NewString()),
		StartedAt:       time.Now().UTC(),
	}
	return svc.repo.CreateSession(ctx, s)
}

func (svc *Service) QueryByStudent(ctx context.Context, studentID int) ([]Session, error) {
	return svc.repo.QuerySessionsByStudent(ctx, studentID)
}

// GetForStudent returns the session only if it belongs to studentID; ErrNotFound otherwise.
func (svc *Service) GetForStudent(ctx context.Context, studentID, id int) (Session, error) {
	s, err := svc.repo.GetSessionByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if s.StudentID != studentID {
		return Session{}, ErrNotFound
	}
	return s, nil
}

func (svc *Service) GetWithMessages(ctx context.Context, s Session) (WithMessages, error) {
	msgs, err := svc.repo.QueryMessages(ctx, s.ID)
	if err != nil {
		return WithMessages{}, errors.Wrap(err, "querying messages")
	}
	return WithMessages{Session: s, Messages: msgs}, nil
}

func (svc *Service) QueryMessages(ctx context.Context, s Session) ([]Message, error) {
	return svc.repo.QueryMessages(ctx, s.ID)
}

func (svc *Service) PostMessage(ctx context.Context, s Session, nm NewMessage) (Message, error) {
	role := nm.Role
	if role == "" {
		role = RoleStudent
	}
	m := Message{
		SessionID: s.ID,
		Role:      role,
		Content:   nm.Content,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateMessage(ctx, m)
}

// End closes the session. Ending an ended session is a no-op.
func (svc *Service) End(ctx context.Context, s Session) (Session, error) {
	if s.Status == StatusEnded {
		return s, nil
	}
	s.Status = StatusEnded
	s.EndedAt = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateSession(ctx, s)
}
