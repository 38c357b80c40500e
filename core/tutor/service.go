package tutor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
)

var ErrNotFound = errors.New("tutor not found")

type (
	Repository interface {
		CreateTutor(ctx context.Context, t Tutor) (Tutor, error)
		GetTutorByID(ctx context.Context, id int) (Tutor, error)
		// QueryTutorsByAdmin returns the tutors of an admin, newest (highest id) first.
		QueryTutorsByAdmin(ctx context.Context, adminID int) ([]Tutor, error)
		// DeleteTutor deletes the tutor and everything it owns (students, avatars, sessions).
		DeleteTutor(ctx context.Context, id int) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, adminID int, nt NewTutor) (Tutor, error) {
	lang := nt.TargetLanguage
	if lang == "" {
		lang = DefaultLanguage
	}
	t := Tutor{
		AdminID:        adminID,
		Name:           nt.Name,
		Description:    null.NewString(nt.Description, nt.Description != ""),
		TargetLanguage: lang,
		CreatedAt:      time.Now().UTC(),
	}
	return svc.repo.CreateTutor(ctx, t)
}

func (svc *Service) GetByID(ctx context.Context, id int) (Tutor, error) {
	return svc.repo.GetTutorByID(ctx, id)
}

// GetOwned returns the tutor only if it belongs to adminID; ErrNotFound otherwise.
func (svc *Service) GetOwned(ctx context.Context, adminID, id int) (Tutor, error) {
	t, err := svc.repo.GetTutorByID(ctx, id)
	if err != nil {
		return Tutor{}, err
	}
	if t.AdminID != adminID {
		return Tutor{}, ErrNotFound
	}
	return t, nil
}

func (svc *Service) QueryByAdmin(ctx context.Context, adminID int) ([]Tutor, error) {
	return svc.repo.QueryTutorsByAdmin(ctx, adminID)
}

func (svc *Service) Delete(ctx context.Context, id int) error {
	return svc.repo.DeleteTutor(ctx, id)
}
