package admin

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
)

var (
	ErrNotFound           = errors.New("admin not found")
	ErrEmailExists        = errors.New("an admin with this email already exists")
	ErrInvalidCredentials = errors.New("incorrect email or password")
)

type (
	Repository interface {
		CreateAdmin(ctx context.Context, adm Admin) (Admin, error)
		GetAdminByID(ctx context.Context, id int) (Admin, error)
		GetAdminByEmail(ctx context.Context, email string) (Admin, error)
		UpdateAdmin(ctx context.Context, adm Admin) (Admin, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Authenticate returns the Admin matching email & pwd; ErrInvalidCredentials otherwise.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Admin, error) {
	adm, err := svc.repo.GetAdminByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Admin{}, ErrInvalidCredentials
		}
		return Admin{}, errors.Wrap(err, "getting admin by email")
	}
	if err = adm.CheckPassword(pwd); err != nil {
		return Admin{}, ErrInvalidCredentials
	}
	return adm, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (Admin, error) {
	return svc.repo.GetAdminByID(ctx, id)
}

// Create creates a new Admin; it returns ErrEmailExists if the email is taken.
func (svc *Service) Create(ctx context.Context, email, pwd string) (Admin, error) {
	adm := Admin{
		Email:     core.CleanString(email, true /* lower */),
		CreatedAt: time.Now().UTC(),
	}
	if err := adm.SetPassword(pwd); err != nil {
		return Admin{}, errors.Wrap(err, "setting password")
	}
	return svc.repo.CreateAdmin(ctx, adm)
}

// EnsureExists creates the Admin if none is registered under email. Returns whether it was created.
func (svc *Service) EnsureExists(ctx context.Context, email, pwd string) (Admin, bool, error) {
	adm, err := svc.repo.GetAdminByEmail(ctx, core.CleanString(email, true /* lower */))
	if err == nil {
		return adm, false, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Admin{}, false, errors.Wrap(err, "getting admin by email")
	}
	adm, err = svc.Create(ctx, email, pwd)
	if err != nil {
		return Admin{}, false, errors.Wrap(err, "creating admin")
	}
	return adm, true, nil
}

func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	adm, err := svc.repo.GetAdminByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err = adm.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	_, err = svc.repo.UpdateAdmin(ctx, adm)
	return err
}
