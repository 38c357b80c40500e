package student

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/tutor"
)

var (
	ErrNotFound           = errors.New("student not found")
	ErrEmailExists        = errors.New("a student with this email already exists")
	ErrInvalidCredentials = errors.New("incorrect email or password")
	ErrInactive           = errors.New("student account is inactive")
)

const welcomeTemplate = "student_welcome"

type (
	Repository interface {
		// CreateStudent returns ErrEmailExists when the email is already registered.
		CreateStudent(ctx context.Context, stu Student) (Student, error)
		GetStudentByID(ctx context.Context, id int) (Student, error)
		GetStudentByEmail(ctx context.Context, email string) (Student, error)
		// QueryStudentsByTutor returns the students of a tutor, newest (highest id) first.
		QueryStudentsByTutor(ctx context.Context, tutorID int) ([]Student, error)
		UpdateStudent(ctx context.Context, stu Student) (Student, error)
	}

	Service struct {
		repo   Repository
		mailer core.EmailService
	}
)

func NewService(repo Repository, mailer core.EmailService) *Service {
	return &Service{repo: repo, mailer: mailer}
}

// Create creates a Student under t and sends them a welcome email.
func (svc *Service) Create(ctx context.Context, t tutor.Tutor, ns NewStudent) (Student, error) {
	stu := Student{
		TutorID:   t.ID,
		Email:     ns.Email,
		Name:      ns.Name,
		IsActive:  ns.IsActive == nil || *ns.IsActive,
		CreatedAt: time.Now().UTC(),
	}
	if err := stu.SetPassword(ns.Password); err != nil {
		return Student{}, errors.Wrap(err, "setting password")
	}
	stu, err := svc.repo.CreateStudent(ctx, stu)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return Student{}, core.NewValidationError(err, core.FieldError{Field: "email", Error: err.Error()})
		}
		return Student{}, errors.Wrap(err, "creating student")
	}

	svc.mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: stu.Name, Address: stu.Email}},
		Subject:      "Welcome to " + t.Name,
		TemplateName: welcomeTemplate,
		TemplateData: WelcomeData{Name: stu.Name, Email: stu.Email, TutorName: t.Name},
	})
	return stu, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (Student, error) {
	return svc.repo.GetStudentByID(ctx, id)
}

// GetForTutor returns the student only if it belongs to tutorID; ErrNotFound otherwise.
func (svc *Service) GetForTutor(ctx context.Context, tutorID, id int) (Student, error) {
	stu, err := svc.repo.GetStudentByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if stu.TutorID != tutorID {
		return Student{}, ErrNotFound
	}
	return stu, nil
}

func (svc *Service) QueryByTutor(ctx context.Context, tutorID int) ([]Student, error) {
	return svc.repo.QueryStudentsByTutor(ctx, tutorID)
}

func (svc *Service) Update(ctx context.Context, stu Student, us UpdateStudent) (Student, error) {
	if us.Name != nil {
		stu.Name = *us.Name
	}
	if us.IsActive != nil {
		stu.IsActive = *us.IsActive
	}
	if us.Password != nil {
		if err := stu.SetPassword(*us.Password); err != nil {
			return Student{}, errors.Wrap(err, "setting password")
		}
	}
	return svc.repo.UpdateStudent(ctx, stu)
}

// Authenticate returns the Student matching email & pwd.
// It returns ErrInvalidCredentials on a mismatch and ErrInactive for deactivated accounts.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (Student, error) {
	stu, err := svc.repo.GetStudentByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Student{}, ErrInvalidCredentials
		}
		return Student{}, errors.Wrap(err, "getting student by email")
	}
	if err = stu.CheckPassword(pwd); err != nil {
		return Student{}, ErrInvalidCredentials
	}
	if !stu.IsActive {
		return Student{}, ErrInactive
	}
	return stu, nil
}

func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	stu, err := svc.repo.GetStudentByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		return err
	}
	if err = stu.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	_, err = svc.repo.UpdateStudent(ctx, stu)
	return err
}
