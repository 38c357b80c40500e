package avatar

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/tutor"
)

var (
	ErrNotFound      = errors.New("avatar not found")
	ErrNameExists    = errors.New("an avatar with this name already exists")
	ErrFaceTooLarge  = errors.New("video file too large")
	ErrVoiceTooLarge = errors.New("audio file too large")
)

type (
	Repository interface {
		// CreateAvatar returns ErrNameExists when the name is already registered.
		CreateAvatar(ctx context.Context, a Avatar) (Avatar, error)
		GetAvatarByID(ctx context.Context, id int) (Avatar, error)
		GetAvatarByName(ctx context.Context, name string) (Avatar, error)
		// GetAvatarByTutor returns the first avatar of a tutor.
		GetAvatarByTutor(ctx context.Context, tutorID int) (Avatar, error)
		// QueryAvatarsByTutors returns the avatars of the given tutors, newest first.
		QueryAvatarsByTutors(ctx context.Context, tutorIDs ...int) ([]Avatar, error)
		UpdateAvatarStatus(ctx context.Context, id int, status string) (Avatar, error)
		DeleteAvatar(ctx context.Context, id int) error
	}

	// Engine is the remote avatar engine (lip-sync + TTS) the avatars live on.
	Engine interface {
		CreateAvatar(ctx context.Context, na NewAvatar) (CreateResult, error)
		StartAvatar(ctx context.Context, name, refFile string) error
		DeleteAvatar(ctx context.Context, name string) error
	}

	TutorService interface {
		Create(ctx context.Context, adminID int, nt tutor.NewTutor) (tutor.Tutor, error)
		GetByID(ctx context.Context, id int) (tutor.Tutor, error)
		GetOwned(ctx context.Context, adminID, id int) (tutor.Tutor, error)
		QueryByAdmin(ctx context.Context, adminID int) ([]tutor.Tutor, error)
		Delete(ctx context.Context, id int) error
	}

	Limits struct {
		MaxVideoSize int64
		MaxAudioSize int64
	}

	Service struct {
		repo      Repository
		tutors    TutorService
		engine    Engine
		engineURL string
		limits    Limits
		logger    core.Logger
	}
)

func NewService(repo Repository, tutors TutorService, engine Engine, conf *core.Config, logger core.Logger) *Service {
	return &Service{
		repo:      repo,
		tutors:    tutors,
		engine:    engine,
		engineURL: conf.Engine.BaseURL,
		limits: Limits{
			MaxVideoSize: conf.Engine.MaxVideoSize,
			MaxAudioSize: conf.Engine.MaxAudioSize,
		},
		logger: logger,
	}
}

// CheckUploads enforces the prompt file size limits.
func (svc *Service) CheckUploads(na NewAvatar) error {
	if svc.limits.MaxVideoSize > 0 && na.Face.Size > svc.limits.MaxVideoSize {
		return ErrFaceTooLarge
	}
	if na.Voice != nil && svc.limits.MaxAudioSize > 0 && na.Voice.Size > svc.limits.MaxAudioSize {
		return ErrVoiceTooLarge
	}
	return nil
}

// checkName returns ErrNameExists if an avatar is already registered under name.
func (svc *Service) checkName(ctx context.Context, name string) error {
	_, err := svc.repo.GetAvatarByName(ctx, name)
	switch errors.Cause(err) {
	case nil:
		return ErrNameExists
	case ErrNotFound:
		return nil
	default:
		return errors.Wrap(err, "getting avatar by name")
	}
}

func (svc *Service) newAvatar(tutorID int, na NewAvatar, res CreateResult) Avatar {
	displayName := na.DisplayName
	if displayName == "" {
		displayName = na.Name
	}
	a := Avatar{
		TutorID:          tutorID,
		Name:             na.Name,
		DisplayName:      null.StringFrom(displayName),
		AvatarModel:      na.AvatarModel,
		TTSModel:         na.TTSModel,
		Timbre:           null.NewString(na.Timbre, na.Timbre != ""),
		AvatarBlur:       na.AvatarBlur,
		SupportClone:     na.SupportClone,
		RefText:          null.NewString(na.RefText, na.RefText != ""),
		Description:      null.NewString(na.Description, na.Description != ""),
		Status:           StatusActive,
		PreviewImagePath: null.NewString(res.ImagePath, res.ImagePath != ""),
		VideoPath:        null.NewString(na.Face.Filename, na.Face.Filename != ""),
		EngineURL:        null.NewString(svc.engineURL, svc.engineURL != ""),
	}
	if na.Voice != nil {
		a.AudioPath = null.NewString(na.Voice.Filename, na.Voice.Filename != "")
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	return a
}

// rollbackTutor deletes a tutor whose avatar could not be created.
// The deletion outlives a cancelled request.
func (svc *Service) rollbackTutor(ctx context.Context, t tutor.Tutor, cause error) {
	if err := svc.tutors.Delete(context.WithoutCancel(ctx), t.ID); err != nil {
		svc.logger.Error("rolling back tutor", errors.Wrapf(err, "deleting tutor %d", t.ID), map[string]interface{}{
			"cause": cause.Error(),
		})
	}
}

// CreateWithTutor creates a Tutor for adminID and its Avatar on the engine in one go.
// The tutor is deleted again if the engine call or the avatar registration fails.
func (svc *Service) CreateWithTutor(ctx context.Context, adminID int, nt tutor.NewTutor, na NewAvatar) (tutor.Tutor, Avatar, error) {
	if err := svc.CheckUploads(na); err != nil {
		return tutor.Tutor{}, Avatar{}, err
	}
	if err := svc.checkName(ctx, na.Name); err != nil {
		return tutor.Tutor{}, Avatar{}, err
	}

	t, err := svc.tutors.Create(ctx, adminID, nt)
	if err != nil {
		return tutor.Tutor{}, Avatar{}, errors.Wrap(err, "creating tutor")
	}

	res, err := svc.engine.CreateAvatar(ctx, na)
	if err != nil {
		svc.rollbackTutor(ctx, t, err)
		return tutor.Tutor{}, Avatar{}, errors.Wrap(err, "creating avatar on engine")
	}

	a, err := svc.repo.CreateAvatar(ctx, svc.newAvatar(t.ID, na, res))
	if err != nil {
		svc.rollbackTutor(ctx, t, err)
		return tutor.Tutor{}, Avatar{}, errors.Wrap(err, "saving avatar")
	}
	return t, a, nil
}

// Create creates an Avatar on the engine for an existing tutor of adminID.
// It returns tutor.ErrNotFound when the tutor is not owned by adminID.
func (svc *Service) Create(ctx context.Context, adminID, tutorID int, na NewAvatar) (Avatar, tutor.Tutor, error) {
	t, err := svc.tutors.GetOwned(ctx, adminID, tutorID)
	if err != nil {
		return Avatar{}, tutor.Tutor{}, err
	}
	if err = svc.CheckUploads(na); err != nil {
		return Avatar{}, tutor.Tutor{}, err
	}
	if err = svc.checkName(ctx, na.Name); err != nil {
		return Avatar{}, tutor.Tutor{}, err
	}

	res, err := svc.engine.CreateAvatar(ctx, na)
	if err != nil {
		return Avatar{}, tutor.Tutor{}, errors.Wrap(err, "creating avatar on engine")
	}
	a, err := svc.repo.CreateAvatar(ctx, svc.newAvatar(t.ID, na, res))
	if err != nil {
		return Avatar{}, tutor.Tutor{}, errors.Wrap(err, "saving avatar")
	}
	return a, t, nil
}

// QueryByAdmin returns the avatars of all the tutors of adminID, newest first.
func (svc *Service) QueryByAdmin(ctx context.Context, adminID int) ([]Info, error) {
	tutors, err := svc.tutors.QueryByAdmin(ctx, adminID)
	if err != nil {
		return nil, errors.Wrap(err, "querying tutors")
	}
	if len(tutors) == 0 {
		return []Info{}, nil
	}
	names := make(map[int]string, len(tutors))
	ids := make([]int, 0, len(tutors))
	for _, t := range tutors {
		names[t.ID] = t.Name
		ids = append(ids, t.ID)
	}

	avatars, err := svc.repo.QueryAvatarsByTutors(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying avatars")
	}
	infos := make([]Info, 0, len(avatars))
	for _, a := range avatars {
		infos = append(infos, NewInfo(a, names[a.TutorID]))
	}
	return infos, nil
}

// GetOwned returns the avatar and its tutor only if the tutor belongs to adminID; ErrNotFound otherwise.
func (svc *Service) GetOwned(ctx context.Context, adminID, id int) (Avatar, tutor.Tutor, error) {
	a, err := svc.repo.GetAvatarByID(ctx, id)
	if err != nil {
		return Avatar{}, tutor.Tutor{}, err
	}
	t, err := svc.tutors.GetOwned(ctx, adminID, a.TutorID)
	if err != nil {
		if errors.Cause(err) == tutor.ErrNotFound {
			return Avatar{}, tutor.Tutor{}, ErrNotFound
		}
		return Avatar{}, tutor.Tutor{}, errors.Wrap(err, "getting tutor")
	}
	return a, t, nil
}

// Start starts the avatar on the engine and flags it as running.
func (svc *Service) Start(ctx context.Context, a Avatar, refFile string) (Avatar, error) {
	if err := svc.engine.StartAvatar(ctx, a.Name, refFile); err != nil {
		return Avatar{}, errors.Wrap(err, "starting avatar on engine")
	}
	return svc.repo.UpdateAvatarStatus(ctx, a.ID, StatusRunning)
}

// Delete removes the avatar from the engine then from the database.
// Engine failures are logged, the record is deleted regardless.
func (svc *Service) Delete(ctx context.Context, a Avatar) error {
	if err := svc.engine.DeleteAvatar(ctx, a.Name); err != nil {
		svc.logger.Warn("engine avatar delete failed", err, map[string]interface{}{"avatar": a.Name})
	}
	return svc.repo.DeleteAvatar(ctx, a.ID)
}

func (svc *Service) GetByTutor(ctx context.Context, tutorID int) (Avatar, error) {
	return svc.repo.GetAvatarByTutor(ctx, tutorID)
}
