package avatar

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtualtutor/core"
)

// Avatar statuses
const (
	StatusActive  = "active"
	StatusRunning = "running"
)

const (
	DefaultAvatarModel = "MuseTalk"
	DefaultTTSModel    = "edge-tts"
)

var (
	AvatarModels = []string{"MuseTalk", "wav2lip", "ultralight"}
	TTSModels    = []string{"edge-tts", "cosyvoice", "sovits", "tacotron"}
)

// Avatar is a lip-sync persona registered on the engine for a Tutor.
type Avatar struct {
	ID               int         `db:"id" json:"id"`
	TutorID          int         `db:"tutor_id" json:"tutor_id"`
	Name             string      `db:"name" json:"name"` // engine identifier; globally unique
	DisplayName      null.String `db:"display_name" json:"display_name"`
	AvatarModel      string      `db:"avatar_model" json:"avatar_model"`
	TTSModel         string      `db:"tts_model" json:"tts_model"`
	Timbre           null.String `db:"timbre" json:"timbre"`
	AvatarBlur       bool        `db:"avatar_blur" json:"avatar_blur"`
	SupportClone     bool        `db:"support_clone" json:"support_clone"`
	RefText          null.String `db:"ref_text" json:"ref_text"`
	Description      null.String `db:"description" json:"description"`
	Status           string      `db:"status" json:"status"`
	PreviewImagePath null.String `db:"preview_image_path" json:"preview_image_path"`
	VideoPath        null.String `db:"video_path" json:"video_path"`
	AudioPath        null.String `db:"audio_path" json:"audio_path"`
	EngineURL        null.String `db:"engine_url" json:"engine_url"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"` // UTC
	UpdatedAt        time.Time   `db:"updated_at" json:"updated_at"` // UTC
}

func (a Avatar) IsRunning() bool { return a.Status == StatusRunning }

// File is an uploaded prompt file forwarded to the engine.
type File struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// NewAvatar contains information needed to create an Avatar on the engine.
type NewAvatar struct {
	Name         string `form:"name" validate:"required,notblank,max=255"`
	DisplayName  string `form:"display_name" validate:"max=255"`
	AvatarModel  string `form:"avatar_model" validate:"omitempty,oneof=MuseTalk wav2lip ultralight"`
	TTSModel     string `form:"tts_model" validate:"omitempty,oneof=edge-tts cosyvoice sovits tacotron"`
	Timbre       string `form:"timbre"`
	AvatarBlur   bool   `form:"avatar_blur"`
	SupportClone bool   `form:"support_clone"`
	RefText      string `form:"ref_text"`
	Description  string `form:"description"`

	Face  File  `form:"-"`
	Voice *File `form:"-"`
}

func (na *NewAvatar) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.DisplayName = core.CleanString(na.DisplayName)
	na.Timbre = core.CleanString(na.Timbre)
	na.Description = core.CleanString(na.Description)
	if na.AvatarModel == "" {
		na.AvatarModel = DefaultAvatarModel
	}
	if na.TTSModel == "" {
		na.TTSModel = DefaultTTSModel
	}
	return validate.Struct(na)
}

// CreateResult is what the engine reports on a successful avatar creation.
type CreateResult struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Name      string `json:"avatar_name"`
	ImagePath string `json:"image_path"`
}

// Info is the admin view of an Avatar, joined with its Tutor's name.
type Info struct {
	ID               int         `json:"id"`
	TutorID          int         `json:"tutor_id"`
	TutorName        string      `json:"tutor_name"`
	Name             string      `json:"name"`
	DisplayName      null.String `json:"display_name"`
	AvatarModel      string      `json:"avatar_model"`
	TTSModel         string      `json:"tts_model"`
	Timbre           null.String `json:"timbre"`
	Status           string      `json:"status"`
	Description      null.String `json:"description"`
	PreviewImagePath null.String `json:"preview_image_path"`
	EngineURL        null.String `json:"engine_url"`
	CreatedAt        time.Time   `json:"created_at"`
}

func NewInfo(a Avatar, tutorName string) Info {
	return Info{
		ID:               a.ID,
		TutorID:          a.TutorID,
		TutorName:        tutorName,
		Name:             a.Name,
		DisplayName:      a.DisplayName,
		AvatarModel:      a.AvatarModel,
		TTSModel:         a.TTSModel,
		Timbre:           a.Timbre,
		Status:           a.Status,
		Description:      a.Description,
		PreviewImagePath: a.PreviewImagePath,
		EngineURL:        a.EngineURL,
		CreatedAt:        a.CreatedAt,
	}
}
