package tutor

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtualtutor/core"
)

const DefaultLanguage = "en"

type Tutor struct {
	ID             int         `db:"id" json:"id"`
	AdminID        int         `db:"admin_id" json:"-"`
	Name           string      `db:"name" json:"name"`
	Description    null.String `db:"description" json:"description"`
	TargetLanguage string      `db:"target_language" json:"target_language"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"` // UTC
}

// NewTutor contains information needed to create a new Tutor.
type NewTutor struct {
	Name           string `json:"name" form:"name" validate:"required,notblank,max=255"`
	Description    string `json:"description" form:"description"`
	TargetLanguage string `json:"target_language" form:"target_language" validate:"omitempty,max=16"`
}

func (nt *NewTutor) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	nt.TargetLanguage = core.CleanString(nt.TargetLanguage)
	if nt.TargetLanguage == "" {
		nt.TargetLanguage = DefaultLanguage
	}
	return validate.Struct(nt)
}
