package session

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/virtualtutor/core"
)

// Session statuses
const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Message roles
const (
	RoleStudent   = "student"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Session is a student's practice session with their tutor.
type Session struct {
	ID              int         `db:"id" json:"id"`
	TutorID         int         `db:"tutor_id" json:"tutor_id"`
	StudentID       int         `db:"student_id" json:"student_id"`
	AdminID         null.Int    `db:"admin_id" json:"-"`
	Status          string      `db:"status" json:"status"`
	EngineSessionID null.String `db:"engine_session_id" json:"-"`
	EngineURL       null.String `db:"engine_url" json:"engine_url"`
	EngineToken     null.String `db:"engine_token" json:"engine_token"`
	StartedAt       time.Time   `db:"started_at" json:"started_at"` // UTC
	EndedAt         null.Time   `db:"ended_at" json:"ended_at"`     // UTC
}

type Message struct {
	ID        int       `db:"id" json:"id"`
	SessionID int       `db:"session_id" json:"session_id"`
	Role      string    `db:"role" json:"role"`
	Content   string    `db:"content" json:"content"`
	CreatedAt time.Time `db:"created_at" json:"created_at"` // UTC
}

// WithMessages is a Session along with its messages, oldest first.
type WithMessages struct {
	Session
	Messages []Message `json:"messages"`
}

// NewMessage contains information needed to post a Message to a Session.
type NewMessage struct {
	Role    string `json:"role" validate:"omitempty,oneof=student assistant system"`
	Content string `json:"content" validate:"required,notblank"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Role = core.CleanString(nm.Role, true /* lower */)
	if nm.Role == "" {
		nm.Role = RoleStudent
	}
	return validate.Struct(nm)
}
