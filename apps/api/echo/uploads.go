package echoapi

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
	"github.com/trezcool/virtualtutor/core/avatar"
)

// uploads keeps the opened multipart files of a request until they are forwarded.
type uploads []multipart.File

func (u *uploads) Close() {
	for _, f := range *u {
		_ = f.Close()
	}
}

// open returns the uploaded file of field; nil when it was not sent.
func (u *uploads) open(ctx echo.Context, field string) (*avatar.File, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile {
			return nil, nil
		}
		return nil, core.NewValidationError(errors.Wrapf(err, "reading %s", field))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", field)
	}
	*u = append(*u, f)
	return &avatar.File{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Content:     io.Reader(f),
	}, nil
}

// openPrompts opens the required prompt_face and the optional prompt_voice files.
func (u *uploads) openPrompts(ctx echo.Context, na *avatar.NewAvatar) error {
	face, err := u.open(ctx, "prompt_face")
	if err != nil {
		return err
	}
	if face == nil {
		return errFaceRequired
	}
	voice, err := u.open(ctx, "prompt_voice")
	if err != nil {
		return err
	}
	na.Face, na.Voice = *face, voice
	return nil
}

// avatarCreateError maps the failures of an avatar creation to their HTTP errors.
func avatarCreateError(err error, name string, conf core.EngineConfig) error {
	switch errors.Cause(err) {
	case avatar.ErrNameExists:
		return errHttpAvatarExists(name)
	case avatar.ErrFaceTooLarge:
		return errHttpFileTooLarge("Video", conf.MaxVideoSize)
	case avatar.ErrVoiceTooLarge:
		return errHttpFileTooLarge("Audio", conf.MaxAudioSize)
	}
	if uErr, ok := core.IsUpstream(err); ok && uErr.Timeout {
		return errAvatarTimeout.WithInternal(err)
	}
	return err
}
