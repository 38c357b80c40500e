package engineapi

import (
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/virtualtutor/core"
)

type upload struct {
	header *multipart.FileHeader
	file   multipart.File
}

func (u upload) contentType() string { return u.header.Header.Get(echo.HeaderContentType) }

// uploads keeps the opened multipart files of a request until they are forwarded.
type uploads []multipart.File

func (u *uploads) Close() {
	for _, f := range *u {
		_ = f.Close()
	}
}

// open returns the uploaded file of field; nil when it was not sent.
func (u *uploads) open(ctx echo.Context, field string) (*upload, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile || errors.Cause(err) == http.ErrNotMultipart {
			return nil, nil
		}
		return nil, core.NewValidationError(errors.Wrapf(err, "reading %s", field))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", field)
	}
	*u = append(*u, f)
	return &upload{header: fh, file: f}, nil
}
