package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/edufarm/edufarm/core"
	"github.com/edufarm/edufarm/services/upload"
)

var errNoFile = core.NewValidationError(errors.New("no file"), core.FieldError{Field: "file", Error: "this field is required"})

func registerUploadAPI(g *echo.Group, jwt echo.MiddlewareFunc, store *upload.Store) {
	ug := g.Group("/uploads", jwt)
	// multipart overhead on top of the file itself
	limit := middleware.BodyLimitWithConfig(middleware.BodyLimitConfig{Limit: humanBytes(store.MaxBytes() + 1<<20)})
	ug.POST("", uploadFile(store), limit)
	ug.GET("/:key", downloadFile(store))
}

func uploadFile(store *upload.Store) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		fh, err := ctx.FormFile("file")
		if err != nil {
			if err == http.ErrMissingFile {
				return errNoFile
			}
			return errors.Wrap(err, "reading multipart file")
		}
		src, err := fh.Open()
		if err != nil {
			return errors.Wrap(err, "opening multipart file")
		}
		defer src.Close()

		f, err := store.Save(fh.Filename, fh.Header.Get(echo.HeaderContentType), src)
		if err != nil {
			return errors.Wrap(err, "saving upload")
		}
		return ctx.JSON(http.StatusCreated, f)
	}
}

func downloadFile(store *upload.Store) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		fp, err := store.Path(ctx.Param("key"))
		if err != nil {
			return errors.Wrap(err, "finding upload")
		}
		return ctx.File(fp)
	}
}

// humanBytes formats `n` the way middleware.BodyLimit expects, rounded up to the KB.
func humanBytes(n int64) string {
	return fmt.Sprintf("%dK", (n+1023)/1024)
}
