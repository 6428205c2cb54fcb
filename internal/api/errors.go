package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/ephemera-backend/internal/api/response"
	apperrors "github.com/welldanyogia/ephemera-backend/internal/errors"
)

// httpErrorHandler renders errors that escape the handlers, such as unknown
// routes, body limit rejections and panics, in the API error envelope.
func httpErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if !errors.As(err, &he) {
			log.Error("unhandled error",
				slog.String("method", c.Request().Method),
				slog.String("path", c.Request().URL.Path),
				slog.Any("error", err))
			he = echo.NewHTTPError(http.StatusInternalServerError)
		}

		if c.Request().Method == http.MethodHead {
			c.NoContent(he.Code)
			return
		}

		msg, ok := he.Message.(string)
		if !ok {
			// middleware that already built a structured body
			c.JSON(he.Code, he.Message)
			return
		}

		switch {
		case he.Code == http.StatusBadRequest:
			response.BadRequest(c, msg)
		case he.Code == http.StatusNotFound:
			response.NotFound(c, msg)
		case he.Code >= http.StatusInternalServerError:
			response.InternalError(c, apperrors.ErrInternal.Error())
		default:
			c.JSON(he.Code, response.ErrorResponse{Error: msg, Code: statusCode(he.Code)})
		}
	}
}

// statusCode turns an HTTP status into an error code, e.g. 413 becomes
// REQUEST_ENTITY_TOO_LARGE.
func statusCode(status int) string {
	return strings.ToUpper(strings.ReplaceAll(http.StatusText(status), " ", "_"))
}
