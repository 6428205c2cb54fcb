package handlers

import (
	"errors"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/welldanyogia/ephemera-backend/internal/api/response"
	apperrors "github.com/welldanyogia/ephemera-backend/internal/errors"
	"github.com/welldanyogia/ephemera-backend/internal/logger"
	"github.com/welldanyogia/ephemera-backend/internal/validator"
)

var signalRejections = []error{
	apperrors.ErrInvalidSignature,
	apperrors.ErrHostMismatch,
	apperrors.ErrTimestampOutOfRange,
}

var blockedUploads = []error{
	apperrors.ErrAttachmentTooLarge,
	apperrors.ErrAttachmentTypeNotAllowed,
	apperrors.ErrAttachmentMalformed,
	apperrors.ErrAttachmentDimensions,
}

// uploadError ties an attachment rejection to the file name the client sent
type uploadError struct {
	filename string
	err      error
}

func (e *uploadError) Error() string { return e.err.Error() }
func (e *uploadError) Unwrap() error { return e.err }

// uploadName returns a loggable name for the upload err refers to
func uploadName(err error) string {
	var ue *uploadError
	if errors.As(err, &ue) && ue.filename != "" {
		return validator.SanitizeFilename(ue.filename)
	}
	return "attachment"
}

func isAny(err error, targets []error) bool {
	return lo.SomeBy(targets, func(target error) bool { return errors.Is(err, target) })
}

// errorReporter writes error responses and records security events and
// internal failures on the way out
type errorReporter struct {
	security *logger.SecurityLogger
	log      *slog.Logger
}

func newErrorReporter(security *logger.SecurityLogger, log *slog.Logger) errorReporter {
	if security == nil {
		security = logger.NewSecurityLoggerWithHandler(log.Handler())
	}
	return errorReporter{security: security, log: log}
}

// fail responds with err. author is the claimed signer when known.
func (r errorReporter) fail(c echo.Context, err error, author string) error {
	ip := c.RealIP()

	switch {
	case isAny(err, signalRejections):
		r.security.SignalRejected(ip, c.Path(), apperrors.GetErrorCode(err), author)
	case isAny(err, blockedUploads):
		r.security.BlockedFileUpload(ip, uploadName(err), apperrors.GetErrorCode(err))
	case apperrors.IsInternal(err):
		r.log.Error("request failed",
			slog.String("method", c.Request().Method),
			slog.String("path", c.Path()),
			slog.Any("error", err))
	}

	return response.Error(c, err)
}
