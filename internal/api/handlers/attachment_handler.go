package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	apperrors "github.com/welldanyogia/ephemera-backend/internal/errors"
	"github.com/welldanyogia/ephemera-backend/internal/logger"
	"github.com/welldanyogia/ephemera-backend/internal/services"
	"github.com/welldanyogia/ephemera-backend/internal/validator"
)

// immutableCache is sent with attachment bytes. Content ids are hashes, so a
// stored file never changes.
const immutableCache = "public, max-age=31536000, immutable"

// AttachmentHandler serves stored attachments
type AttachmentHandler struct {
	attachments services.AttachmentService
	errs        errorReporter
}

// NewAttachmentHandler creates a new AttachmentHandler
func NewAttachmentHandler(attachments services.AttachmentService, security *logger.SecurityLogger, log *slog.Logger) *AttachmentHandler {
	return &AttachmentHandler{
		attachments: attachments,
		errs:        newErrorReporter(security, log),
	}
}

// Get handles GET /api/v1/attachments/:id. The id may carry a file
// extension, which is ignored; the served type always comes from metadata.
func (h *AttachmentHandler) Get(c echo.Context) error {
	raw := c.Param("id")
	id, _, _ := strings.Cut(raw, ".")

	if !validator.IsContentHash(id) {
		if strings.Contains(raw, "..") || strings.ContainsAny(raw, `/\`) {
			h.errs.security.PathTraversalAttempt(c.RealIP(), c.Request().URL.Path, raw)
		}
		return h.errs.fail(c, apperrors.ErrAttachmentNotFound, "")
	}

	ctx := c.Request().Context()
	typ, err := h.attachments.GetType(ctx, id)
	if err != nil {
		return h.errs.fail(c, err, "")
	}

	file, err := h.attachments.Open(id)
	if err != nil {
		return h.errs.fail(c, err, "")
	}
	defer file.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, typ.MIME)
	header.Set(echo.HeaderXContentTypeOptions, "nosniff")
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf(`inline; filename="%s.%s"`, id, typ.Extension))
	header.Set("Cache-Control", immutableCache)
	header.Set("ETag", `"`+id+`"`)

	http.ServeContent(c.Response(), c.Request(), "", time.Time{}, file)
	return nil
}
