package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/welldanyogia/ephemera-backend/internal/api/response"
	apperrors "github.com/welldanyogia/ephemera-backend/internal/errors"
	"github.com/welldanyogia/ephemera-backend/internal/logger"
	"github.com/welldanyogia/ephemera-backend/internal/services"
	"github.com/welldanyogia/ephemera-backend/internal/signal"
	"github.com/welldanyogia/ephemera-backend/internal/storage"
	"github.com/welldanyogia/ephemera-backend/internal/validator"
)

// Multipart form field names
const (
	FieldPost        = "post"
	FieldAttachments = "attachments"
)

// maxSignalSize bounds the signal JSON field. A post is at most 280
// weighted characters plus a four-entry footer.
const maxSignalSize = 64 * 1024

// PostHandler handles post ingestion, listing and deletion
type PostHandler struct {
	posts   services.PostService
	uploads storage.FileStorage
	errs    errorReporter
	log     *slog.Logger
}

// signalEnvelope is the JSON body of create and delete requests
type signalEnvelope struct {
	Post json.RawMessage `json:"post"`
}

// NewPostHandler creates a new PostHandler. uploads is the spool area for
// multipart attachments.
func NewPostHandler(posts services.PostService, uploads storage.FileStorage, security *logger.SecurityLogger, log *slog.Logger) *PostHandler {
	return &PostHandler{
		posts:   posts,
		uploads: uploads,
		errs:    newErrorReporter(security, log),
		log:     log,
	}
}

// Create handles POST /api/v1/post
func (h *PostHandler) Create(c echo.Context) error {
	req := c.Request()

	mediaType, _, _ := mime.ParseMediaType(req.Header.Get(echo.HeaderContentType))

	var (
		raw   []byte
		paths []string
		err   error
	)
	switch mediaType {
	case echo.MIMEMultipartForm:
		var spooled []string
		defer func() { h.discard(spooled) }()

		raw, spooled, err = h.readMultipart(req)
		if err != nil {
			return h.errs.fail(c, err, "")
		}
		for _, name := range spooled {
			p, err := h.uploads.Path(name)
			if err != nil {
				return h.errs.fail(c, err, "")
			}
			paths = append(paths, p)
		}

	case echo.MIMEApplicationJSON:
		raw, err = readEnvelope(req.Body)
		if err != nil {
			return h.errs.fail(c, err, "")
		}

	default:
		return h.errs.fail(c, apperrors.ErrMalformedRequest, "")
	}

	sig, err := signal.DecodeCreatePost(raw)
	if err != nil {
		return h.errs.fail(c, apperrors.ErrMalformedRequest, "")
	}

	post, err := h.posts.Create(req.Context(), sig, paths)
	if err != nil {
		return h.errs.fail(c, err, sig.Payload.Header.Author)
	}

	return response.Created(c, map[string]string{"id": post.ID})
}

// readMultipart streams the request parts, keeping the signal field in
// memory and spooling attachment files to upload storage. The returned
// names must be discarded by the caller even when err is set.
func (h *PostHandler) readMultipart(req *http.Request) (raw []byte, spooled []string, err error) {
	reader, err := req.MultipartReader()
	if err != nil {
		return nil, nil, apperrors.ErrMalformedRequest
	}

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, spooled, apperrors.ErrMalformedRequest
		}

		switch part.FormName() {
		case FieldPost:
			if raw != nil {
				return nil, spooled, apperrors.ErrMalformedRequest
			}
			raw, err = readLimited(part, maxSignalSize)
			if err != nil {
				return nil, spooled, err
			}

		case FieldAttachments:
			if len(spooled) >= services.MaxAttachmentsPerPost {
				return nil, spooled, apperrors.ErrTooManyAttachments
			}
			name, err := h.spool(part)
			if name != "" {
				spooled = append(spooled, name)
			}
			if err != nil {
				return nil, spooled, err
			}

		default:
			// Unknown fields are drained and ignored
			io.Copy(io.Discard, part)
		}
		part.Close()
	}

	if raw == nil {
		return nil, spooled, apperrors.ErrMalformedRequest
	}
	return raw, spooled, nil
}

// spool writes one attachment part to upload storage, stopping one byte past
// the size ceiling.
func (h *PostHandler) spool(part *multipart.Part) (string, error) {
	name, err := h.uploads.Save(io.LimitReader(part, services.MaxAttachmentSize+1))
	if err != nil {
		return "", err
	}

	info, err := h.uploads.Stat(name)
	if err != nil {
		return name, err
	}
	if info.Size() > services.MaxAttachmentSize {
		return name, &uploadError{filename: part.FileName(), err: apperrors.ErrAttachmentTooLarge}
	}
	return name, nil
}

func (h *PostHandler) discard(names []string) {
	for _, name := range names {
		if err := h.uploads.Delete(name); err != nil {
			h.log.Warn("failed to remove spooled upload",
				slog.String("name", name),
				slog.Any("error", err))
		}
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil || int64(len(data)) > limit {
		return nil, apperrors.ErrMalformedRequest
	}
	return data, nil
}

// readEnvelope extracts the post field of a {"post": Signal} body
func readEnvelope(body io.Reader) ([]byte, error) {
	data, err := readLimited(body, maxSignalSize)
	if err != nil {
		return nil, err
	}

	var env signalEnvelope
	if err := json.Unmarshal(data, &env); err != nil || len(env.Post) == 0 {
		return nil, apperrors.ErrMalformedRequest
	}
	return env.Post, nil
}

// List handles GET /api/v1/posts
func (h *PostHandler) List(c echo.Context) error {
	opts := services.FindOptions{Limit: validator.DefaultLimit}

	if l := c.QueryParam("limit"); l != "" {
		limit, err := strconv.Atoi(l)
		if err != nil {
			return h.errs.fail(c, apperrors.ErrInvalidLimit, "")
		}
		opts.Limit = limit
	}
	if cursor := c.QueryParam("cursor"); cursor != "" {
		opts.Cursor = &cursor
	}
	if author := c.QueryParam("author"); author != "" {
		opts.Author = &author
	}

	result, err := h.posts.Find(c.Request().Context(), opts)
	if err != nil {
		return h.errs.fail(c, err, "")
	}

	return response.Page(c, result.Posts, result.NextCursor)
}

// Delete handles DELETE /api/v1/post
func (h *PostHandler) Delete(c echo.Context) error {
	raw, err := readEnvelope(c.Request().Body)
	if err != nil {
		return h.errs.fail(c, err, "")
	}

	sig, err := signal.DecodeDeletePost(raw)
	if err != nil {
		return h.errs.fail(c, apperrors.ErrMalformedRequest, "")
	}

	if err := h.posts.Delete(c.Request().Context(), sig); err != nil {
		return h.errs.fail(c, err, sig.Payload.Header.Author)
	}

	return response.Success(c, nil)
}
