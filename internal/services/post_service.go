package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/welldanyogia/ephemera-backend/internal/base37"
	apperrors "github.com/welldanyogia/ephemera-backend/internal/errors"
	"github.com/welldanyogia/ephemera-backend/internal/metrics"
	"github.com/welldanyogia/ephemera-backend/internal/models"
	"github.com/welldanyogia/ephemera-backend/internal/repository"
	"github.com/welldanyogia/ephemera-backend/internal/signal"
	"github.com/welldanyogia/ephemera-backend/internal/validator"
)

// MaxAttachmentsPerPost is the attachment count ceiling for one post.
const MaxAttachmentsPerPost = 4

// DefaultAllowedTimeSkew is the accepted distance between a signal's
// timestamp and the server clock.
const DefaultAllowedTimeSkew = 5 * time.Minute

// PostServiceConfig holds configuration for the post service
type PostServiceConfig struct {
	// Host is this deployment's host[:port]; signals for other hosts are rejected.
	Host string
	// AllowedTimeSkew bounds |now - timestamp|.
	AllowedTimeSkew time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// FindOptions selects a page of posts
type FindOptions struct {
	Limit  int
	Cursor *string
	Author *string
}

// FindResult is one page of posts, newest first. NextCursor is nil at the
// end of the stream.
type FindResult struct {
	Posts      []signal.Signal
	NextCursor *string
}

// Notifier is told about committed post changes.
type Notifier interface {
	PostCreated(author string, post signal.Signal)
	PostDeleted(author, postID string)
}

type nopNotifier struct{}

func (nopNotifier) PostCreated(string, signal.Signal) {}
func (nopNotifier) PostDeleted(string, string)        {}

// PostService defines the interface for post ingestion and retrieval
type PostService interface {
	// Validate checks signature, host binding and timestamp skew, in that
	// order, and returns the signer's author id.
	Validate(s signal.Signal) (string, error)

	// Create stores a create_post signal and its attachment files atomically.
	Create(ctx context.Context, s signal.Signal, attachmentPaths []string) (*models.Post, error)

	// Find returns a page of posts.
	Find(ctx context.Context, opts FindOptions) (*FindResult, error)

	// Delete removes the post named by a delete_post signal if the signer
	// authored it.
	Delete(ctx context.Context, s signal.Signal) error
}

// postService implements PostService
type postService struct {
	config      PostServiceConfig
	posts       repository.PostRepository
	transactor  repository.Transactor
	attachments AttachmentService
	notifier    Notifier
	logger      *slog.Logger
}

// NewPostService creates a new PostService instance. notifier may be nil.
func NewPostService(
	config PostServiceConfig,
	posts repository.PostRepository,
	transactor repository.Transactor,
	attachments AttachmentService,
	notifier Notifier,
	logger *slog.Logger,
) PostService {
	if config.AllowedTimeSkew < 0 {
		config.AllowedTimeSkew = DefaultAllowedTimeSkew
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}

	return &postService{
		config:      config,
		posts:       posts,
		transactor:  transactor,
		attachments: attachments,
		notifier:    notifier,
		logger:      logger.With(slog.String("component", "posts")),
	}
}

// Validate implements PostService
func (s *postService) Validate(sig signal.Signal) (string, error) {
	if !signal.Verify(sig) {
		return "", apperrors.ErrInvalidSignature
	}

	header := sig.Payload.Header
	if header.Host != s.config.Host {
		return "", apperrors.ErrHostMismatch
	}

	skew := s.config.Now().UnixMilli() - header.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > s.config.AllowedTimeSkew.Milliseconds() {
		return "", apperrors.ErrTimestampOutOfRange
	}

	return header.Author, nil
}

// Create implements PostService
func (s *postService) Create(ctx context.Context, sig signal.Signal, attachmentPaths []string) (post *models.Post, err error) {
	defer func() { s.countRejection(err) }()

	if sig.Payload.Header.Type != signal.TypeCreatePost {
		return nil, apperrors.ErrMalformedRequest
	}

	author, err := s.Validate(sig)
	if err != nil {
		return nil, err
	}

	if len(attachmentPaths) > MaxAttachmentsPerPost {
		return nil, apperrors.ErrTooManyAttachments
	}

	declared := sig.Payload.AttachmentHashes()
	uploaded := make([]string, 0, len(attachmentPaths))
	for _, p := range attachmentPaths {
		hash, err := FileDigest(p)
		if err != nil {
			return nil, err
		}
		uploaded = append(uploaded, hash)
	}
	if !sameMultiset(declared, uploaded) {
		return nil, apperrors.ErrAttachmentMismatch
	}

	id := signal.DigestHex(sig.Payload)

	// Refuse known duplicates before any attachment bytes are written.
	exists, err := s.posts.Exists(ctx, id)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apperrors.ErrPostAlreadyExists
	}

	post = &models.Post{
		ID:        id,
		Version:   sig.Payload.Version,
		Host:      sig.Payload.Header.Host,
		Author:    author,
		Content:   sig.Payload.Text(),
		Footer:    string(signal.EncodeFooter(sig.Payload.Footer)),
		Signature: sig.Signature,
		Timestamp: sig.Payload.Header.Timestamp,
	}

	err = s.transactor.InTransaction(ctx, func(uow repository.UnitOfWork) error {
		for _, p := range attachmentPaths {
			if _, err := s.attachments.CopyFrom(ctx, p, uow); err != nil {
				return err
			}
		}

		if err := uow.Posts().Create(ctx, post); err != nil {
			if errors.Is(err, repository.ErrDuplicateEntry) {
				return apperrors.ErrPostAlreadyExists
			}
			return err
		}

		return uow.Posts().LinkAttachments(ctx, id, declared)
	})
	if err != nil {
		return nil, err
	}

	metrics.PostsCreated.Inc()
	s.logger.Info("post created",
		slog.String("id", id),
		slog.String("author", author),
		slog.Int("attachments", len(declared)))
	s.notifier.PostCreated(author, sig)

	return post, nil
}

// sameMultiset reports whether a and b hold the same values with the same
// multiplicities.
func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	return maps.Equal(lo.CountValues(a), lo.CountValues(b))
}

// Find implements PostService
func (s *postService) Find(ctx context.Context, opts FindOptions) (*FindResult, error) {
	limit, err := validator.ValidateLimit(opts.Limit)
	if err != nil {
		return nil, apperrors.ErrInvalidLimit
	}

	filter := repository.PostFilter{Limit: limit + 1}

	if opts.Cursor != nil {
		before, ok, err := validator.ParseCursor(*opts.Cursor)
		if err != nil {
			return nil, apperrors.ErrInvalidCursor
		}
		if ok {
			filter.Before = &before
		}
	}

	if opts.Author != nil {
		author, err := canonicalAuthor(*opts.Author)
		if err != nil {
			return nil, err
		}
		filter.Author = &author
	}

	rows, err := s.posts.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &FindResult{Posts: make([]signal.Signal, 0, min(len(rows), limit))}
	if len(rows) > limit {
		rows = rows[:limit]
		next := strconv.FormatInt(rows[len(rows)-1].Seq, 10)
		result.NextCursor = &next
	}

	for i := range rows {
		sig, err := postSignal(&rows[i])
		if err != nil {
			return nil, err
		}
		result.Posts = append(result.Posts, sig)
	}

	return result, nil
}

// canonicalAuthor decodes an author filter and returns its canonical
// lowercase encoding.
func canonicalAuthor(author string) (string, error) {
	key, err := base37.Decode(author)
	if err != nil || author == "" {
		return "", apperrors.ErrInvalidAuthor
	}
	if !signal.IsValidPublicKey(key) {
		return "", apperrors.ErrInvalidAuthorKey
	}
	return base37.Encode(key), nil
}

// postSignal rebuilds the signal a stored post was created from.
func postSignal(post *models.Post) (signal.Signal, error) {
	footer, err := signal.DecodeFooter([]byte(post.Footer))
	if err != nil {
		return signal.Signal{}, fmt.Errorf("stored footer of post %s is corrupt: %w", post.ID, err)
	}

	payload := signal.NewCreatePost(post.Host, post.Author, post.Timestamp, post.Content, footer)
	payload.Version = post.Version

	return signal.Signal{Payload: payload, Signature: post.Signature}, nil
}

// Delete implements PostService
func (s *postService) Delete(ctx context.Context, sig signal.Signal) (err error) {
	defer func() { s.countRejection(err) }()

	if sig.Payload.Header.Type != signal.TypeDeletePost {
		return apperrors.ErrMalformedRequest
	}

	author, err := s.Validate(sig)
	if err != nil {
		return err
	}

	target := sig.Payload.TargetPostID()
	if err := s.posts.DeleteByIDAndAuthor(ctx, target, author); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrPostNotFound
		}
		return err
	}

	metrics.PostsDeleted.Inc()
	s.logger.Info("post deleted",
		slog.String("id", target),
		slog.String("author", author))
	s.notifier.PostDeleted(author, target)

	return nil
}

func (s *postService) countRejection(err error) {
	if err == nil || apperrors.IsInternal(err) {
		return
	}
	metrics.PostsRejected.WithLabelValues(apperrors.GetErrorCode(err)).Inc()
}
