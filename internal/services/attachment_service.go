package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
	_ "golang.org/x/image/webp"

	apperrors "github.com/welldanyogia/ephemera-backend/internal/errors"
	"github.com/welldanyogia/ephemera-backend/internal/metrics"
	"github.com/welldanyogia/ephemera-backend/internal/models"
	"github.com/welldanyogia/ephemera-backend/internal/repository"
	"github.com/welldanyogia/ephemera-backend/internal/storage"
	"github.com/welldanyogia/ephemera-backend/internal/validator"
)

// Attachment limits
const (
	MaxAttachmentSize = 16 * 1024 * 1024
	MaxImageDimension = 4096

	// StrayFileGracePeriod protects files written by transactions that have
	// not committed yet from the stray-file sweep.
	StrayFileGracePeriod = 10 * time.Minute

	// DefaultOrphanGracePeriod is how long an unreferenced attachment must
	// sit untouched before the sweep reclaims it.
	DefaultOrphanGracePeriod = 10 * time.Minute
)

// sweepPrefix names files the sweep has moved aside before deleting them.
const sweepPrefix = ".sweep-"

type allowedType struct {
	extension string
	// imageFormat is the image package format name; empty for video.
	imageFormat string
}

var allowedTypes = map[string]allowedType{
	"image/png":  {extension: "png", imageFormat: "png"},
	"image/jpeg": {extension: "jpg", imageFormat: "jpeg"},
	"image/gif":  {extension: "gif", imageFormat: "gif"},
	"image/webp": {extension: "webp", imageFormat: "webp"},
	"video/mp4":  {extension: "mp4"},
	"video/webm": {extension: "webm"},
}

// AttachmentType is the server-determined type of a stored attachment.
type AttachmentType struct {
	MIME      string
	Extension string
}

// AttachmentService stores and serves content-addressed attachments
type AttachmentService interface {
	// CopyFrom validates the file at srcPath, stores it under its content
	// hash and records its metadata through uow. Returns the content id.
	CopyFrom(ctx context.Context, srcPath string, uow repository.UnitOfWork) (string, error)

	// GetType returns the stored type of an attachment.
	GetType(ctx context.Context, id string) (AttachmentType, error)

	// Open opens the stored bytes of an attachment.
	Open(id string) (io.ReadSeekCloser, error)

	// RemoveOrphans deletes attachments no post refers to, plus stored
	// files that never got a metadata row. Returns how many were reclaimed.
	RemoveOrphans(ctx context.Context) (int, error)
}

// AttachmentServiceConfig holds configuration for AttachmentService
type AttachmentServiceConfig struct {
	// OrphanGracePeriod is how long an unreferenced attachment must sit
	// untouched before RemoveOrphans reclaims it. Zero reclaims at once.
	OrphanGracePeriod time.Duration
}

// attachmentService implements AttachmentService
type attachmentService struct {
	store       storage.FileStorage
	attachments repository.AttachmentRepository
	config      AttachmentServiceConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewAttachmentService creates a new AttachmentService instance
func NewAttachmentService(store storage.FileStorage, attachments repository.AttachmentRepository, config AttachmentServiceConfig, logger *slog.Logger) AttachmentService {
	if config.OrphanGracePeriod < 0 {
		config.OrphanGracePeriod = 0
	}
	return &attachmentService{
		store:       store,
		attachments: attachments,
		config:      config,
		logger:      logger.With(slog.String("component", "attachments")),
		now:         time.Now,
	}
}

// StorageKey maps a content id to its relative location in storage.
func StorageKey(id string) string {
	return path.Join(id[:2], id)
}

// FileDigest returns the hex SHA-256 of the file at filePath
func FileDigest(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	return readerDigest(f)
}

func readerDigest(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CopyFrom implements AttachmentService. All checks and the copy run on one
// open handle so the stored bytes are the validated bytes.
func (s *attachmentService) CopyFrom(ctx context.Context, srcPath string, uow repository.UnitOfWork) (string, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("failed to open attachment: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat attachment: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", apperrors.ErrAttachmentMalformed
	}
	if info.Size() > MaxAttachmentSize {
		return "", apperrors.ErrAttachmentTooLarge
	}

	mimeType, kind, err := s.detect(f)
	if err != nil {
		return "", err
	}

	if kind.imageFormat != "" {
		if err := rewind(f); err != nil {
			return "", err
		}
		if err := validateImage(f, kind.imageFormat); err != nil {
			return "", err
		}
	}

	if err := rewind(f); err != nil {
		return "", err
	}
	id, err := readerDigest(f)
	if err != nil {
		return "", err
	}

	// Always rewrite so the file's mtime is fresh for the stray-file sweep.
	if err := rewind(f); err != nil {
		return "", err
	}
	written, err := s.store.Put(StorageKey(id), f)
	if err != nil {
		return "", fmt.Errorf("failed to store attachment: %w", err)
	}

	row := &models.Attachment{ID: id, Type: mimeType, Size: written, TouchedAt: s.now().UTC()}
	if err := uow.Attachments().Upsert(ctx, row); err != nil {
		return "", err
	}

	metrics.AttachmentsStored.WithLabelValues(mimeType).Inc()
	metrics.AttachmentBytes.Add(float64(written))

	s.logger.Debug("attachment stored",
		slog.String("id", id),
		slog.String("type", mimeType),
		slog.Int64("size", written))

	return id, nil
}

// detect sniffs the file type and walks up the mimetype hierarchy until an
// allowed type is found, so APNG is stored as image/png.
func (s *attachmentService) detect(r io.Reader) (string, allowedType, error) {
	detected, err := mimetype.DetectReader(r)
	if err != nil {
		return "", allowedType{}, fmt.Errorf("failed to detect attachment type: %w", err)
	}

	for m := detected; m != nil; m = m.Parent() {
		name := baseMIME(m.String())
		if kind, ok := allowedTypes[name]; ok {
			return name, kind, nil
		}
	}

	s.logger.Info("attachment type rejected", slog.String("detected", detected.String()))
	return "", allowedType{}, apperrors.ErrAttachmentTypeNotAllowed
}

func baseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.TrimSpace(m)
}

// validateImage checks the header dimensions before paying for a full
// decode, then decodes to prove the image is structurally sound.
func validateImage(r io.ReadSeeker, wantFormat string) error {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil || format != wantFormat {
		return apperrors.ErrAttachmentMalformed
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return apperrors.ErrAttachmentMalformed
	}
	if cfg.Width > MaxImageDimension || cfg.Height > MaxImageDimension {
		return apperrors.ErrAttachmentDimensions
	}

	if err := rewind(r); err != nil {
		return err
	}
	if _, _, err := image.Decode(r); err != nil {
		return apperrors.ErrAttachmentMalformed
	}
	return nil
}

func rewind(s io.Seeker) error {
	if _, err := s.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind attachment: %w", err)
	}
	return nil
}

// GetType implements AttachmentService. The type always comes from the
// metadata row, never from the request.
func (s *attachmentService) GetType(ctx context.Context, id string) (AttachmentType, error) {
	if !validator.IsContentHash(id) {
		return AttachmentType{}, apperrors.ErrAttachmentNotFound
	}

	attachment, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AttachmentType{}, apperrors.ErrAttachmentNotFound
		}
		return AttachmentType{}, err
	}

	ext := "bin"
	if kind, ok := allowedTypes[attachment.Type]; ok {
		ext = kind.extension
	}
	return AttachmentType{MIME: attachment.Type, Extension: ext}, nil
}

// Open implements AttachmentService
func (s *attachmentService) Open(id string) (io.ReadSeekCloser, error) {
	if !validator.IsContentHash(id) {
		return nil, apperrors.ErrAttachmentNotFound
	}

	f, err := s.store.Get(StorageKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return f, nil
}

// RemoveOrphans implements AttachmentService. Rows go first and files
// second, so a crash in between leaves files without rows, which the
// stray-file pass reclaims later.
func (s *attachmentService) RemoveOrphans(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config.OrphanGracePeriod)

	orphans, err := s.attachments.ListOrphans(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	var deleted []string
	if len(orphans) > 0 {
		ids := lo.Map(orphans, func(a models.Attachment, _ int) string { return a.ID })
		deleted, err = s.attachments.DeleteOrphans(ctx, ids, cutoff)
		if err != nil {
			return 0, err
		}
	}
	metrics.OrphansReclaimed.Add(float64(len(deleted)))

	for _, id := range deleted {
		if _, err := s.discard(ctx, id, cutoff); err != nil {
			s.logger.Error("failed to delete orphan attachment file",
				slog.String("id", id),
				slog.Any("error", err))
		}
	}

	strays, err := s.removeStrayFiles(ctx)
	if err != nil {
		return len(deleted), err
	}

	s.logger.Info("orphan sweep finished",
		slog.Int("orphans_found", len(orphans)),
		slog.Int("orphans_deleted", len(deleted)),
		slog.Int("stray_files_deleted", strays))

	return len(deleted) + strays, nil
}

// discard deletes the stored file of id unless an upload raced the sweep.
// The file is moved aside first; it goes back when it was rewritten after
// cutoff or its metadata row exists again. Identical content makes putting
// it back safe even over a newer copy.
func (s *attachmentService) discard(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	key := StorageKey(id)
	aside := path.Join(path.Dir(key), sweepPrefix+id)

	if err := s.store.Rename(key, aside); err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return false, nil
		}
		return false, err
	}

	info, err := s.store.Stat(aside)
	if err != nil {
		return false, err
	}
	live, err := s.attachments.FilterExisting(ctx, []string{id})
	if err != nil || len(live) > 0 || info.ModTime().After(cutoff) {
		if restoreErr := s.store.Rename(aside, key); restoreErr != nil {
			return false, errors.Join(err, restoreErr)
		}
		return false, err
	}

	return true, s.store.Delete(aside)
}

// strayBatchSize bounds the IN list used to look up metadata rows.
const strayBatchSize = 500

// removeStrayFiles deletes stored files older than the grace period that
// have no metadata row, along with abandoned temp files. Files an
// interrupted sweep left aside are moved back and judged on the next run.
func (s *attachmentService) removeStrayFiles(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-StrayFileGracePeriod)
	candidates := map[string]string{}
	var leftovers, aside []string

	err := s.store.Walk(func(relPath string, info fs.FileInfo) error {
		if info.ModTime().After(cutoff) {
			return nil
		}
		name := path.Base(relPath)
		switch {
		case strings.HasPrefix(name, ".put-"):
			leftovers = append(leftovers, relPath)
		case strings.HasPrefix(name, sweepPrefix):
			aside = append(aside, relPath)
		case validator.IsContentHash(name) && relPath == StorageKey(name):
			candidates[name] = relPath
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to walk attachment storage: %w", err)
	}

	for _, batch := range lo.Chunk(lo.Keys(candidates), strayBatchSize) {
		existing, err := s.attachments.FilterExisting(ctx, batch)
		if err != nil {
			return 0, err
		}
		for _, id := range existing {
			delete(candidates, id)
		}
	}

	for _, relPath := range aside {
		id := strings.TrimPrefix(path.Base(relPath), sweepPrefix)
		if !validator.IsContentHash(id) {
			leftovers = append(leftovers, relPath)
			continue
		}
		if err := s.store.Rename(relPath, StorageKey(id)); err != nil {
			s.logger.Error("failed to restore attachment file",
				slog.String("path", relPath),
				slog.Any("error", err))
		}
	}

	removed := 0
	for _, relPath := range leftovers {
		if err := s.store.Delete(relPath); err != nil {
			s.logger.Error("failed to delete stray attachment file",
				slog.String("path", relPath),
				slog.Any("error", err))
			continue
		}
		removed++
	}
	for id := range candidates {
		ok, err := s.discard(ctx, id, cutoff)
		if err != nil {
			s.logger.Error("failed to delete stray attachment file",
				slog.String("id", id),
				slog.Any("error", err))
			continue
		}
		if ok {
			removed++
		}
	}
	metrics.StrayFilesReclaimed.Add(float64(removed))

	return removed, nil
}
