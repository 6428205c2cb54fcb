package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/welldanyogia/ephemera-backend/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttachmentRepository defines the interface for attachment metadata access
type AttachmentRepository interface {
	// Upsert inserts the row, or refreshes TouchedAt when one with the same
	// id exists.
	Upsert(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id string) (*models.Attachment, error)
	// ListOrphans returns attachments with no post association that were
	// last touched before idleBefore.
	ListOrphans(ctx context.Context, idleBefore time.Time) ([]models.Attachment, error)
	// DeleteOrphans removes the given rows that are still unreferenced and
	// still idle, and returns the ids it removed.
	DeleteOrphans(ctx context.Context, ids []string, idleBefore time.Time) ([]string, error)
	// FilterExisting returns the subset of ids that have a metadata row.
	FilterExisting(ctx context.Context, ids []string) ([]string, error)
}

// attachmentRepository implements AttachmentRepository using GORM
type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new AttachmentRepository instance
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

// Upsert creates the attachment row. An existing row keeps its type and size
// and only takes the new TouchedAt; on postgres the update also locks the row
// until the caller's transaction ends.
func (r *attachmentRepository) Upsert(ctx context.Context, attachment *models.Attachment) error {
	if attachment.TouchedAt.IsZero() {
		attachment.TouchedAt = time.Now().UTC()
	}
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"touched_at"}),
		}).
		Create(attachment)
	if result.Error != nil {
		return fmt.Errorf("failed to upsert attachment: %w", result.Error)
	}
	return nil
}

// GetByID retrieves attachment metadata by content id
func (r *attachmentRepository) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	var attachment models.Attachment
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&attachment)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get attachment by ID: %w", result.Error)
	}
	return &attachment, nil
}

// ListOrphans left-joins attachments against post_attachments and keeps
// idle rows with no match
func (r *attachmentRepository) ListOrphans(ctx context.Context, idleBefore time.Time) ([]models.Attachment, error) {
	var orphans []models.Attachment
	result := r.db.WithContext(ctx).
		Model(&models.Attachment{}).
		Select("attachments.*").
		Joins("LEFT JOIN post_attachments ON post_attachments.attachment_id = attachments.id").
		Where("post_attachments.post_id IS NULL").
		Where("attachments.touched_at < ?", idleBefore.UTC()).
		Find(&orphans)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list orphan attachments: %w", result.Error)
	}
	return orphans, nil
}

// DeleteOrphans deletes rows one at a time, skipping any that gained an
// association or were touched again since they were listed
func (r *attachmentRepository) DeleteOrphans(ctx context.Context, ids []string, idleBefore time.Time) ([]string, error) {
	deleted := make([]string, 0, len(ids))
	for _, id := range ids {
		result := r.db.WithContext(ctx).
			Where("id = ?", id).
			Where("touched_at < ?", idleBefore.UTC()).
			Where("NOT EXISTS (SELECT 1 FROM post_attachments WHERE post_attachments.attachment_id = attachments.id)").
			Delete(&models.Attachment{})
		if result.Error != nil {
			return deleted, fmt.Errorf("failed to delete orphan attachment: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

// FilterExisting returns which of ids are present in the attachments table
func (r *attachmentRepository) FilterExisting(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var existing []string
	result := r.db.WithContext(ctx).Model(&models.Attachment{}).Where("id IN ?", ids).Pluck("id", &existing)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to look up attachments: %w", result.Error)
	}
	return existing, nil
}
