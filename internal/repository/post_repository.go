package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/welldanyogia/ephemera-backend/internal/models"
	"gorm.io/gorm"
)

// PostFilter selects a page of posts, newest first.
type PostFilter struct {
	// Before restricts results to seq < *Before.
	Before *int64
	Author *string
	Limit  int
}

// PostRepository defines the interface for post data access
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	Exists(ctx context.Context, id string) (bool, error)
	LinkAttachments(ctx context.Context, postID string, attachmentIDs []string) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	List(ctx context.Context, filter PostFilter) ([]models.Post, error)
	ListAttachmentIDs(ctx context.Context, postID string) ([]string, error)
	DeleteByIDAndAuthor(ctx context.Context, id, author string) error
}

// postRepository implements PostRepository using GORM
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new PostRepository instance
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// Create inserts a post. A post with the same id yields ErrDuplicateEntry.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	result := r.db.WithContext(ctx).Omit("Attachments").Create(post)
	if result.Error != nil {
		if isDuplicateKeyError(result.Error) {
			return ErrDuplicateEntry
		}
		return fmt.Errorf("failed to create post: %w", result.Error)
	}
	return nil
}

// Exists reports whether a post with the given id is stored
func (r *postRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	result := r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Count(&count)
	if result.Error != nil {
		return false, fmt.Errorf("failed to check post existence: %w", result.Error)
	}
	return count > 0, nil
}

// LinkAttachments inserts one association row per attachment id, keeping
// the given order as the position.
func (r *postRepository) LinkAttachments(ctx context.Context, postID string, attachmentIDs []string) error {
	if len(attachmentIDs) == 0 {
		return nil
	}

	links := make([]models.PostAttachment, len(attachmentIDs))
	for i, id := range attachmentIDs {
		links[i] = models.PostAttachment{PostID: postID, Position: i, AttachmentID: id}
	}

	if err := r.db.WithContext(ctx).Create(&links).Error; err != nil {
		return fmt.Errorf("failed to link attachments: %w", err)
	}
	return nil
}

// GetByID retrieves a post by its content id
func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&post)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post by ID: %w", result.Error)
	}
	return &post, nil
}

// List returns up to filter.Limit posts ordered by seq descending
func (r *postRepository) List(ctx context.Context, filter PostFilter) ([]models.Post, error) {
	query := r.db.WithContext(ctx).Model(&models.Post{})

	if filter.Before != nil {
		query = query.Where("seq < ?", *filter.Before)
	}
	if filter.Author != nil {
		query = query.Where("author = ?", *filter.Author)
	}

	var posts []models.Post
	if err := query.Order("seq DESC").Limit(filter.Limit).Find(&posts).Error; err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return posts, nil
}

// ListAttachmentIDs returns the attachment ids linked to a post in footer order
func (r *postRepository) ListAttachmentIDs(ctx context.Context, postID string) ([]string, error) {
	var ids []string
	result := r.db.WithContext(ctx).Model(&models.PostAttachment{}).
		Where("post_id = ?", postID).
		Order("position ASC").
		Pluck("attachment_id", &ids)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list post attachments: %w", result.Error)
	}
	return ids, nil
}

// DeleteByIDAndAuthor removes a post owned by author together with its
// attachment links. Returns ErrNotFound when no such post exists.
func (r *postRepository) DeleteByIDAndAuthor(ctx context.Context, id, author string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND author = ?", id, author).Delete(&models.Post{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete post: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}

		if err := tx.Where("post_id = ?", id).Delete(&models.PostAttachment{}).Error; err != nil {
			return fmt.Errorf("failed to delete post attachments: %w", err)
		}
		return nil
	})
}
