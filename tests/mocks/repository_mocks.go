package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/ephemera-backend/internal/models"
	"github.com/welldanyogia/ephemera-backend/internal/repository"
)

// MockPostRepository implements repository.PostRepository
type MockPostRepository struct {
	mock.Mock
}

// Create inserts a post
func (m *MockPostRepository) Create(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

// Exists reports whether a post id is stored
func (m *MockPostRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// LinkAttachments records attachment associations
func (m *MockPostRepository) LinkAttachments(ctx context.Context, postID string, attachmentIDs []string) error {
	args := m.Called(ctx, postID, attachmentIDs)
	return args.Error(0)
}

// GetByID retrieves a post by id
func (m *MockPostRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

// List returns a page of posts
func (m *MockPostRepository) List(ctx context.Context, filter repository.PostFilter) ([]models.Post, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Post), args.Error(1)
}

// ListAttachmentIDs returns the attachment ids of a post
func (m *MockPostRepository) ListAttachmentIDs(ctx context.Context, postID string) ([]string, error) {
	args := m.Called(ctx, postID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// DeleteByIDAndAuthor removes an owned post
func (m *MockPostRepository) DeleteByIDAndAuthor(ctx context.Context, id, author string) error {
	args := m.Called(ctx, id, author)
	return args.Error(0)
}

// MockAttachmentRepository implements repository.AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

// Upsert inserts attachment metadata unless present
func (m *MockAttachmentRepository) Upsert(ctx context.Context, attachment *models.Attachment) error {
	args := m.Called(ctx, attachment)
	return args.Error(0)
}

// GetByID retrieves attachment metadata
func (m *MockAttachmentRepository) GetByID(ctx context.Context, id string) (*models.Attachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attachment), args.Error(1)
}

// ListOrphans returns unreferenced attachments
func (m *MockAttachmentRepository) ListOrphans(ctx context.Context, idleBefore time.Time) ([]models.Attachment, error) {
	args := m.Called(ctx, idleBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Attachment), args.Error(1)
}

// DeleteOrphans removes still-unreferenced rows
func (m *MockAttachmentRepository) DeleteOrphans(ctx context.Context, ids []string, idleBefore time.Time) ([]string, error) {
	args := m.Called(ctx, ids, idleBefore)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// FilterExisting returns the ids with metadata rows
func (m *MockAttachmentRepository) FilterExisting(ctx context.Context, ids []string) ([]string, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

// MockUnitOfWork implements repository.UnitOfWork over two mocks
type MockUnitOfWork struct {
	PostRepo       *MockPostRepository
	AttachmentRepo *MockAttachmentRepository
}

// NewMockUnitOfWork creates a MockUnitOfWork with fresh repository mocks
func NewMockUnitOfWork() *MockUnitOfWork {
	return &MockUnitOfWork{
		PostRepo:       new(MockPostRepository),
		AttachmentRepo: new(MockAttachmentRepository),
	}
}

// Posts returns the post repository mock
func (u *MockUnitOfWork) Posts() repository.PostRepository { return u.PostRepo }

// Attachments returns the attachment repository mock
func (u *MockUnitOfWork) Attachments() repository.AttachmentRepository { return u.AttachmentRepo }

// MockTransactor implements repository.Transactor. It runs fn against UoW
// and returns fn's error, or Err when set.
type MockTransactor struct {
	UoW   repository.UnitOfWork
	Err   error
	Calls int
}

// InTransaction runs fn with the configured unit of work
func (t *MockTransactor) InTransaction(ctx context.Context, fn func(uow repository.UnitOfWork) error) error {
	t.Calls++
	if t.Err != nil {
		return t.Err
	}
	return fn(t.UoW)
}
