package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/ephemera-backend/internal/models"
	"github.com/welldanyogia/ephemera-backend/internal/repository"
	"github.com/welldanyogia/ephemera-backend/internal/services"
	"github.com/welldanyogia/ephemera-backend/internal/signal"
)

// MockPostService implements services.PostService
type MockPostService struct {
	mock.Mock
}

// Validate checks a signal
func (m *MockPostService) Validate(s signal.Signal) (string, error) {
	args := m.Called(s)
	return args.String(0), args.Error(1)
}

// Create stores a post
func (m *MockPostService) Create(ctx context.Context, s signal.Signal, attachmentPaths []string) (*models.Post, error) {
	args := m.Called(ctx, s, attachmentPaths)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

// Find returns a page of posts
func (m *MockPostService) Find(ctx context.Context, opts services.FindOptions) (*services.FindResult, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.FindResult), args.Error(1)
}

// Delete removes a post
func (m *MockPostService) Delete(ctx context.Context, s signal.Signal) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

// MockAttachmentService implements services.AttachmentService
type MockAttachmentService struct {
	mock.Mock
}

// CopyFrom stores an attachment
func (m *MockAttachmentService) CopyFrom(ctx context.Context, srcPath string, uow repository.UnitOfWork) (string, error) {
	args := m.Called(ctx, srcPath, uow)
	return args.String(0), args.Error(1)
}

// GetType returns the stored type
func (m *MockAttachmentService) GetType(ctx context.Context, id string) (services.AttachmentType, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(services.AttachmentType), args.Error(1)
}

// Open opens stored bytes
func (m *MockAttachmentService) Open(id string) (io.ReadSeekCloser, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadSeekCloser), args.Error(1)
}

// RemoveOrphans reclaims unreferenced attachments
func (m *MockAttachmentService) RemoveOrphans(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// NotificationRecord records one event sent through MockNotifier
type NotificationRecord struct {
	Type   string
	Author string
	PostID string
	Post   *signal.Signal
}

// MockNotifier implements services.Notifier by recording events
type MockNotifier struct {
	mu            sync.Mutex
	Notifications []NotificationRecord
}

// PostCreated records a new post
func (m *MockNotifier) PostCreated(author string, post signal.Signal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, NotificationRecord{
		Type:   "new_post",
		Author: author,
		PostID: signal.DigestHex(post.Payload),
		Post:   &post,
	})
}

// PostDeleted records a deletion
func (m *MockNotifier) PostDeleted(author, postID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Notifications = append(m.Notifications, NotificationRecord{
		Type:   "post_deleted",
		Author: author,
		PostID: postID,
	})
}

// GetNotifications returns a copy of all recorded notifications
func (m *MockNotifier) GetNotifications() []NotificationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]NotificationRecord(nil), m.Notifications...)
}
