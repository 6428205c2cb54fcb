package repository

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWork groups repositories that share one database transaction.
type UnitOfWork interface {
	Posts() PostRepository
	Attachments() AttachmentRepository
}

// Transactor runs a function inside a transaction. The transaction commits
// when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTransaction(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type gormUnitOfWork struct {
	posts       PostRepository
	attachments AttachmentRepository
}

// NewUnitOfWork binds both repositories to db, which may be a transaction.
func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &gormUnitOfWork{
		posts:       NewPostRepository(db),
		attachments: NewAttachmentRepository(db),
	}
}

func (u *gormUnitOfWork) Posts() PostRepository             { return u.posts }
func (u *gormUnitOfWork) Attachments() AttachmentRepository { return u.attachments }

type gormTransactor struct {
	db *gorm.DB
}

// NewTransactor creates a Transactor backed by db
func NewTransactor(db *gorm.DB) Transactor {
	return &gormTransactor{db: db}
}

// InTransaction implements Transactor
func (t *gormTransactor) InTransaction(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewUnitOfWork(tx))
	})
}
