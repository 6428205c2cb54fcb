package models

import (
	"time"
)

// Attachment is content-addressed media metadata. ID is the hex SHA-256 of
// the stored bytes and Type the sniffed MIME type. TouchedAt is refreshed by
// every upload of the same bytes.
type Attachment struct {
	ID        string    `gorm:"primaryKey;type:char(64)" json:"id"`
	Type      string    `gorm:"not null;size:100" json:"type"`
	Size      int64     `gorm:"not null" json:"size"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	TouchedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"touched_at"`
}

// TableName returns the table name for Attachment
func (Attachment) TableName() string {
	return "attachments"
}

// PostAttachment links one attachment footer entry of a post to the stored
// attachment. Position is the index among the post's attachment entries.
type PostAttachment struct {
	PostID       string `gorm:"primaryKey;type:char(64)" json:"post_id"`
	Position     int    `gorm:"primaryKey;autoIncrement:false" json:"position"`
	AttachmentID string `gorm:"not null;type:char(64);index" json:"attachment_id"`
}

// TableName returns the table name for PostAttachment
func (PostAttachment) TableName() string {
	return "post_attachments"
}
