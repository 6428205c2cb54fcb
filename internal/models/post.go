package models

import (
	"time"
)

// Post is a verified create_post signal as stored. ID is the hex digest of
// the payload and is unique; Seq is the server-assigned pagination key.
type Post struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement;index:idx_posts_author_seq,priority:2" json:"seq"`
	ID         string    `gorm:"type:char(64);not null;uniqueIndex" json:"id"`
	Version    int       `gorm:"not null" json:"version"`
	Host       string    `gorm:"not null;size:255" json:"host"`
	Author     string    `gorm:"not null;size:64;index:idx_posts_author_seq,priority:1" json:"author"`
	Content    string    `gorm:"not null;type:text" json:"content"`
	Footer     string    `gorm:"not null;type:text" json:"footer"`
	Signature  string    `gorm:"type:char(128);not null" json:"signature"`
	Timestamp  int64     `gorm:"column:created_at;not null" json:"created_at"`
	InsertedAt time.Time `gorm:"autoCreateTime" json:"inserted_at"`

	// Relationships
	Attachments []PostAttachment `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for Post
func (Post) TableName() string {
	return "posts"
}
