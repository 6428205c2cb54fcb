package fixtures

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/welldanyogia/ephemera-backend/internal/models"
	"github.com/welldanyogia/ephemera-backend/internal/signal"
)

// TestHost is the host every fixture signal is bound to by default
const TestHost = "ephemera.test"

// Author is a signing identity for tests
type Author struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
	ID      string
}

// NewAuthor returns a deterministic author derived from seed
func NewAuthor(seed byte) *Author {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	pub := priv.Public().(ed25519.PublicKey)
	return &Author{Public: pub, Private: priv, ID: signal.AuthorID(pub)}
}

// SignalBuilder creates signed test signals with a fluent API
type SignalBuilder struct {
	author    *Author
	host      string
	timestamp int64
	kind      signal.Type
	text      string
	target    string
	footer    []signal.FooterEntry
}

// NewCreatePostBuilder starts a create_post signal with sensible defaults
func NewCreatePostBuilder(author *Author) *SignalBuilder {
	return &SignalBuilder{
		author:    author,
		host:      TestHost,
		timestamp: time.Now().UnixMilli(),
		kind:      signal.TypeCreatePost,
		text:      "hello from ephemera",
	}
}

// NewDeletePostBuilder starts a delete_post signal targeting postID
func NewDeletePostBuilder(author *Author, postID string) *SignalBuilder {
	return &SignalBuilder{
		author:    author,
		host:      TestHost,
		timestamp: time.Now().UnixMilli(),
		kind:      signal.TypeDeletePost,
		target:    postID,
	}
}

// WithHost sets the header host
func (b *SignalBuilder) WithHost(host string) *SignalBuilder {
	b.host = host
	return b
}

// WithTimestamp sets the header timestamp in milliseconds
func (b *SignalBuilder) WithTimestamp(ms int64) *SignalBuilder {
	b.timestamp = ms
	return b
}

// WithTime sets the header timestamp from t
func (b *SignalBuilder) WithTime(t time.Time) *SignalBuilder {
	b.timestamp = t.UnixMilli()
	return b
}

// WithText sets the post text
func (b *SignalBuilder) WithText(text string) *SignalBuilder {
	b.text = text
	return b
}

// WithAttachment appends an attachment footer entry
func (b *SignalBuilder) WithAttachment(mime, hash string) *SignalBuilder {
	b.footer = append(b.footer, signal.AttachmentEntry(mime, hash))
	return b
}

// WithAttachmentFile appends a footer entry for the file at path
func (b *SignalBuilder) WithAttachmentFile(mime, path string) *SignalBuilder {
	return b.WithAttachment(mime, MustFileDigest(path))
}

// Payload returns the unsigned payload
func (b *SignalBuilder) Payload() signal.Payload {
	if b.kind == signal.TypeDeletePost {
		return signal.NewDeletePost(b.host, b.author.ID, b.timestamp, b.target)
	}
	return signal.NewCreatePost(b.host, b.author.ID, b.timestamp, b.text, b.footer)
}

// Build signs the payload
func (b *SignalBuilder) Build() signal.Signal {
	s, err := signal.Sign(b.Payload(), b.author.Private)
	if err != nil {
		panic(fmt.Sprintf("fixtures: sign: %v", err))
	}
	return s
}

// PostBuilder creates stored Post rows for repository-level tests
type PostBuilder struct {
	post models.Post
}

// NewPostBuilder creates a PostBuilder from a signed create_post signal
func NewPostBuilder(s signal.Signal) *PostBuilder {
	return &PostBuilder{post: models.Post{
		ID:        signal.DigestHex(s.Payload),
		Version:   s.Payload.Version,
		Host:      s.Payload.Header.Host,
		Author:    s.Payload.Header.Author,
		Content:   s.Payload.Text(),
		Footer:    string(signal.EncodeFooter(s.Payload.Footer)),
		Signature: s.Signature,
		Timestamp: s.Payload.Header.Timestamp,
	}}
}

// WithSeq sets the server sequence number
func (b *PostBuilder) WithSeq(seq int64) *PostBuilder {
	b.post.Seq = seq
	return b
}

// Build returns the constructed Post
func (b *PostBuilder) Build() *models.Post {
	p := b.post
	return &p
}

// CreatePosts signs count distinct create_post signals by author
func CreatePosts(author *Author, count int) []signal.Signal {
	base := time.Now().UnixMilli()
	posts := make([]signal.Signal, count)
	for i := range posts {
		posts[i] = NewCreatePostBuilder(author).
			WithTimestamp(base + int64(i)).
			WithText(fmt.Sprintf("post number %d", i+1)).
			Build()
	}
	return posts
}

// MustFileDigest returns the hex SHA-256 of a file or panics
func MustFileDigest(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("fixtures: read %s: %v", path, err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// WriteFile writes data to dir/name and returns the path
func WriteFile(dir, name string, data []byte) string {
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, data, 0600); err != nil {
		panic(fmt.Sprintf("fixtures: write %s: %v", p, err))
	}
	return p
}
