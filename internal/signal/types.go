// Package signal defines the self-authenticating message format exchanged
// with clients: a positional Payload and a hex Ed25519 signature over the
// SHA-256 digest of its canonical JSON encoding.
package signal

import "github.com/samber/lo"

// Version0 is the only payload version accepted.
const Version0 = 0

// Type discriminates payload kinds.
type Type string

const (
	TypeCreatePost Type = "create_post"
	TypeDeletePost Type = "delete_post"
)

// FooterKindAttachment marks a footer entry that references an uploaded file.
const FooterKindAttachment = "attachment"

// Header is the second element of a Payload.
type Header struct {
	Host      string
	Author    string
	Timestamp int64
	Type      Type
}

// Body is implemented by CreatePostBody and DeletePostBody.
type Body interface {
	bodyType() Type
}

// CreatePostBody carries the post text.
type CreatePostBody struct {
	Text string
}

func (CreatePostBody) bodyType() Type { return TypeCreatePost }

// DeletePostBody names the post to remove.
type DeletePostBody struct {
	TargetPostID string
}

func (DeletePostBody) bodyType() Type { return TypeDeletePost }

// FooterEntry is a typed footer element. Only attachment entries exist today.
type FooterEntry struct {
	Kind         string
	DeclaredMIME string
	Hash         string
}

// Payload is the signed tuple (version, header, body, footer).
type Payload struct {
	Version int
	Header  Header
	Body    Body
	Footer  []FooterEntry
}

// Signal is a payload paired with its hex-encoded signature.
type Signal struct {
	Payload   Payload
	Signature string
}

// NewCreatePost builds a create_post payload.
func NewCreatePost(host, author string, timestamp int64, text string, footer []FooterEntry) Payload {
	if footer == nil {
		footer = []FooterEntry{}
	}
	return Payload{
		Version: Version0,
		Header:  Header{Host: host, Author: author, Timestamp: timestamp, Type: TypeCreatePost},
		Body:    CreatePostBody{Text: text},
		Footer:  footer,
	}
}

// NewDeletePost builds a delete_post payload targeting postID.
func NewDeletePost(host, author string, timestamp int64, postID string) Payload {
	return Payload{
		Version: Version0,
		Header:  Header{Host: host, Author: author, Timestamp: timestamp, Type: TypeDeletePost},
		Body:    DeletePostBody{TargetPostID: postID},
		Footer:  []FooterEntry{},
	}
}

// AttachmentEntry returns a footer entry declaring an attachment.
func AttachmentEntry(mime, hash string) FooterEntry {
	return FooterEntry{Kind: FooterKindAttachment, DeclaredMIME: mime, Hash: hash}
}

// AttachmentHashes returns the hashes of all attachment entries in footer
// order, duplicates included.
func (p Payload) AttachmentHashes() []string {
	return lo.FilterMap(p.Footer, func(e FooterEntry, _ int) (string, bool) {
		return e.Hash, e.Kind == FooterKindAttachment
	})
}

// Text returns the post text for create_post payloads and "" otherwise.
func (p Payload) Text() string {
	if b, ok := p.Body.(CreatePostBody); ok {
		return b.Text
	}
	return ""
}

// TargetPostID returns the delete target for delete_post payloads.
func (p Payload) TargetPostID() string {
	if b, ok := p.Body.(DeletePostBody); ok {
		return b.TargetPostID
	}
	return ""
}
