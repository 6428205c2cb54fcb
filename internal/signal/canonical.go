package signal

import (
	"bytes"
	"strconv"
)

const hexDigits = "0123456789abcdef"

// CanonicalBytes returns the byte-exact JSON text that is hashed and signed.
// The output matches ECMAScript JSON.stringify applied to the same positional
// arrays: no insignificant whitespace, short escapes for the usual control
// characters, \u00xx for the rest of C0, and every other code point literal.
func CanonicalBytes(p Payload) []byte {
	var buf bytes.Buffer
	writePayload(&buf, p)
	return buf.Bytes()
}

// MarshalJSON encodes the payload canonically.
func (p Payload) MarshalJSON() ([]byte, error) {
	return CanonicalBytes(p), nil
}

// MarshalJSON encodes the signal as [payload, signature].
func (s Signal) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	writePayload(&buf, s.Payload)
	buf.WriteByte(',')
	writeString(&buf, s.Signature)
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// EncodeFooter returns the canonical JSON text of a footer.
func EncodeFooter(footer []FooterEntry) []byte {
	var buf bytes.Buffer
	writeFooter(&buf, footer)
	return buf.Bytes()
}

func writePayload(buf *bytes.Buffer, p Payload) {
	buf.WriteByte('[')
	buf.WriteString(strconv.Itoa(p.Version))
	buf.WriteByte(',')

	buf.WriteByte('[')
	writeString(buf, p.Header.Host)
	buf.WriteByte(',')
	writeString(buf, p.Header.Author)
	buf.WriteByte(',')
	buf.WriteString(strconv.FormatInt(p.Header.Timestamp, 10))
	buf.WriteByte(',')
	writeString(buf, string(p.Header.Type))
	buf.WriteByte(']')
	buf.WriteByte(',')

	switch b := p.Body.(type) {
	case CreatePostBody:
		writeString(buf, b.Text)
	case DeletePostBody:
		buf.WriteByte('[')
		writeString(buf, b.TargetPostID)
		buf.WriteByte(']')
	default:
		buf.WriteString("null")
	}
	buf.WriteByte(',')

	writeFooter(buf, p.Footer)
	buf.WriteByte(']')
}

func writeFooter(buf *bytes.Buffer, footer []FooterEntry) {
	buf.WriteByte('[')
	for i, e := range footer {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('[')
		writeString(buf, e.Kind)
		buf.WriteByte(',')
		writeString(buf, e.DeclaredMIME)
		buf.WriteByte(',')
		writeString(buf, e.Hash)
		buf.WriteByte(']')
	}
	buf.WriteByte(']')
}

// writeString quotes s the way JSON.stringify does. Invalid UTF-8 is written
// as U+FFFD, which is what a browser TextEncoder produces for lone surrogates.
func writeString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\b':
			buf.WriteString(`\b`)
		case '\f':
			buf.WriteString(`\f`)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			if r < 0x20 {
				buf.WriteString(`\u00`)
				buf.WriteByte(hexDigits[r>>4])
				buf.WriteByte(hexDigits[r&0xf])
				continue
			}
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
}
