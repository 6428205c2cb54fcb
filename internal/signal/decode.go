package signal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/welldanyogia/ephemera-backend/internal/validator"
)

// ErrMalformed is returned for any signal that does not have the exact
// positional shape of a known payload type.
var ErrMalformed = errors.New("malformed signal")

// maxSafeInteger is the largest integer a JavaScript client can represent
// exactly, and therefore sign faithfully.
const maxSafeInteger = 1<<53 - 1

// Decode parses a signal of any known type.
func Decode(data []byte) (Signal, error) {
	elems, err := decodeArray(data, 2)
	if err != nil {
		return Signal{}, malformed("signal: %v", err)
	}

	payload, err := decodePayload(elems[0])
	if err != nil {
		return Signal{}, err
	}

	sig, err := decodeString(elems[1])
	if err != nil {
		return Signal{}, malformed("signature: %v", err)
	}
	if !validator.IsLowerHex(sig, 128) {
		return Signal{}, malformed("signature must be 128 lowercase hex characters")
	}

	return Signal{Payload: payload, Signature: sig}, nil
}

// DecodeCreatePost parses a signal and requires it to be a create_post.
func DecodeCreatePost(data []byte) (Signal, error) {
	return decodeTyped(data, TypeCreatePost)
}

// DecodeDeletePost parses a signal and requires it to be a delete_post.
func DecodeDeletePost(data []byte) (Signal, error) {
	return decodeTyped(data, TypeDeletePost)
}

// UnmarshalJSON implements json.Unmarshaler with the strict decoder.
func (s *Signal) UnmarshalJSON(data []byte) error {
	decoded, err := Decode(data)
	if err != nil {
		return err
	}
	*s = decoded
	return nil
}

// DecodeFooter parses a stored canonical footer.
func DecodeFooter(data []byte) ([]FooterEntry, error) {
	return decodeFooter(data)
}

func decodeTyped(data []byte, want Type) (Signal, error) {
	s, err := Decode(data)
	if err != nil {
		return Signal{}, err
	}
	if s.Payload.Header.Type != want {
		return Signal{}, malformed("expected %s, got %s", want, s.Payload.Header.Type)
	}
	return s, nil
}

func decodePayload(data []byte) (Payload, error) {
	elems, err := decodeArray(data, 4)
	if err != nil {
		return Payload{}, malformed("payload: %v", err)
	}

	version, err := decodeInteger(elems[0])
	if err != nil {
		return Payload{}, malformed("version: %v", err)
	}
	if version != Version0 {
		return Payload{}, malformed("unsupported version %d", version)
	}

	header, err := decodeHeader(elems[1])
	if err != nil {
		return Payload{}, err
	}

	p := Payload{Version: int(version), Header: header}

	switch header.Type {
	case TypeCreatePost:
		text, err := decodeString(elems[2])
		if err != nil {
			return Payload{}, malformed("body: %v", err)
		}
		if err := validator.ValidatePostContent(text); err != nil {
			return Payload{}, malformed("body: %v", err)
		}
		footer, err := decodeFooter(elems[3])
		if err != nil {
			return Payload{}, err
		}
		p.Body = CreatePostBody{Text: text}
		p.Footer = footer

	case TypeDeletePost:
		body, err := decodeArray(elems[2], 1)
		if err != nil {
			return Payload{}, malformed("body: %v", err)
		}
		target, err := decodeString(body[0])
		if err != nil {
			return Payload{}, malformed("target post id: %v", err)
		}
		if !validator.IsContentHash(target) {
			return Payload{}, malformed("target post id must be 64 lowercase hex characters")
		}
		if _, err := decodeArray(elems[3], 0); err != nil {
			return Payload{}, malformed("delete_post footer must be empty")
		}
		p.Body = DeletePostBody{TargetPostID: target}
		p.Footer = []FooterEntry{}
	}

	return p, nil
}

func decodeHeader(data []byte) (Header, error) {
	elems, err := decodeArray(data, 4)
	if err != nil {
		return Header{}, malformed("header: %v", err)
	}

	host, err := decodeString(elems[0])
	if err != nil {
		return Header{}, malformed("host: %v", err)
	}
	author, err := decodeString(elems[1])
	if err != nil {
		return Header{}, malformed("author: %v", err)
	}
	ts, err := decodeInteger(elems[2])
	if err != nil {
		return Header{}, malformed("timestamp: %v", err)
	}
	typ, err := decodeString(elems[3])
	if err != nil {
		return Header{}, malformed("type: %v", err)
	}

	switch Type(typ) {
	case TypeCreatePost, TypeDeletePost:
	default:
		return Header{}, malformed("unknown payload type %q", typ)
	}

	return Header{Host: host, Author: author, Timestamp: ts, Type: Type(typ)}, nil
}

func decodeFooter(data []byte) ([]FooterEntry, error) {
	var raw []json.RawMessage
	if err := decodeJSONArray(data, &raw); err != nil {
		return nil, malformed("footer: %v", err)
	}

	entries := make([]FooterEntry, 0, len(raw))
	for i, item := range raw {
		fields, err := decodeArray(item, -1)
		if err != nil || len(fields) == 0 {
			return nil, malformed("footer[%d]: not a tagged entry", i)
		}
		kind, err := decodeString(fields[0])
		if err != nil {
			return nil, malformed("footer[%d] kind: %v", i, err)
		}

		switch kind {
		case FooterKindAttachment:
			if len(fields) != 3 {
				return nil, malformed("footer[%d]: attachment entry needs 3 elements, got %d", i, len(fields))
			}
			mime, err := decodeString(fields[1])
			if err != nil {
				return nil, malformed("footer[%d] type: %v", i, err)
			}
			hash, err := decodeString(fields[2])
			if err != nil {
				return nil, malformed("footer[%d] hash: %v", i, err)
			}
			if !validator.IsContentHash(hash) {
				return nil, malformed("footer[%d]: hash must be 64 lowercase hex characters", i)
			}
			entries = append(entries, AttachmentEntry(mime, hash))
		default:
			return nil, malformed("footer[%d]: unknown entry kind %q", i, kind)
		}
	}
	return entries, nil
}

// decodeArray parses a JSON array. A non-negative n requires exactly n
// elements.
func decodeArray(data []byte, n int) ([]json.RawMessage, error) {
	var elems []json.RawMessage
	if err := decodeJSONArray(data, &elems); err != nil {
		return nil, err
	}
	if n >= 0 && len(elems) != n {
		return nil, fmt.Errorf("expected %d elements, got %d", n, len(elems))
	}
	return elems, nil
}

func decodeJSONArray(data []byte, out *[]json.RawMessage) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return errors.New("expected array")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return err
	}
	for i := range *out {
		(*out)[i] = bytes.TrimSpace((*out)[i])
	}
	return nil
}

// decodeString parses a JSON string. encoding/json turns invalid UTF-8 and
// unpaired surrogate escapes into U+FFFD, so both are rejected here.
func decodeString(data []byte) (string, error) {
	if len(data) == 0 || data[0] != '"' {
		return "", errors.New("expected string")
	}
	if !utf8.Valid(data) {
		return "", errors.New("invalid UTF-8")
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", err
	}
	if err := checkSurrogates(data); err != nil {
		return "", err
	}
	return s, nil
}

// checkSurrogates requires every \u escape of a surrogate half to be a high
// surrogate followed directly by a low one. raw must already be a valid
// JSON string.
func checkSurrogates(raw []byte) error {
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' {
			continue
		}
		i++
		if raw[i] != 'u' {
			continue
		}
		r := escapedRune(raw[i+1 : i+5])
		i += 4
		switch {
		case r >= 0xDC00 && r <= 0xDFFF:
			return fmt.Errorf("unpaired surrogate \\u%04x", r)
		case r >= 0xD800 && r <= 0xDBFF:
			if i+6 >= len(raw) || raw[i+1] != '\\' || raw[i+2] != 'u' {
				return fmt.Errorf("unpaired surrogate \\u%04x", r)
			}
			if low := escapedRune(raw[i+3 : i+7]); low < 0xDC00 || low > 0xDFFF {
				return fmt.Errorf("unpaired surrogate \\u%04x", r)
			}
			i += 6
		}
	}
	return nil
}

func escapedRune(hex []byte) rune {
	v, _ := strconv.ParseUint(string(hex), 16, 16)
	return rune(v)
}

// decodeInteger accepts only plain non-negative decimal integers, the form
// JSON.stringify emits for safe integers.
func decodeInteger(data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, errors.New("expected integer")
	}
	if len(data) > 1 && data[0] == '0' {
		return 0, errors.New("leading zero")
	}
	for _, c := range data {
		if c < '0' || c > '9' {
			return 0, errors.New("expected non-negative integer")
		}
	}
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil || v > maxSafeInteger {
		return 0, errors.New("integer out of range")
	}
	return v, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
