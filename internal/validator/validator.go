// Package validator provides input validation and sanitization functions
// shared by the signal decoder, configuration, and HTTP handlers.
package validator

import (
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Validation errors
var (
	ErrInvalidHost      = errors.New("invalid host format")
	ErrInvalidDomain    = errors.New("invalid domain format")
	ErrInputTooLong     = errors.New("input exceeds maximum length")
	ErrInvalidCharacter = errors.New("input contains invalid characters")
	ErrNotNormalized    = errors.New("input is not NFC normalized")
	ErrEmptyInput       = errors.New("input cannot be empty")
	ErrInvalidLimit     = errors.New("limit must be at least 1")
	ErrInvalidCursor    = errors.New("invalid cursor")
)

// Regex patterns for validation
var (
	// Domain regex: allows lowercase alphanumeric, hyphens, and dots
	// Must start and end with alphanumeric, labels max 63 chars
	domainRegex = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)

	// Post text may contain LF but no other C0 control, DEL, or C1 control.
	forbiddenPostRegex = regexp.MustCompile(`[\x00-\x09\x0b-\x1f\x7f\x{0080}-\x{009f}]`)
)

// MaxPostLength is the weighted length ceiling for post text.
const MaxPostLength = 280

// ValidateDomain validates domain name format against DNS standards.
// Returns nil if valid, or an appropriate error.
func ValidateDomain(domain string) error {
	domain = strings.TrimSpace(strings.ToLower(domain))

	if domain == "" {
		return ErrEmptyInput
	}

	// RFC 1035 specifies max domain length of 253 characters
	if len(domain) > 253 {
		return ErrInputTooLong
	}

	if !domainRegex.MatchString(domain) {
		return ErrInvalidDomain
	}

	return nil
}

// ValidateHost checks that host is a bare "hostname[:port]" with no scheme,
// path, query, fragment or userinfo. IP literals are accepted, IPv6 in
// brackets.
func ValidateHost(host string) error {
	if host == "" {
		return ErrEmptyInput
	}
	if strings.ContainsAny(host, "/?#@\\ ") {
		return ErrInvalidHost
	}

	name, port := host, ""
	if strings.HasPrefix(host, "[") {
		end := strings.Index(host, "]")
		if end < 0 {
			return ErrInvalidHost
		}
		name = host[1:end]
		rest := host[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return ErrInvalidHost
			}
			port = rest[1:]
		}
		if ip := net.ParseIP(name); ip == nil || ip.To4() != nil {
			return ErrInvalidHost
		}
	} else {
		if i := strings.LastIndex(host, ":"); i >= 0 {
			name, port = host[:i], host[i+1:]
			if strings.Contains(name, ":") {
				return ErrInvalidHost
			}
		}
		if net.ParseIP(name) == nil {
			if err := ValidateDomain(name); err != nil || name != strings.ToLower(name) {
				return ErrInvalidHost
			}
		}
	}

	if port != "" || strings.HasSuffix(host, ":") {
		n, err := strconv.Atoi(port)
		if err != nil || n < 1 || n > 65535 || strconv.Itoa(n) != port {
			return ErrInvalidHost
		}
	}

	return nil
}

// WeightedLength counts code points above U+00FF twice.
func WeightedLength(s string) int {
	n := 0
	for _, r := range s {
		if r > 0xFF {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// ValidatePostContent enforces the rules every post text must satisfy:
// weighted length within MaxPostLength, no forbidden control characters,
// and already in Unicode NFC form.
func ValidatePostContent(text string) error {
	if WeightedLength(text) > MaxPostLength {
		return ErrInputTooLong
	}
	if !utf8.ValidString(text) || forbiddenPostRegex.MatchString(text) {
		return ErrInvalidCharacter
	}
	if !norm.NFC.IsNormalString(text) {
		return ErrNotNormalized
	}
	return nil
}

// IsLowerHex reports whether s is exactly n lowercase hexadecimal digits.
func IsLowerHex(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// IsContentHash reports whether s is a hex SHA-256 digest.
func IsContentHash(s string) bool {
	return IsLowerHex(s, 64)
}

// Pagination constants
const (
	DefaultLimit = 16
	MaxLimit     = 128
)

// ValidateLimit rejects limits below 1 and clamps the rest to MaxLimit.
func ValidateLimit(limit int) (int, error) {
	if limit < 1 {
		return 0, ErrInvalidLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit, nil
}

// ParseCursor parses a pagination cursor. The empty string means "from the
// newest post".
func ParseCursor(cursor string) (int64, bool, error) {
	if cursor == "" {
		return 0, false, nil
	}
	v, err := strconv.ParseInt(cursor, 10, 64)
	if err != nil || v < 0 {
		return 0, false, ErrInvalidCursor
	}
	return v, true, nil
}

// SanitizeFilename removes dangerous characters from filename.
// Prevents path traversal and removes control characters.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	filename = SanitizeString(filename, 255)

	if filename == "" {
		return "unnamed"
	}
	return filename
}

// SanitizeString removes potentially dangerous characters and enforces length limits.
// Removes control characters and trims whitespace.
func SanitizeString(input string, maxLength int) string {
	// Remove control characters (ASCII 0-31 and 127)
	input = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, input)

	input = strings.TrimSpace(input)

	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}

	return input
}
