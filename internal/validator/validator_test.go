package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		name    string
		domain  string
		wantErr error
	}{
		// Valid domains
		{"valid simple", "example.com", nil},
		{"valid subdomain", "social.example.com", nil},
		{"valid with hyphen", "my-domain.com", nil},
		{"valid single label", "localhost", nil},

		// Invalid domains
		{"empty string", "", ErrEmptyInput},
		{"starts with hyphen", "-example.com", ErrInvalidDomain},
		{"double dot", "example..com", ErrInvalidDomain},
		{"contains underscore", "my_domain.com", ErrInvalidDomain},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDomain(tt.domain)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateDomain_TooLong(t *testing.T) {
	err := ValidateDomain(strings.Repeat("a", 254))
	assert.ErrorIs(t, err, ErrInputTooLong)
}

func TestValidateHost(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		wantErr error
	}{
		// Valid hosts
		{"bare hostname", "example.com", nil},
		{"hostname with port", "example.com:8080", nil},
		{"localhost with port", "localhost:3000", nil},
		{"ipv4", "127.0.0.1", nil},
		{"ipv4 with port", "127.0.0.1:443", nil},
		{"ipv6 bracketed", "[::1]", nil},
		{"ipv6 with port", "[::1]:8443", nil},

		// Invalid hosts
		{"empty", "", ErrEmptyInput},
		{"with scheme", "https://example.com", ErrInvalidHost},
		{"with path", "example.com/feed", ErrInvalidHost},
		{"with query", "example.com?x=1", ErrInvalidHost},
		{"with fragment", "example.com#top", ErrInvalidHost},
		{"with userinfo", "user@example.com", ErrInvalidHost},
		{"trailing colon", "example.com:", ErrInvalidHost},
		{"port zero", "example.com:0", ErrInvalidHost},
		{"port too large", "example.com:70000", ErrInvalidHost},
		{"port leading zero", "example.com:0443", ErrInvalidHost},
		{"upper case", "Example.com", ErrInvalidHost},
		{"bare ipv6", "::1", ErrInvalidHost},
		{"unterminated bracket", "[::1", ErrInvalidHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHost(tt.host)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWeightedLength(t *testing.T) {
	assert.Equal(t, 0, WeightedLength(""))
	assert.Equal(t, 5, WeightedLength("hello"))
	assert.Equal(t, 1, WeightedLength("é"))
	assert.Equal(t, 4, WeightedLength("こん"))
	assert.Equal(t, 2, WeightedLength("😀"))
}

func TestValidatePostContent(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		// Valid posts
		{"empty", "", nil},
		{"ascii", "hello, world", nil},
		{"newline allowed", "line one\nline two", nil},
		{"max ascii length", strings.Repeat("a", MaxPostLength), nil},
		{"max wide length", strings.Repeat("あ", MaxPostLength/2), nil},
		{"latin1 counts once", strings.Repeat("é", MaxPostLength), nil},

		// Invalid posts
		{"ascii too long", strings.Repeat("a", MaxPostLength+1), ErrInputTooLong},
		{"wide too long", strings.Repeat("あ", MaxPostLength/2) + "a", ErrInputTooLong},
		{"nul", "a\x00b", ErrInvalidCharacter},
		{"tab", "a\tb", ErrInvalidCharacter},
		{"carriage return", "a\r\nb", ErrInvalidCharacter},
		{"delete", "a\x7fb", ErrInvalidCharacter},
		{"c1 control", "a\u0085b", ErrInvalidCharacter},
		{"decomposed", "e\u0301", ErrNotNormalized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePostContent(tt.text)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsContentHash(t *testing.T) {
	assert.True(t, IsContentHash(strings.Repeat("ab", 32)))
	assert.False(t, IsContentHash(strings.Repeat("AB", 32)))
	assert.False(t, IsContentHash(strings.Repeat("a", 63)))
	assert.False(t, IsContentHash("../../etc/passwd"))
	assert.False(t, IsContentHash(strings.Repeat("g", 64)))
}

func TestValidateLimit(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected int
		wantErr  error
	}{
		{"within range", 10, 10, nil},
		{"minimum", 1, 1, nil},
		{"exactly max", MaxLimit, MaxLimit, nil},
		{"clamped to max", 500, MaxLimit, nil},
		{"zero rejected", 0, 0, ErrInvalidLimit},
		{"negative rejected", -3, 0, ErrInvalidLimit},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, err := ValidateLimit(tt.input)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, limit)
		})
	}
}

func TestParseCursor(t *testing.T) {
	v, ok, err := ParseCursor("")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, v)

	v, ok, err = ParseCursor("42")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(42), v)

	for _, bad := range []string{"abc", "-1", "1.5", "9999999999999999999999"} {
		_, _, err = ParseCursor(bad)
		assert.ErrorIs(t, err, ErrInvalidCursor, bad)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"normal filename", "photo.png", "photo.png"},
		{"with spaces", "my photo.png", "my photo.png"},
		{"path traversal dots", "../../../etc/passwd", "______etc_passwd"},
		{"forward slash", "path/to/file.png", "path_to_file.png"},
		{"backslash", "path\\to\\file.png", "path_to_file.png"},
		{"control chars", "file\x00name.png", "filename.png"},
		{"empty string", "", "unnamed"},
		{"whitespace only", "   ", "unnamed"},
		{"double dots", "file..name", "file_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_LongFilename(t *testing.T) {
	result := SanitizeFilename(strings.Repeat("a", 300) + ".png")
	assert.LessOrEqual(t, len(result), 255)
}

func TestSanitizeString(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		maxLength int
		expected  string
	}{
		{"normal string", "hello world", 0, "hello world"},
		{"with control chars", "hello\x00world", 0, "helloworld"},
		{"with newline", "hello\nworld", 0, "helloworld"},
		{"trim whitespace", "  hello  ", 0, "hello"},
		{"enforce max length", "hello world", 5, "hello"},
		{"empty string", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeString(tt.input, tt.maxLength))
		})
	}
}
