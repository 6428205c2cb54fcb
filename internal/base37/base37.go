// Package base37 implements the leading-zero-preserving text encoding used for
// author identities and other raw byte strings exposed in URLs.
//
// The alphabet is the 36 lowercase alphanumerics followed by '_'. Each leading
// zero byte is written as one '0' symbol; the remainder is a big-endian
// base-37 number. Decoding is case-insensitive.
package base37

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz_"

const leader = '0'

var (
	// ErrInvalidCharacter is returned by Decode when the input contains a
	// character outside the alphabet.
	ErrInvalidCharacter = errors.New("invalid base37 character")

	radix   = big.NewInt(int64(len(alphabet)))
	indexOf [256]int8
)

func init() {
	for i := range indexOf {
		indexOf[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		indexOf[alphabet[i]] = int8(i)
	}
}

// Encode returns the base37 form of b. An empty slice encodes to "".
func Encode(b []byte) string {
	if len(b) == 0 {
		return ""
	}

	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}

	value := new(big.Int).SetBytes(b[zeros:])
	mod := new(big.Int)

	var digits []byte
	for value.Sign() > 0 {
		value.QuoRem(value, radix, mod)
		digits = append(digits, alphabet[mod.Int64()])
	}

	var sb strings.Builder
	sb.Grow(zeros + len(digits))
	for i := 0; i < zeros; i++ {
		sb.WriteByte(leader)
	}
	for i := len(digits) - 1; i >= 0; i-- {
		sb.WriteByte(digits[i])
	}
	return sb.String()
}

// Decode parses s back into bytes. Upper-case letters are accepted.
func Decode(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}

	input := strings.ToLower(s)

	zeros := 0
	for zeros < len(input) && input[zeros] == leader {
		zeros++
	}

	value := new(big.Int)
	digit := new(big.Int)
	for i := zeros; i < len(input); i++ {
		idx := indexOf[input[i]]
		if idx < 0 {
			return nil, fmt.Errorf("%w: %q at offset %d", ErrInvalidCharacter, input[i], i)
		}
		value.Mul(value, radix)
		value.Add(value, digit.SetInt64(int64(idx)))
	}

	tail := value.Bytes()
	out := make([]byte, zeros+len(tail))
	copy(out[zeros:], tail)
	return out, nil
}

// IsCanonical reports whether s decodes and re-encodes to exactly s, i.e. it
// is lowercase and free of alphabet errors.
func IsCanonical(s string) bool {
	b, err := Decode(s)
	if err != nil {
		return false
	}
	return Encode(b) == s
}

// Normalize decodes s and re-encodes it, folding case.
func Normalize(s string) (string, error) {
	b, err := Decode(s)
	if err != nil {
		return "", err
	}
	return Encode(b), nil
}
