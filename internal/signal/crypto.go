package signal

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/welldanyogia/ephemera-backend/internal/base37"
)

// Digest hashes the canonical encoding of p.
func Digest(p Payload) [sha256.Size]byte {
	return sha256.Sum256(CanonicalBytes(p))
}

// DigestHex returns the hex digest of p. It doubles as the post id.
func DigestHex(p Payload) string {
	d := Digest(p)
	return hex.EncodeToString(d[:])
}

// Sign signs the digest of p with priv.
func Sign(p Payload, priv ed25519.PrivateKey) (Signal, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return Signal{}, fmt.Errorf("private key has %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
	}
	d := Digest(p)
	sig := ed25519.Sign(priv, d[:])
	return Signal{Payload: p, Signature: hex.EncodeToString(sig)}, nil
}

// Verify reports whether s carries a valid signature by the key encoded in
// its author field. It never panics; any decoding problem yields false.
func Verify(s Signal) bool {
	pub, ok := AuthorKey(s.Payload.Header.Author)
	if !ok {
		return false
	}

	sig, err := hex.DecodeString(s.Signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}

	d := Digest(s.Payload)
	return ed25519.Verify(pub, d[:], sig)
}

// AuthorKey decodes a canonical base37 author id into a public key. It
// fails for non-canonical spellings, wrong lengths, and byte strings that
// are not points on the curve.
func AuthorKey(author string) (ed25519.PublicKey, bool) {
	if !base37.IsCanonical(author) {
		return nil, false
	}
	raw, err := base37.Decode(author)
	if err != nil || !IsValidPublicKey(raw) {
		return nil, false
	}
	return ed25519.PublicKey(raw), true
}

// IsValidPublicKey reports whether b is a 32-byte encoding of a point on
// edwards25519.
func IsValidPublicKey(b []byte) bool {
	if len(b) != ed25519.PublicKeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}

// AuthorID returns the base37 identity for pub.
func AuthorID(pub ed25519.PublicKey) string {
	return base37.Encode(pub)
}
