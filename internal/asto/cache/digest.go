package cache

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/opencontainers/go-digest"

	"github.com/artipie/artipie/internal/asto"
)

// ErrUnknownAlgorithm is returned for digest names without an implementation.
var ErrUnknownAlgorithm = errors.New("cache: unknown digest algorithm")

// Algorithm is a conventional digest name such as "SHA-256".
type Algorithm string

const (
	MD5    Algorithm = "MD5"
	SHA1   Algorithm = "SHA-1"
	SHA256 Algorithm = "SHA-256"
	SHA384 Algorithm = "SHA-384"
	SHA512 Algorithm = "SHA-512"
	// XXH64 is non-cryptographic; use it for corruption checks only.
	XXH64 Algorithm = "XXH64"
)

var algorithms = map[string]Algorithm{
	"md5":    MD5,
	"sha1":   SHA1,
	"sha256": SHA256,
	"sha384": SHA384,
	"sha512": SHA512,
	"xxh64":  XXH64,
}

// ParseAlgorithm resolves name case-insensitively; "sha256", "SHA-256" and
// "Sha256" all map to SHA256.
func ParseAlgorithm(name string) (Algorithm, error) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	alg, ok := algorithms[normalized]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, name)
	}
	return alg, nil
}

// NewHash returns a fresh hash for alg.
func NewHash(alg Algorithm) (hash.Hash, error) {
	parsed, err := ParseAlgorithm(string(alg))
	if err != nil {
		return nil, err
	}
	switch parsed {
	case MD5:
		return md5.New(), nil
	case SHA1:
		return sha1.New(), nil
	case SHA256:
		return sha256.New(), nil
	case SHA384:
		return sha512.New384(), nil
	case SHA512:
		return sha512.New(), nil
	case XXH64:
		return xxhash.New(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, alg)
}

// DigestOf reads content once and returns its digest.
func DigestOf(content asto.Content, alg Algorithm) ([]byte, error) {
	h, err := NewHash(alg)
	if err != nil {
		return nil, err
	}
	r, err := content.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if _, err := io.Copy(h, r); err != nil {
		return nil, fmt.Errorf("digest content: %w", err)
	}
	return h.Sum(nil), nil
}

// DigestHex is DigestOf encoded as lower-case hex.
func DigestHex(content asto.Content, alg Algorithm) (string, error) {
	sum, err := DigestOf(content, alg)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// FromOCIDigest splits an OCI digest reference ("sha256:<hex>") into an
// algorithm and the expected digest bytes.
func FromOCIDigest(ref string) (Algorithm, []byte, error) {
	d, err := digest.Parse(ref)
	if err != nil {
		return "", nil, fmt.Errorf("parse digest %q: %w", ref, err)
	}
	alg, err := ParseAlgorithm(d.Algorithm().String())
	if err != nil {
		return "", nil, err
	}
	expected, err := hex.DecodeString(d.Encoded())
	if err != nil {
		return "", nil, fmt.Errorf("decode digest %q: %w", ref, err)
	}
	return alg, expected, nil
}

// Verification builds a DigestVerification control from a hex encoded digest.
func Verification(alg Algorithm, hexDigest string) (Control, error) {
	parsed, err := ParseAlgorithm(string(alg))
	if err != nil {
		return nil, err
	}
	expected, err := hex.DecodeString(strings.TrimSpace(hexDigest))
	if err != nil {
		return nil, fmt.Errorf("decode %s digest: %w", parsed, err)
	}
	return DigestVerification(parsed, expected), nil
}
