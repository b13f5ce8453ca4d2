// Package checksum computes content fingerprints in the prefixed
// "algorithm:hexvalue" format (e.g. "sha256:c0ffee...").
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Algorithm names a supported fingerprint algorithm.
type Algorithm string

const (
	SHA256  Algorithm = "sha256"
	Blake2b Algorithm = "blake2b"
)

// Default is used when no algorithm is configured.
const Default = SHA256

// ParseAlgorithm validates an algorithm name; empty selects Default.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "", SHA256:
		return SHA256, nil
	case Blake2b:
		return Blake2b, nil
	default:
		return "", fmt.Errorf("unknown checksum algorithm: %s", name)
	}
}

func newHash(algo Algorithm) (hash.Hash, error) {
	switch algo {
	case SHA256, "":
		return sha256.New(), nil
	case Blake2b:
		return blake2b.New256(nil)
	default:
		return nil, fmt.Errorf("unknown checksum algorithm: %s", algo)
	}
}

// Digest is an io.Writer that accumulates a fingerprint.
type Digest struct {
	algo Algorithm
	h    hash.Hash
	n    int64
}

// NewDigest returns a Digest for algo.
func NewDigest(algo Algorithm) (*Digest, error) {
	if algo == "" {
		algo = Default
	}
	h, err := newHash(algo)
	if err != nil {
		return nil, err
	}
	return &Digest{algo: algo, h: h}, nil
}

func (d *Digest) Write(p []byte) (int, error) {
	n, err := d.h.Write(p)
	d.n += int64(n)
	return n, err
}

// Size is the number of bytes written so far.
func (d *Digest) Size() int64 { return d.n }

// Fingerprint returns the prefixed fingerprint of everything written.
func (d *Digest) Fingerprint() string {
	return string(d.algo) + ":" + hex.EncodeToString(d.h.Sum(nil))
}

// Bytes fingerprints data.
func Bytes(data []byte, algo Algorithm) (string, error) {
	d, err := NewDigest(algo)
	if err != nil {
		return "", err
	}
	d.Write(data)
	return d.Fingerprint(), nil
}

// Reader fingerprints everything read from r and returns the byte count.
func Reader(r io.Reader, algo Algorithm) (string, int64, error) {
	d, err := NewDigest(algo)
	if err != nil {
		return "", 0, err
	}
	if _, err := io.Copy(d, r); err != nil {
		return "", 0, err
	}
	return d.Fingerprint(), d.Size(), nil
}

// File fingerprints the file at path.
func File(path string, algo Algorithm) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return Reader(f, algo)
}

// Parse splits a fingerprint into its algorithm and hex value.
func Parse(fingerprint string) (Algorithm, string, error) {
	parts := strings.SplitN(fingerprint, ":", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid fingerprint format: %q", fingerprint)
	}
	algo, err := ParseAlgorithm(parts[0])
	if err != nil {
		return "", "", err
	}
	if _, err := hex.DecodeString(parts[1]); err != nil {
		return "", "", fmt.Errorf("invalid fingerprint value: %w", err)
	}
	return algo, parts[1], nil
}

// Match fingerprints data with the algorithm of expected and compares.
func Match(data []byte, expected string) (bool, error) {
	algo, _, err := Parse(expected)
	if err != nil {
		return false, err
	}
	actual, err := Bytes(data, algo)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}

// MatchFile is Match for a file on disk.
func MatchFile(path, expected string) (bool, error) {
	algo, _, err := Parse(expected)
	if err != nil {
		return false, err
	}
	actual, _, err := File(path, algo)
	if err != nil {
		return false, err
	}
	return actual == expected, nil
}
