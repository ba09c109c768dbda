// internal/blob/store.go
package blob

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"epoch/internal/fsutil"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
)

var ErrNotFound = errors.New("blob not found")

// Blobs at or above this size are stored zstd-compressed. Fingerprints are
// always computed over the uncompressed content.
const compressMin = 1024

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// shouldCompress keeps the on-disk invariant that a plain stored blob never
// begins with the zstd frame magic: content that already starts with the
// magic is compressed no matter how small it is, so the magic on disk
// always marks a real frame.
func shouldCompress(content []byte) bool {
	return len(content) >= compressMin || bytes.HasPrefix(content, zstdMagic)
}

var (
	zenc *zstd.Encoder
	zdec *zstd.Decoder
)

func init() {
	zenc, _ = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	zdec, _ = zstd.NewReader(nil,
		zstd.WithDecoderConcurrency(1),
	)
}

// Store keeps immutable blobs in a single directory, one file per
// fingerprint. Blobs are write-once: an existing blob is never rewritten.
type Store struct {
	dir   string
	cache *lru.Cache[string, []byte]
}

// NewStore opens (creating if needed) a blob directory.
func NewStore(dir string, cacheSize int) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating blob cache: %w", err)
	}
	return &Store{dir: dir, cache: cache}, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) path(fingerprint string) string {
	return filepath.Join(s.dir, fingerprint)
}

// Put persists the content of the file at workPath as the blob for
// fingerprint. If the blob already exists the write is skipped.
func (s *Store) Put(workPath, fingerprint string) error {
	if s.Exists(fingerprint) {
		return nil
	}

	content, err := os.ReadFile(workPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", workPath, err)
	}

	data := content
	if shouldCompress(content) {
		data = zenc.EncodeAll(content, nil)
	}
	if err := os.WriteFile(s.path(fingerprint), data, 0644); err != nil {
		return fmt.Errorf("writing blob %s: %w", fingerprint, err)
	}

	s.cache.Add(fingerprint, content)
	return nil
}

// Get returns the uncompressed content of a blob.
func (s *Store) Get(fingerprint string) ([]byte, error) {
	if content, ok := s.cache.Get(fingerprint); ok {
		return content, nil
	}

	data, err := os.ReadFile(s.path(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading blob %s: %w", fingerprint, err)
	}

	if len(data) >= len(zstdMagic) && bytes.Equal(data[:len(zstdMagic)], zstdMagic) {
		data, err = zdec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing blob %s: %w", fingerprint, err)
		}
	}

	s.cache.Add(fingerprint, data)
	return data, nil
}

// Exists checks whether a blob file is present.
func (s *Store) Exists(fingerprint string) bool {
	if fingerprint == "" {
		return false
	}
	if s.cache.Contains(fingerprint) {
		return true
	}
	_, err := os.Stat(s.path(fingerprint))
	return err == nil
}

// Remove deletes a blob. A missing blob is not an error.
func (s *Store) Remove(fingerprint string) error {
	s.cache.Remove(fingerprint)
	if err := os.Remove(s.path(fingerprint)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing blob %s: %w", fingerprint, err)
	}
	return nil
}

// Clear deletes every blob in the store.
func (s *Store) Clear() error {
	names, err := s.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := s.Remove(name); err != nil {
			return err
		}
	}
	s.cache.Purge()
	return nil
}

// List returns the fingerprints of every stored blob.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing blobs: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// AdoptFrom copies the stored bytes of a blob from another store verbatim,
// without recompressing. Existing blobs are left untouched.
func (s *Store) AdoptFrom(src *Store, fingerprint string) error {
	if s.Exists(fingerprint) {
		return nil
	}
	if !src.Exists(fingerprint) {
		return fmt.Errorf("%w: %s", ErrNotFound, fingerprint)
	}
	return fsutil.CopyFile(src.path(fingerprint), s.path(fingerprint))
}

// ReadRaw returns the stored bytes of a blob exactly as they sit on disk,
// compressed or not.
func (s *Store) ReadRaw(fingerprint string) ([]byte, error) {
	data, err := os.ReadFile(s.path(fingerprint))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading blob %s: %w", fingerprint, err)
	}
	return data, nil
}

// WriteRaw writes previously read raw blob bytes back into the store.
func (s *Store) WriteRaw(fingerprint string, data []byte) error {
	if err := os.WriteFile(s.path(fingerprint), data, 0644); err != nil {
		return fmt.Errorf("writing blob %s: %w", fingerprint, err)
	}
	return nil
}
