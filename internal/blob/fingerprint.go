// internal/blob/fingerprint.go
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const chunkSize = 4096

// Fingerprint computes the sha256 fingerprint of the file at the canonical
// path under root. The hash covers the path string itself followed by the
// file content, read in bounded chunks, so two files with identical content
// but different paths never share a fingerprint.
func Fingerprint(root, path string) (string, error) {
	h := sha256.New()
	h.Write([]byte(path))

	f, err := os.Open(filepath.Join(root, path))
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, chunkSize)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
