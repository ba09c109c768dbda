// internal/repo/auth.go
package repo

import (
	"fmt"
	"os"
	"path/filepath"
)

const authDirName = ".epoch_auth"

// SetSecret stores the user's secret under ~/.epoch_auth/secret with
// owner-only permissions. The file is independent of any repository.
func SetSecret(secret string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, authDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating auth directory: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, "secret"), []byte(secret), 0600)
}
