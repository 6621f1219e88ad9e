package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Manager handles file storage for one account folder. Existence of a
// filename is the only persistent index: filenames are derived from
// immutable post data, so a present file is always complete and current.
type Manager struct {
	dir string
}

// FolderName builds the on-disk folder name for an account:
// {sanitized_handle}_{account_id}
func FolderName(handle, accountID string) string {
	return SanitizeHandle(handle) + "_" + accountID
}

// SanitizeHandle replaces characters that are problematic in folder names
// with underscores
func SanitizeHandle(handle string) string {
	const badChars = `^@%$?:<>\*|" `

	var b strings.Builder
	b.Grow(len(handle))
	for _, r := range handle {
		if strings.ContainsRune(badChars, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NewManager creates a storage manager rooted at baseDir/folder, creating
// the folder if needed
func NewManager(baseDir, folder string) (*Manager, error) {
	dir := filepath.Join(baseDir, folder)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create account folder: %w", err)
	}

	return &Manager{dir: dir}, nil
}

// Dir returns the account folder path
func (m *Manager) Dir() string {
	return m.dir
}

// Exists reports whether a file with the given name is already on disk
func (m *Manager) Exists(filename string) bool {
	_, err := os.Stat(filepath.Join(m.dir, filename))
	return err == nil
}

// Path returns the full path for a filename inside the account folder
func (m *Manager) Path(filename string) string {
	return filepath.Join(m.dir, filename)
}

// Save streams r to the named file. The data goes to a temporary file
// first and is renamed into place, so a failed download never leaves a
// partial file behind.
func (m *Manager) Save(r io.Reader, filename string) error {
	target := filepath.Join(m.dir, filename)

	tempFile := target + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to save file data: %w", err)
	}

	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// SizeMB returns the size of a stored file in megabytes
func (m *Manager) SizeMB(filename string) (float64, error) {
	info, err := os.Stat(filepath.Join(m.dir, filename))
	if err != nil {
		return 0, fmt.Errorf("failed to stat file: %w", err)
	}
	return float64(info.Size()) / (1024 * 1024), nil
}
