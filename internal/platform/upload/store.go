// Package upload stores uploaded files on the public file disk and hands
// back the relative path persisted alongside the owning row (clinic logo,
// favicon, ICD import files).
package upload

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge   = errors.New("file exceeds maximum allowed size")
	ErrInvalidExt     = errors.New("file extension is not allowed")
	ErrMissingFile    = errors.New("file is required")
)

// MaxFileSize is the maximum allowed upload size in bytes (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// Store writes files beneath a base directory on the local disk.
type Store struct {
	baseDir string
}

func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Save persists a multipart file under subdir with a generated name and
// returns the path relative to the store root. allowedExts restricts the
// accepted extensions (lowercase, with leading dot); empty means any.
func (s *Store) Save(fh *multipart.FileHeader, subdir string, allowedExts ...string) (string, error) {
	if fh == nil {
		return "", ErrMissingFile
	}
	if fh.Size > MaxFileSize {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if len(allowedExts) > 0 {
		ok := false
		for _, a := range allowedExts {
			if ext == a {
				ok = true
				break
			}
		}
		if !ok {
			return "", ErrInvalidExt
		}
	}

	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	dir := filepath.Join(s.baseDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	dstPath := filepath.Join(dir, name)
	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(dstPath)
		return "", fmt.Errorf("write file: %w", err)
	}

	return filepath.ToSlash(filepath.Join(subdir, name)), nil
}

// Remove deletes a previously saved file by its relative path. Missing files
// are not an error.
func (s *Store) Remove(relPath string) error {
	if relPath == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.baseDir, filepath.FromSlash(relPath)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
