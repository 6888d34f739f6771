/*
 * This file is part of Loqa (https://github.com/loqalabs/loqa).
 * Copyright (C) 2025 Loqa Labs
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/security"
	"go.uber.org/zap"
)

// DirArea keeps blobs in a temporary directory. Uploads are written into a
// staging directory next to the published files and renamed into place.
type DirArea struct {
	name    string
	root    string
	files   string
	staging string
}

// NewDirStore creates both areas as fresh temporary directories under baseDir
// (os.TempDir() when empty)
func NewDirStore(baseDir string) (*Store, error) {
	voices, err := NewDirArea(baseDir, AreaVoices, "uploaded_voices_")
	if err != nil {
		return nil, err
	}

	documents, err := NewDirArea(baseDir, AreaDocuments, "uploaded_pdfs_")
	if err != nil {
		_ = voices.Destroy(context.Background())
		return nil, err
	}

	return &Store{Voices: voices, Documents: documents}, nil
}

// NewDirArea creates a single directory-backed area
func NewDirArea(baseDir, name, pattern string) (*DirArea, error) {
	root, err := os.MkdirTemp(baseDir, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s directory: %w", name, err)
	}

	area := &DirArea{
		name:    name,
		root:    root,
		files:   filepath.Join(root, "files"),
		staging: filepath.Join(root, "staging"),
	}

	for _, dir := range []string{area.files, area.staging} {
		if err := os.Mkdir(dir, 0o700); err != nil {
			_ = os.RemoveAll(root)
			return nil, fmt.Errorf("failed to create %s directory: %w", name, err)
		}
	}

	logging.LogUploadOperation(name, "create", zap.String("dir", root))
	return area, nil
}

// Name returns the area name
func (a *DirArea) Name() string {
	return a.name
}

// Root returns the directory that holds the whole area
func (a *DirArea) Root() string {
	return a.root
}

// Put writes r to a staging file and renames it over any previous blob
func (a *DirArea) Put(_ context.Context, name string, r io.Reader) error {
	if err := security.ValidateUploadName(name); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(a.staging, "upload-*")
	if err != nil {
		return fmt.Errorf("failed to create staging file: %w", err)
	}
	tmpPath := tmp.Name()

	written, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmpPath)
		if copyErr != nil {
			return fmt.Errorf("failed to write upload %q: %w", name, copyErr)
		}
		return fmt.Errorf("failed to close upload %q: %w", name, closeErr)
	}

	if err := os.Rename(tmpPath, filepath.Join(a.files, name)); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to publish upload %q: %w", name, err)
	}

	logging.LogUploadOperation(a.name, "put",
		zap.String("name", security.SanitizeLogInput(name)),
		zap.Int64("bytes", written),
	)
	return nil
}

// Get reads the blob stored under name
func (a *DirArea) Get(ctx context.Context, name string) ([]byte, error) {
	path, _, err := a.Localize(ctx, name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read upload %q: %w", name, err)
	}
	return data, nil
}

// Localize returns the published path of name; blobs already live on disk so
// release is a no-op
func (a *DirArea) Localize(_ context.Context, name string) (string, func(), error) {
	if err := security.ValidateUploadName(name); err != nil {
		return "", nil, err
	}

	path := filepath.Join(a.files, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil, ErrNotFound
		}
		return "", nil, fmt.Errorf("failed to stat upload %q: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, ErrNotFound
	}

	return path, noRelease, nil
}

// List returns the names of regular files in the area
func (a *DirArea) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(a.files)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", a.name, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Destroy removes the area directory and everything in it
func (a *DirArea) Destroy(_ context.Context) error {
	if err := os.RemoveAll(a.root); err != nil {
		return fmt.Errorf("failed to remove %s directory: %w", a.name, err)
	}
	logging.LogUploadOperation(a.name, "destroy", zap.String("dir", a.root))
	return nil
}
