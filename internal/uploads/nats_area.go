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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-voice-api/internal/logging"
	"github.com/loqalabs/loqa-voice-api/internal/security"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSArea keeps blobs in a JetStream object store bucket that belongs to
// this process. The bucket is created on startup and deleted by Destroy.
type NATSArea struct {
	name   string
	bucket string
	js     nats.JetStreamContext
	store  nats.ObjectStore
}

// NewNATSStore creates both areas as fresh object store buckets
func NewNATSStore(js nats.JetStreamContext) (*Store, error) {
	voices, err := NewNATSArea(js, AreaVoices, "uploaded_voices")
	if err != nil {
		return nil, err
	}

	documents, err := NewNATSArea(js, AreaDocuments, "uploaded_pdfs")
	if err != nil {
		_ = voices.Destroy(context.Background())
		return nil, err
	}

	return &Store{Voices: voices, Documents: documents}, nil
}

// NewNATSArea creates a single bucket-backed area. A random suffix keeps
// concurrently running processes from sharing a bucket.
func NewNATSArea(js nats.JetStreamContext, name, prefix string) (*NATSArea, error) {
	bucket := prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: fmt.Sprintf("Uploaded %s for a single voice API process.", name),
		Storage:     nats.MemoryStorage,
		Replicas:    1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
	}

	logging.LogUploadOperation(name, "create", zap.String("bucket", bucket))

	return &NATSArea{
		name:   name,
		bucket: bucket,
		js:     js,
		store:  store,
	}, nil
}

// Name returns the area name
func (a *NATSArea) Name() string {
	return a.name
}

// Bucket returns the object store bucket backing the area
func (a *NATSArea) Bucket() string {
	return a.bucket
}

// Put uploads r as an object; the object becomes visible once fully written
func (a *NATSArea) Put(_ context.Context, name string, r io.Reader) error {
	if err := security.ValidateUploadName(name); err != nil {
		return err
	}

	info, err := a.store.Put(&nats.ObjectMeta{Name: name}, r)
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", name, a.bucket, err)
	}

	logging.LogUploadOperation(a.name, "put",
		zap.String("name", security.SanitizeLogInput(name)),
		zap.Uint64("bytes", info.Size),
	)
	return nil
}

// Get downloads the object stored under name
func (a *NATSArea) Get(_ context.Context, name string) ([]byte, error) {
	if err := security.ValidateUploadName(name); err != nil {
		return nil, err
	}

	data, err := a.store.GetBytes(name)
	if err != nil {
		if errors.Is(err, nats.ErrObjectNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get object '%s' from bucket '%s': %w", name, a.bucket, err)
	}
	return data, nil
}

// Localize copies the object into a temporary file that release removes.
// The original extension is kept since audio tools sniff formats by it.
func (a *NATSArea) Localize(ctx context.Context, name string) (string, func(), error) {
	data, err := a.Get(ctx, name)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp("", a.name+"-*"+filepath.Ext(name))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create local copy of %q: %w", name, err)
	}

	_, copyErr := io.Copy(tmp, bytes.NewReader(data))
	closeErr := tmp.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("failed to write local copy of %q: %w", name, errors.Join(copyErr, closeErr))
	}

	path := tmp.Name()
	return path, func() { _ = os.Remove(path) }, nil
}

// List returns the names of live objects in the bucket
func (a *NATSArea) List(_ context.Context) ([]string, error) {
	infos, err := a.store.List()
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list bucket '%s': %w", a.bucket, err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		if !info.Deleted {
			names = append(names, info.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Destroy deletes the bucket
func (a *NATSArea) Destroy(_ context.Context) error {
	if err := a.js.DeleteObjectStore(a.bucket); err != nil {
		return fmt.Errorf("failed to delete bucket '%s': %w", a.bucket, err)
	}
	logging.LogUploadOperation(a.name, "destroy", zap.String("bucket", a.bucket))
	return nil
}
