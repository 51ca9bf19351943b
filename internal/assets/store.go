// internal/assets/store.go
package assets

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"template-verifier/internal/common/errors"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// Store keeps template images. Handles are opaque to callers.
type Store interface {
	Import(ctx context.Context, srcPath string) (string, error)
	Put(ctx context.Context, ext string, r io.Reader) (string, error)
	Open(ctx context.Context, handle string) (io.ReadCloser, error)
	Delete(ctx context.Context, handle string) error
}

// FileStore writes assets under one directory as <uuid><ext>. Files are
// written to a temp name first and renamed into place, so a handle never
// points at a partial file.
type FileStore struct {
	fs  afero.Fs
	dir string
}

func NewFileStore(fs afero.Fs, dir string) (*FileStore, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create asset dir %s: %w", dir, err)
	}
	return &FileStore{fs: fs, dir: dir}, nil
}

// Import copies the file at srcPath into the store.
func (s *FileStore) Import(ctx context.Context, srcPath string) (string, error) {
	src, err := s.fs.Open(srcPath)
	if err != nil {
		return "", errors.NewAssetStoreFailedError(srcPath, err)
	}
	defer src.Close()
	return s.Put(ctx, filepath.Ext(srcPath), src)
}

func (s *FileStore) Put(ctx context.Context, ext string, r io.Reader) (string, error) {
	handle := uuid.NewString() + strings.ToLower(ext)

	tmp, err := afero.TempFile(s.fs, s.dir, ".upload-*")
	if err != nil {
		return "", errors.NewAssetStoreFailedError(handle, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", errors.NewAssetStoreFailedError(handle, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", errors.NewAssetStoreFailedError(handle, err)
	}
	if err := s.fs.Rename(tmpName, s.path(handle)); err != nil {
		s.fs.Remove(tmpName)
		return "", errors.NewAssetStoreFailedError(handle, err)
	}
	return handle, nil
}

func (s *FileStore) Open(ctx context.Context, handle string) (io.ReadCloser, error) {
	if err := validHandle(handle); err != nil {
		return nil, err
	}
	f, err := s.fs.Open(s.path(handle))
	if err != nil {
		return nil, errors.NewAssetStoreFailedError(handle, err)
	}
	return f, nil
}

// Delete removes an asset. Deleting a handle that is already gone succeeds.
func (s *FileStore) Delete(ctx context.Context, handle string) error {
	if err := validHandle(handle); err != nil {
		return err
	}
	exists, err := afero.Exists(s.fs, s.path(handle))
	if err != nil {
		return errors.NewAssetStoreFailedError(handle, err)
	}
	if !exists {
		return nil
	}
	if err := s.fs.Remove(s.path(handle)); err != nil {
		return errors.NewAssetStoreFailedError(handle, err)
	}
	return nil
}

func (s *FileStore) path(handle string) string {
	return filepath.Join(s.dir, handle)
}

func validHandle(handle string) error {
	base := strings.TrimSuffix(handle, filepath.Ext(handle))
	if _, err := uuid.Parse(base); err != nil || strings.ContainsAny(handle, `/\`) {
		return errors.NewValidationError(fmt.Sprintf("invalid asset handle %q", handle), "assetHandle")
	}
	return nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
