package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/familyvault/backend/pkg/logger"
)

// LocalClient stores objects as plain files under a root directory.
type LocalClient struct {
	root string
}

func NewLocalClient(root string) (*LocalClient, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalClient{root: root}, nil
}

// objectPath confines objectName beneath the root regardless of any ".."
// segments a caller might smuggle in.
func (l *LocalClient) objectPath(objectName string) string {
	cleaned := filepath.Clean("/" + filepath.FromSlash(objectName))
	return filepath.Join(l.root, cleaned)
}

func (l *LocalClient) Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	path := l.objectPath(objectName)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	out, err := os.Create(path)
	if err != nil {
		logger.Error("local_store_upload_failed", err, map[string]interface{}{
			"object_name": objectName,
		})
		return err
	}

	if _, err := io.Copy(out, reader); err != nil {
		out.Close()
		os.Remove(path)
		logger.Error("local_store_upload_failed", err, map[string]interface{}{
			"object_name": objectName,
		})
		return err
	}

	return out.Close()
}

func (l *LocalClient) Download(ctx context.Context, objectName string) (io.ReadCloser, int64, error) {
	path := l.objectPath(objectName)

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrObjectNotFound
		}
		logger.Error("local_store_download_failed", err, map[string]interface{}{
			"object_name": objectName,
		})
		return nil, 0, err
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, err
	}
	if info.IsDir() {
		file.Close()
		return nil, 0, ErrObjectNotFound
	}

	return file, info.Size(), nil
}

func (l *LocalClient) Delete(ctx context.Context, objectName string) error {
	path := l.objectPath(objectName)

	err := os.Remove(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrObjectNotFound
		}
		logger.Error("local_store_delete_failed", err, map[string]interface{}{
			"object_name": objectName,
		})
	}
	return err
}
