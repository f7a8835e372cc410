package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound reports that a stored object referenced by document
// metadata no longer exists in the backend.
var ErrObjectNotFound = errors.New("object not found in storage")

// Client is the narrow surface the document registry needs from a storage
// backend. Object names are opaque to callers.
type Client interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Download(ctx context.Context, objectName string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, objectName string) error
}
