package storageprovider

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"

	"github.com/snaptrace/snaptrace/internal/storageutil"
)

// Gcs implements the storageutil.ObjectHandler interface for Google Cloud
// Storage buckets.
type Gcs struct {
	BucketHandle *storage.BucketHandle
}

// Put writes a file to the storage provider with name being the path.
func (g *Gcs) Put(ctx context.Context, name string) (io.WriteCloser, error) {
	return g.BucketHandle.Object(name).NewWriter(ctx), nil
}

// Get reads a file from the storage provider with name being the path.
// If a key was not found, it will return ErrObjectNotFound.
func (g *Gcs) Get(ctx context.Context, name string) (storageutil.ReadSizeCloser, error) {
	rc, err := g.BucketHandle.Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, storageutil.ErrObjectNotFound
		}
		return nil, err
	}
	return &gcsReader{reader: rc}, nil
}

type gcsReader struct {
	reader *storage.Reader
}

func (g *gcsReader) Read(p []byte) (int, error) {
	return g.reader.Read(p)
}

func (g *gcsReader) Close() error {
	return g.reader.Close()
}

func (g *gcsReader) Size() int64 {
	return g.reader.Attrs.Size
}
