package objectstore

import (
	"context"
	"fmt"
	"os"
	"sync"
)

// BucketReader reads one object from a bucket.
type BucketReader interface {
	Read(ctx context.Context, bucket, key string) ([]byte, error)
}

// Fetcher loads statement bytes by URI, dispatching on the scheme.
// A nil backend makes URIs of that scheme fail.
type Fetcher struct {
	GCS BucketReader
	S3  BucketReader

	// AllowLocal enables file:// and bare paths.
	AllowLocal bool
}

// NewFetcher returns a Fetcher whose cloud clients are created on first use.
func NewFetcher(allowLocal bool) *Fetcher {
	return &Fetcher{
		GCS: &lazyReader{open: func(ctx context.Context) (BucketReader, error) {
			return NewGCS(ctx)
		}},
		S3: &lazyReader{open: func(ctx context.Context) (BucketReader, error) {
			return NewS3(ctx)
		}},
		AllowLocal: allowLocal,
	}
}

// Fetch downloads the bytes behind uri.
func (f *Fetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	switch loc.Scheme {
	case SchemeGCS:
		return readFrom(ctx, f.GCS, loc)
	case SchemeS3:
		return readFrom(ctx, f.S3, loc)
	case SchemeFile:
		if !f.AllowLocal {
			return nil, fmt.Errorf("Fetch: local files are not allowed: %s", uri)
		}
		data, err := os.ReadFile(loc.Key)
		if err != nil {
			return nil, fmt.Errorf("Fetch: reading %s: %w", loc.Key, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("Fetch: unsupported scheme %q", loc.Scheme)
}

// SourceType maps a URI to the import log source type.
func SourceType(uri string) string {
	loc, err := ParseURI(uri)
	if err != nil {
		return SchemeFile
	}
	if loc.Scheme == SchemeGCS {
		return "gcs"
	}
	return loc.Scheme
}

func readFrom(ctx context.Context, r BucketReader, loc Location) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("Fetch: no %s backend configured", loc.Scheme)
	}
	return r.Read(ctx, loc.Bucket, loc.Key)
}

type lazyReader struct {
	open func(ctx context.Context) (BucketReader, error)

	once   sync.Once
	reader BucketReader
	err    error
}

func (l *lazyReader) Read(ctx context.Context, bucket, key string) ([]byte, error) {
	l.once.Do(func() {
		l.reader, l.err = l.open(ctx)
	})
	if l.err != nil {
		return nil, l.err
	}
	return l.reader.Read(ctx, bucket, key)
}
