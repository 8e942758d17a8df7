package objectstore

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

// Schemes understood by ParseURI.
const (
	SchemeGCS  = "gs"
	SchemeS3   = "s3"
	SchemeFile = "file"
)

// Location is a parsed statement URI.
// For file locations Bucket is empty and Key holds the local path.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return "file://" + l.Key
	}
	return l.Scheme + "://" + l.Bucket + "/" + l.Key
}

// ParseURI parses gs://bucket/key, s3://bucket/key, file:///path or a bare
// local path.
func ParseURI(uri string) (Location, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Location{}, fmt.Errorf("empty URI")
	}

	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return Location{Scheme: SchemeFile, Key: uri}, nil
	}

	switch scheme {
	case SchemeFile:
		if rest == "" {
			return Location{}, fmt.Errorf("invalid file URI (no path): %s", uri)
		}
		return Location{Scheme: SchemeFile, Key: rest}, nil
	case SchemeGCS, SchemeS3:
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" {
			return Location{}, fmt.Errorf("invalid %s URI (no bucket): %s", scheme, uri)
		}
		if key == "" {
			return Location{}, fmt.Errorf("invalid %s URI (no object path): %s", scheme, uri)
		}
		return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
	default:
		return Location{}, fmt.Errorf("unsupported URI scheme %q", scheme)
	}
}

// Filename extracts the base file name from a URI.
// e.g., "gs://bucket/folder/statement.csv" → "statement.csv"
func Filename(uri string) string {
	loc, err := ParseURI(uri)
	if err != nil {
		return path.Base(uri)
	}
	if loc.Scheme == SchemeFile {
		return filepath.Base(loc.Key)
	}
	return path.Base(loc.Key)
}
