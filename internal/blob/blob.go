package blob

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrObjectNotFound is returned by Get for an unknown key
	ErrObjectNotFound = errors.New("object not found")
	// ErrInvalidKey is returned for keys that are empty or escape the store root
	ErrInvalidKey = errors.New("invalid object key")
)

// Store is the result blob store. Put overwrites any existing object at key.
// URL is a pure function of the key.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	URL(key string) string
	Ensure(ctx context.Context) error
}

// ResultKey returns the object key of a job's render output
func ResultKey(jobID, ext string) string {
	return "results/" + jobID + "." + strings.TrimPrefix(ext, ".")
}

// cleanKey rejects keys that would escape the store root
func cleanKey(key string) (string, error) {
	if key == "" {
		return "", fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	cleaned := path.Clean("/" + key)[1:]
	if cleaned == "" || cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}

func joinURL(base string, parts ...string) string {
	out := strings.TrimRight(base, "/")
	for _, p := range parts {
		out += "/" + strings.Trim(p, "/")
	}
	return out
}
