// Package storage holds the image attachment store. Blobs are keyed by a
// generated path that never derives from user input; the relative path is
// what gets persisted on the contact record.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

const keyPrefix = "contacts"

type Store interface {
	// Store writes the blob and returns its relative path.
	Store(ctx context.Context, r io.Reader, ext string) (string, error)

	// Delete removes the blob. Deleting an empty or unknown path is a no-op.
	Delete(ctx context.Context, path string) error

	// PublicURL resolves a stored path against the public asset base URL.
	PublicURL(path string) string
}

// NewKey builds a collision-resistant blob path like
// "contacts/3f2a...9c.png" from 16 random bytes plus the original extension.
func NewKey(ext string) (string, error) {
	buf := make([]byte, 16)

	_, err := rand.Read(buf)

	if err != nil {
		return "", err
	}

	ext = strings.TrimPrefix(strings.ToLower(ext), ".")

	return fmt.Sprintf("%s/%s.%s", keyPrefix, hex.EncodeToString(buf), ext), nil
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(path, "/")
}
