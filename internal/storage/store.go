package storage

import (
	"context"
	"path"

	"github.com/google/uuid"
)

// Store is the asset store behind the production pipeline. Produced videos,
// narration WAVs and music beds all go through it; the rest of the system
// only ever sees the returned public URLs.
type Store interface {
	Upload(ctx context.Context, objectPath string, data []byte, contentType string) error
	Download(ctx context.Context, objectPath string) ([]byte, error)
	PublicURL(objectPath string) string
}

// ObjectPath builds the canonical per-greeting object key.
func ObjectPath(greetingID uuid.UUID, filename string) string {
	return path.Join(greetingID.String(), filename)
}
