package storage

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// UploadResult describes a stored blob the way an external media host
// would: a public URL, an opaque public id for later deletion, the broad
// resource type and the stored byte count.
type UploadResult struct {
	URL          string
	PublicID     string
	ResourceType string
	Bytes        int64
}

// Uploader stores uploaded blobs via LocalStorage and shapes results
// after the cloud upload contract the rest of the system consumes.
type Uploader struct {
	store         *LocalStorage
	publicBaseURL string
}

// NewUploader wires an uploader on top of a local store.
func NewUploader(store *LocalStorage, publicBaseURL string) *Uploader {
	return &Uploader{store: store, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// Upload persists the stream under the folder hint and returns the
// public descriptor. The public id embeds the folder so Remove can
// resolve it without a lookup.
func (u *Uploader) Upload(r io.Reader, folder, filename string) (*UploadResult, error) {
	if filename == "" {
		return nil, fmt.Errorf("filename required")
	}
	publicID := filepath.Join(folder, uuid.NewString()+filepath.Ext(filename))
	written, err := u.store.SaveStream(publicID, r)
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}
	return &UploadResult{
		URL:          u.publicBaseURL + "/" + filepath.ToSlash(publicID),
		PublicID:     filepath.ToSlash(publicID),
		ResourceType: ResourceTypeFor(filename),
		Bytes:        written,
	}, nil
}

// Remove deletes a previously uploaded blob by its public id.
func (u *Uploader) Remove(publicID string) error {
	return u.store.Delete(filepath.FromSlash(publicID))
}

// ResourceTypeFor maps a filename to the broad media type bucket used
// throughout the catalog.
func ResourceTypeFor(filename string) string {
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return "image"
	case strings.HasPrefix(mimeType, "video/"):
		return "video"
	case strings.HasPrefix(mimeType, "audio/"):
		return "audio"
	default:
		return "document"
	}
}
