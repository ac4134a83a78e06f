package storage

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploaderRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	uploader := NewUploader(store, "http://media.local/")

	result, err := uploader.Upload(strings.NewReader("binary"), "files", "slides.png")
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.Bytes)
	assert.Equal(t, "image", result.ResourceType)
	assert.True(t, strings.HasPrefix(result.PublicID, "files/"))
	assert.True(t, strings.HasSuffix(result.PublicID, ".png"))
	assert.Equal(t, "http://media.local/"+result.PublicID, result.URL)

	file, err := store.Open(result.PublicID)
	require.NoError(t, err)
	data, err := io.ReadAll(file)
	require.NoError(t, file.Close())
	require.NoError(t, err)
	assert.Equal(t, "binary", string(data))

	require.NoError(t, uploader.Remove(result.PublicID))
	_, err = store.Open(result.PublicID)
	require.Error(t, err)
}

func TestUploaderRequiresFilename(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	uploader := NewUploader(store, "http://media.local")

	_, err = uploader.Upload(strings.NewReader("binary"), "files", "")
	require.Error(t, err)
}

func TestResourceTypeFor(t *testing.T) {
	assert.Equal(t, "image", ResourceTypeFor("photo.JPG"))
	assert.Equal(t, "video", ResourceTypeFor("clip.mp4"))
	assert.Equal(t, "audio", ResourceTypeFor("lecture.mp3"))
	assert.Equal(t, "document", ResourceTypeFor("notes.pdf"))
	assert.Equal(t, "document", ResourceTypeFor("no-extension"))
}

func TestLocalStorageSaveAndCleanup(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	name, err := store.Save("exports/catalog.csv", []byte("id,name\n"))
	require.NoError(t, err)
	assert.Equal(t, "exports/catalog.csv", name)

	// deleting a missing file is not an error
	require.NoError(t, store.Delete("exports/missing.csv"))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("exports/catalog.csv"), old, old))

	deleted, err := store.CleanupOlderThan(24 * time.Hour)
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.True(t, strings.HasSuffix(deleted[0], "catalog.csv"))
}
