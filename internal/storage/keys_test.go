package storage

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
)

func TestIsPublicFileKey(t *testing.T) {
	cases := map[string]bool{
		"images/1/photo-abc.png":  true,
		"images/1/photo-abc.JPG":  true,
		"annexes/1/abc.pdf":       true,
		"annexes/1/abc.png":       false,
		"images/1/photo.pdf":      false,
		"final-documents/1/x.pdf": false,
		"images/../secrets/x.png": false,
		"images//1/x.png":         false,
		"images\\1\\x.png":        false,
		"":                        false,
		"images/" + strings.Repeat("a", 300) + ".png": false,
	}
	for key, want := range cases {
		assert.Equal(t, want, IsPublicFileKey(key), key)
	}
}

func TestGeneratedKeysArePublicWhereExpected(t *testing.T) {
	ext, ok := ImageExtension("image/png")
	assert.True(t, ok)
	assert.True(t, IsPublicFileKey(ImageKey(7, "photo", ext)))
	assert.True(t, IsPublicFileKey(AnnexeKey(7, "abc")))
	assert.False(t, IsPublicFileKey(FinalDocumentKey(7)))

	_, ok = ImageExtension("image/gif")
	assert.False(t, ok)
}

func TestIsNoSuchKey(t *testing.T) {
	assert.False(t, IsNoSuchKey(nil))
	assert.True(t, IsNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, IsNoSuchKey(fmt.Errorf("read object %q: %w", "k", minio.ErrorResponse{Code: "NotFound"})))
	assert.True(t, IsNoSuchKey(minio.ErrorResponse{StatusCode: 404}))
	assert.False(t, IsNoSuchKey(minio.ErrorResponse{Code: "NoSuchBucket", StatusCode: 404}))
	assert.True(t, IsNoSuchKey(errors.New("The specified key does not exist.")))
	assert.False(t, IsNoSuchKey(errors.New("connection refused")))
}
