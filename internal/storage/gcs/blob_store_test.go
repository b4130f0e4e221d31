package gcs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "quotes-archive"})
	require.Error(t, err)

	_, err = New(&storage.Client{}, Config{Bucket: "  "})
	require.Error(t, err)

	store, err := New(&storage.Client{}, Config{Bucket: " quotes-archive "})
	require.NoError(t, err)
	assert.Equal(t, "quotes-archive", store.bucket)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	store, err := New(&storage.Client{}, Config{Bucket: "quotes-archive"})
	require.NoError(t, err)
	_, err = store.PutObject(t.Context(), " / ", "text/html", nil)
	require.Error(t, err)
}

func TestObjectKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pages/run-1/ab12.html", objectKey(" /pages/run-1/ab12.html "))
	assert.Empty(t, objectKey("//"))
}

func TestAlreadyStored(t *testing.T) {
	t.Parallel()

	exists := &googleapi.Error{Code: http.StatusPreconditionFailed}
	assert.True(t, alreadyStored(exists))
	assert.True(t, alreadyStored(fmt.Errorf("close: %w", exists)))
	assert.False(t, alreadyStored(&googleapi.Error{Code: http.StatusForbidden}))
	assert.False(t, alreadyStored(errors.New("network down")))
}
