package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/logo.png":
			w.Header().Set("Content-Type", "application/octet-stream")
			_, _ = w.Write(pngHeader)
		case "/doc.pdf":
			w.Header().Set("Content-Type", "application/pdf")
			_, _ = w.Write([]byte("%PDF-1.4"))
		case "/big":
			_, _ = w.Write(make([]byte, 64))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := NewFetcher(srv.Client(), 32)
	ctx := context.Background()

	got, err := f.Fetch(ctx, srv.URL+"/logo.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", got.ContentType, "generic type is replaced by sniffed type")
	assert.Equal(t, pngHeader, got.Data)

	got, err = f.Fetch(ctx, srv.URL+"/doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", got.ContentType)

	_, err = f.Fetch(ctx, srv.URL+"/missing")
	require.Error(t, err)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Failed to fetch file: 404 Not Found", err.Error())

	_, err = f.Fetch(ctx, srv.URL+"/big")
	require.Error(t, err)
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, "image/jpeg", DetectContentType("image/jpeg", nil))
	assert.Equal(t, "application/octet-stream", DetectContentType("", nil))
	assert.Equal(t, "image/png", DetectContentType("", pngHeader))
}
