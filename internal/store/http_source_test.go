package store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-viewer/internal/domain"
)

func TestHTTPSource_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/data/doc.pdf":
			w.Write([]byte("%PDF"))
		case "/data/broken.pdf":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	src := NewHTTPSource(server.URL+"/", time.Second)

	rc, err := src.Fetch(context.Background(), "doc.pdf")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "%PDF", string(data))

	_, err = src.Fetch(context.Background(), "missing.pdf")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = src.Fetch(context.Background(), "broken.pdf")
	assert.ErrorIs(t, err, domain.ErrTransport)
}

func TestHTTPSource_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewHTTPSource(url, time.Second).Fetch(context.Background(), "doc.pdf")
	assert.ErrorIs(t, err, domain.ErrTransport)
}
