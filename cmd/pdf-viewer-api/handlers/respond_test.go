package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/pdf"
	"github.com/spherical/pdf-viewer/internal/store"
	"github.com/spherical/pdf-viewer/internal/viewer"
)

func TestStatusFor_MalformedReference(t *testing.T) {
	dir, err := store.NewDirectory(t.TempDir())
	require.NoError(t, err)
	engine := pdf.NewEngine(dir)

	for _, ref := range []string{"../x.pdf", "dir/x.pdf", "notes.txt"} {
		_, err := engine.Open(context.Background(), ref)
		require.Error(t, err, ref)
		assert.Equal(t, http.StatusBadRequest, statusFor(err), ref)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"missing viewer", viewer.ErrViewerNotFound, http.StatusNotFound},
		{"missing document", domain.OpenError(domain.ReasonUnreachable, "cannot fetch a.pdf", domain.ErrNotFound), http.StatusNotFound},
		{"transport failure", domain.OpenError(domain.ReasonUnreachable, "cannot fetch a.pdf", domain.ErrTransport), http.StatusBadGateway},
		{"undecodable", domain.OpenError(domain.ReasonUndecodable, "failed to open PDF", errors.New("bad xref")), http.StatusUnprocessableEntity},
		{"wrapped validation", fmt.Errorf("open: %w", domain.ValidationError("bad name", nil)), http.StatusBadRequest},
		{"stale generation", fmt.Errorf("%w: report", domain.ErrStaleGeneration), http.StatusConflict},
		{"too many viewers", viewer.ErrTooManyViewers, http.StatusTooManyRequests},
		{"closed", domain.ErrClosed, http.StatusGone},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
