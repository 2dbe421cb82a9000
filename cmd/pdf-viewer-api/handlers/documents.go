package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/spherical/pdf-viewer/internal/domain"
	"github.com/spherical/pdf-viewer/internal/observability"
	"github.com/spherical/pdf-viewer/internal/pdf"
	"github.com/spherical/pdf-viewer/internal/store"
)

// DocumentStore is where uploads are written and raw documents are served from.
type DocumentStore interface {
	Save(ctx context.Context, name string, r io.Reader, maxBytes int64) (domain.DocumentInfo, error)
	Path(reference string) (string, error)
}

// Recorder keeps a catalog entry for each stored upload.
type Recorder interface {
	Record(ctx context.Context, info domain.DocumentInfo) error
}

// DocumentConfig configures the document handler.
type DocumentConfig struct {
	MaxUploadBytes  int64
	ValidateUploads bool
}

// DocumentHandler handles listing, uploading and serving documents.
type DocumentHandler struct {
	logger    *observability.Logger
	lister    domain.DocumentLister
	store     DocumentStore
	recorder  Recorder // optional
	notifier  store.Notifier
	validator *pdf.Validator
	cfg       DocumentConfig
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(logger *observability.Logger, lister domain.DocumentLister, st DocumentStore, recorder Recorder, notifier store.Notifier, cfg DocumentConfig) *DocumentHandler {
	if notifier == nil {
		notifier = store.NopNotifier{}
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 100 << 20
	}
	return &DocumentHandler{
		logger:    logger,
		lister:    lister,
		store:     st,
		recorder:  recorder,
		notifier:  notifier,
		validator: pdf.NewValidator(),
		cfg:       cfg,
	}
}

// ListNames handles GET /pdfs with a plain array of file names.
func (h *DocumentHandler) ListNames(w http.ResponseWriter, r *http.Request) {
	docs, err := h.lister.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list documents")
		writeError(w, http.StatusInternalServerError, "failed to list documents", err.Error())
		return
	}
	names := make([]string, 0, len(docs))
	for _, d := range docs {
		names = append(names, d.Reference)
	}
	writeJSON(w, http.StatusOK, names)
}

// List handles GET /api/v1/documents with full document details.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	docs, err := h.lister.List(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list documents")
		writeError(w, http.StatusInternalServerError, "failed to list documents", err.Error())
		return
	}
	if docs == nil {
		docs = []domain.DocumentInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs})
}

// Upload handles POST /upload with a multipart "file" field.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large", "")
			return
		}
		writeError(w, http.StatusBadRequest, "No file part", "")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "No selected file", "")
		return
	}
	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		writeError(w, http.StatusBadRequest, "Only PDF files are allowed", "")
		return
	}
	name := pdf.SanitizeFilename(header.Filename)
	if name == "" || !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		writeError(w, http.StatusBadRequest, "Invalid file name", "")
		return
	}

	if h.cfg.ValidateUploads {
		if err := h.validator.ValidatePDF(file); err != nil {
			h.logger.Info().Err(err).Str("filename", name).Msg("Rejected invalid upload")
			writeError(w, http.StatusBadRequest, "File is not a valid PDF", err.Error())
			return
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to read upload", err.Error())
			return
		}
	}

	info, err := h.store.Save(ctx, name, file, h.cfg.MaxUploadBytes)
	if errors.Is(err, store.ErrTooLarge) {
		writeError(w, http.StatusRequestEntityTooLarge, "File too large", "")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("filename", name).Msg("Failed to store upload")
		writeError(w, http.StatusInternalServerError, "failed to store file", err.Error())
		return
	}

	if h.recorder != nil {
		if err := h.recorder.Record(ctx, info); err != nil {
			h.logger.Error().Err(err).Str("filename", name).Msg("Failed to record upload")
			writeError(w, http.StatusInternalServerError, "failed to record file", err.Error())
			return
		}
	}
	if err := h.notifier.Uploaded(ctx, info); err != nil {
		h.logger.Warn().Err(err).Str("filename", name).Msg("Failed to announce upload")
	}

	h.logger.Info().Str("filename", name).Int64("size", info.Size).Msg("Stored upload")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"filename": name,
	})
}

// Serve handles GET /data/{filename} with the raw document bytes.
func (h *DocumentHandler) Serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "filename")
	path, err := h.store.Path(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "Document not found", "")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		writeError(w, http.StatusNotFound, "Document not found", "")
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		writeError(w, http.StatusNotFound, "Document not found", "")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	http.ServeContent(w, r, name, stat.ModTime(), f)
}
