package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gridwork/hubcap/pkg/httputil"
)

// maxDocumentSize caps uploaded documentation blobs at 32 MiB.
const maxDocumentSize = 32 << 20

// DocumentHandlers serves device documentation uploads and downloads. The
// blob itself lives in the storage backend; only metadata travels as JSON.
type DocumentHandlers struct {
	storage Storage
}

// NewDocumentHandlers creates the documentation handlers.
func NewDocumentHandlers(storage Storage) *DocumentHandlers {
	return &DocumentHandlers{storage: storage}
}

// RegisterRoutes registers the documentation routes
func (h *DocumentHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/devices/{id}/docs", h.uploadDocument).Methods("POST")
	router.HandleFunc("/devices/{id}/docs", h.listDocuments).Methods("GET")
	router.HandleFunc("/docs/{id}", h.downloadDocument).Methods("GET")
}

// uploadDocument handles POST /devices/{id}/docs. The request body is the
// raw document; title comes from the X-Document-Title header or the title
// query parameter.
func (h *DocumentHandlers) uploadDocument(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if _, err := h.storage.GetDevice(r.Context(), deviceID); err != nil {
		writeStorageError(w, err)
		return
	}

	title := r.Header.Get("X-Document-Title")
	if title == "" {
		title = r.URL.Query().Get("title")
	}
	if title == "" {
		httputil.WriteValidationError(w, "a document title is required")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	doc := &Document{
		ID:          uuid.NewString(),
		DeviceID:    deviceID,
		Title:       title,
		ContentType: contentType,
		Size:        r.ContentLength,
		CreatedAt:   time.Now(),
	}

	body := http.MaxBytesReader(w, r.Body, maxDocumentSize)
	defer body.Close()

	if err := h.storage.CreateDocument(r.Context(), doc, body); err != nil {
		httputil.WriteInternalError(w, fmt.Errorf("storing document: %w", err))
		return
	}

	httputil.WriteCreated(w, doc)
}

// listDocuments handles GET /devices/{id}/docs
func (h *DocumentHandlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	docs, err := h.storage.ListDocuments(r.Context(), deviceID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteSuccess(w, docs)
}

// downloadDocument handles GET /docs/{id}, streaming the blob to the client.
func (h *DocumentHandlers) downloadDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	doc, content, err := h.storage.GetDocument(r.Context(), id)
	if err != nil {
		writeStorageError(w, err)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", doc.ContentType)
	if doc.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(doc.Size, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Title))

	if _, err := io.Copy(w, content); err != nil {
		// Headers are already out; nothing useful left to send.
		return
	}
}
