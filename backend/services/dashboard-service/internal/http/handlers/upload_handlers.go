package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/upload"
)

// UploadHandlers forward documents to the ingestion backend.
type UploadHandlers struct {
	service  *upload.Service
	maxBytes int64
	logger   *zap.Logger
}

// NewUploadHandlers returns handler limited to maxBytes per request.
func NewUploadHandlers(service *upload.Service, maxBytes int64, logger *zap.Logger) *UploadHandlers {
	return &UploadHandlers{service: service, maxBytes: maxBytes, logger: logger}
}

// Upload handles POST /api/upload (multipart field "file").
func (h *UploadHandlers) Upload(w http.ResponseWriter, r *http.Request) {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || (h.maxBytes > 0 && r.ContentLength > h.maxBytes) {
			writeJSON(w, http.StatusRequestEntityTooLarge, upload.Result{
				Message: fmt.Sprintf("File exceeds the %d MB upload limit.", h.maxBytes>>20),
			})
			return
		}
		if !errors.Is(err, http.ErrMissingFile) {
			h.logger.Debug("malformed upload request", zap.Error(err))
		}
		writeJSON(w, http.StatusBadRequest, h.service.Upload(r.Context(), nil))
		return
	}
	defer file.Close()

	result := h.service.Upload(r.Context(), &upload.File{Name: header.Filename, Content: file})
	status := http.StatusOK
	if !result.OK {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}
