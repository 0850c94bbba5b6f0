package upload

import (
	"context"
	"io"
	"strings"

	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/models"
)

const (
	// NoFileMessage is shown when nothing was selected.
	NoFileMessage = "Please select a PDF file."
	// SuccessMessage is shown when the backend accepted the file without a message.
	SuccessMessage = "File uploaded successfully."
	// FailureMessage is shown for any transport or backend error.
	FailureMessage = "Upload failed. Please check the backend logs."
)

// File is a document chosen for ingestion.
type File struct {
	Name    string
	Content io.Reader
}

// Result is the status line shown after an upload attempt.
type Result struct {
	Message string `json:"message"`
	OK      bool   `json:"ok"`
}

// Uploader forwards documents to the ingestion endpoint.
type Uploader interface {
	UploadDoc(ctx context.Context, filename string, content io.Reader) (*models.UploadResponse, error)
}

// Service submits single documents for ingestion.
type Service struct {
	uploader Uploader
	logger   *zap.Logger
}

// NewService builds an upload service.
func NewService(uploader Uploader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{uploader: uploader, logger: logger}
}

// Upload sends the file once. A missing file never reaches the network.
func (s *Service) Upload(ctx context.Context, file *File) Result {
	if file == nil || file.Content == nil || strings.TrimSpace(file.Name) == "" {
		return Result{Message: NoFileMessage}
	}

	resp, err := s.uploader.UploadDoc(ctx, file.Name, file.Content)
	if err != nil {
		s.logger.Warn("document upload failed", zap.String("filename", file.Name), zap.Error(err))
		return Result{Message: FailureMessage}
	}

	s.logger.Info("document uploaded", zap.String("filename", file.Name))
	if resp == nil || strings.TrimSpace(resp.Message) == "" {
		return Result{Message: SuccessMessage, OK: true}
	}
	return Result{Message: resp.Message, OK: true}
}
