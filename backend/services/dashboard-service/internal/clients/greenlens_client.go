package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"greenlens/backend/services/dashboard-service/internal/models"
)

// GreenLensClient talks to the prediction / ingestion / question-answering backend.
type GreenLensClient struct {
	base *BaseClient
}

// NewGreenLensClient returns client.
func NewGreenLensClient(baseURL string, httpClient HTTPDoer) *GreenLensClient {
	return &GreenLensClient{base: NewBaseClient(baseURL, httpClient)}
}

// GetLiveData fetches the current usage sequence and status message.
func (c *GreenLensClient) GetLiveData(ctx context.Context) (*models.LiveData, error) {
	var out models.LiveData
	if err := c.base.DoJSON(ctx, http.MethodGet, "/live-data", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictCO2 requests a CO2/ESG prediction for the given features.
func (c *GreenLensClient) PredictCO2(ctx context.Context, req models.PredictRequest) (*models.PredictResponse, error) {
	var out models.PredictResponse
	if err := c.base.DoJSON(ctx, http.MethodPost, "/predict", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadDoc posts a document as multipart form field "file".
func (c *GreenLensClient) UploadDoc(ctx context.Context, filename string, content io.Reader) (*models.UploadResponse, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copy upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	headers := map[string]string{"Content-Type": form.FormDataContentType()}
	status, body, err := c.base.Do(ctx, http.MethodPost, "/ingest_docs", &buf, headers)
	if err != nil {
		return nil, err
	}
	var out models.UploadResponse
	if err := decodeResponse(http.MethodPost, "/ingest_docs", status, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AskQuestion forwards a question to the question-answering endpoint.
func (c *GreenLensClient) AskQuestion(ctx context.Context, question string) (*models.AskResponse, error) {
	var out models.AskResponse
	if err := c.base.DoJSON(ctx, http.MethodPost, "/ask", models.AskRequest{Question: question}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
