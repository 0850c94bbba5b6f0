package clients

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greenlens/backend/services/dashboard-service/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *GreenLensClient {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewGreenLensClient(srv.URL+"/", NewDefaultHTTPClient(2*time.Second))
}

func TestGetLiveData(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/live-data", r.URL.Path)
		_, _ = w.Write([]byte(`{"timestamp":"10:00:00","usage_data":[700.5,800,950.25],"message":"stable"}`))
	})

	data, err := client.GetLiveData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []float64{700.5, 800, 950.25}, data.UsageData)
	assert.Equal(t, "stable", data.Message)
	assert.Equal(t, "10:00:00", data.Timestamp)
}

func TestPredictCO2SendsFeatures(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "GreenLens", body["Company"])
		assert.Equal(t, "March", body["Month"])
		assert.Equal(t, 1000.0, body["Total_Usage_kWh"])
		assert.Equal(t, 3.0, body["month"])
		assert.Equal(t, 1.0, body["is_winter"])
		assert.Equal(t, 800.0, body["prev_CO2"])
		assert.InDelta(t, 0.4, body["renewable_share"], 1e-9)

		_, _ = w.Write([]byte(`{"predicted_CO2_kg":"123.456","esg_score":80}`))
	})

	req := NewPredictRequest("GreenLens", 1000, time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC))
	resp, err := client.PredictCO2(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "123.456", resp.PredictedCO2Kg)
	assert.Equal(t, 80.0, resp.ESGScore)
}

func TestUploadDocSendsMultipart(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ingest_docs", r.URL.Path)
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, _ := io.ReadAll(file)
		assert.Equal(t, "report.pdf", header.Filename)
		assert.Equal(t, "%PDF-1.7", string(content))
		_, _ = w.Write([]byte(`{"message":"report.pdf ingested successfully."}`))
	})

	resp, err := client.UploadDoc(context.Background(), "report.pdf", strings.NewReader("%PDF-1.7"))
	require.NoError(t, err)
	assert.Equal(t, "report.pdf ingested successfully.", resp.Message)
}

func TestAskQuestion(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req models.AskRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is CSRD?", req.Question)
		_, _ = w.Write([]byte(`{"answer":{"answer":"A directive."}}`))
	})

	resp, err := client.AskQuestion(context.Background(), "What is CSRD?")
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"answer": "A directive."}, resp.Answer)
}

func TestBackendErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Model not loaded"}`, http.StatusInternalServerError)
	})

	_, err := client.PredictCO2(context.Background(), models.PredictRequest{})
	require.Error(t, err)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Status)
	assert.Equal(t, "/predict", statusErr.Path)
	assert.Contains(t, statusErr.Body, "Model not loaded")
}

func TestTransportErrorAndBadJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-json`))
	})
	_, err := client.GetLiveData(context.Background())
	assert.ErrorContains(t, err, "decode /live-data response")

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	closed := NewGreenLensClient(srv.URL, NewDefaultHTTPClient(time.Second))
	_, err = closed.AskQuestion(context.Background(), "hi")
	assert.Error(t, err)
}
