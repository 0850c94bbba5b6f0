package models

// UploadResponse mirrors the /ingest_docs payload.
type UploadResponse struct {
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
