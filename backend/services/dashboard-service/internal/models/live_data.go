package models

// LiveData mirrors the backend /live-data payload.
type LiveData struct {
	UsageData []float64 `json:"usage_data"`
	Message   string    `json:"message"`
	Timestamp string    `json:"timestamp,omitempty"`
}
