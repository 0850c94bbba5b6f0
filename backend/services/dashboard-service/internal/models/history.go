package models

import "time"

// PredictionHistory is one stored applied prediction.
type PredictionHistory struct {
	ID             int64     `json:"id"`
	Tick           int64     `json:"tick"`
	Basis          string    `json:"basis"`
	Reading        float64   `json:"reading"`
	PredictedCO2Kg float64   `json:"predicted_CO2_kg"`
	ESGScore       *float64  `json:"esg_score"`
	Source         string    `json:"source"`
	RecordedAt     time.Time `json:"recorded_at"`
}
