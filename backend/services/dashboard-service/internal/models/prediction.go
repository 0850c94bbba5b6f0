package models

// PredictRequest is the /predict payload. Field names follow the backend model's feature names.
type PredictRequest struct {
	Company        string  `json:"Company"`
	Month          string  `json:"Month"`
	TotalUsageKWh  float64 `json:"Total_Usage_kWh"`
	MonthNumber    int     `json:"month"`
	IsWinter       int     `json:"is_winter"`
	PrevCO2        float64 `json:"prev_CO2"`
	RenewableShare float64 `json:"renewable_share"`
}

// PredictResponse keeps both values untyped: the backend may answer with numbers,
// numeric strings or nothing at all.
type PredictResponse struct {
	PredictedCO2Kg interface{} `json:"predicted_CO2_kg"`
	ESGScore       interface{} `json:"esg_score"`
}
