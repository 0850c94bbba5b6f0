package clients

import (
	"math"
	"time"

	"greenlens/backend/services/dashboard-service/internal/models"
)

const (
	prevCO2Factor     = 0.8
	renewableBase     = 0.9
	renewableDivisor  = 2000.0
	minRenewableShare = 0.01
	maxRenewableShare = 0.99
)

// NewPredictRequest derives the auxiliary model features from a reading and the
// wall-clock month. Equal inputs always produce equal requests.
func NewPredictRequest(company string, reading float64, now time.Time) models.PredictRequest {
	month := now.Month()
	return models.PredictRequest{
		Company:        company,
		Month:          month.String(),
		TotalUsageKWh:  reading,
		MonthNumber:    int(month),
		IsWinter:       WinterFlag(month),
		PrevCO2:        Round2(reading * prevCO2Factor),
		RenewableShare: RenewableShare(reading),
	}
}

// WinterFlag is 1 for November through March.
func WinterFlag(month time.Month) int {
	switch month {
	case time.November, time.December, time.January, time.February, time.March:
		return 1
	default:
		return 0
	}
}

// RenewableShare falls linearly with usage and is clamped to [0.01, 0.99].
func RenewableShare(reading float64) float64 {
	share := renewableBase - reading/renewableDivisor
	return math.Max(minRenewableShare, math.Min(maxRenewableShare, share))
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
