package dashboard

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"greenlens/backend/services/dashboard-service/internal/clients"
	"greenlens/backend/services/dashboard-service/internal/models"
)

// Source tells where a displayed prediction came from.
type Source string

const (
	SourceBackend  Source = "backend"
	SourceFallback Source = "fallback"
)

const (
	fallbackCO2Factor = 0.3
	fallbackESGBase   = 100.0
	fallbackESGScale  = 10.0
)

// Prediction is the value pair shown in the status panel.
type Prediction struct {
	CO2Kg    float64  `json:"predicted_CO2_kg"`
	ESGScore *float64 `json:"esg_score"`
	Source   Source   `json:"source"`
}

func (p Prediction) sameValues(other Prediction) bool {
	if p.CO2Kg != other.CO2Kg {
		return false
	}
	if p.ESGScore == nil || other.ESGScore == nil {
		return p.ESGScore == nil && other.ESGScore == nil
	}
	return *p.ESGScore == *other.ESGScore
}

// Fallback computes the local deterministic estimate for a reading.
func Fallback(reading float64) Prediction {
	co2 := clients.Round2(reading * fallbackCO2Factor)
	esg := math.Max(0, clients.Round2(fallbackESGBase-co2/fallbackESGScale))
	return Prediction{CO2Kg: co2, ESGScore: &esg, Source: SourceFallback}
}

// ParseNumber accepts JSON numbers and numeric strings. Anything else, including
// empty strings and non-finite values, is reported as unusable.
func ParseNumber(v interface{}) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Reconciler turns backend answers into displayed predictions, remembering the last one.
type Reconciler struct {
	last *Prediction
}

// NewReconciler returns an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Reconcile accepts a usable, changed backend prediction or falls back to the local estimate.
// A nil response (failed request) always falls back.
func (r *Reconciler) Reconcile(resp *models.PredictResponse, reading float64) Prediction {
	if candidate, ok := fromBackend(resp); ok {
		if r.last == nil || !r.last.sameValues(candidate) {
			r.remember(candidate)
			return candidate
		}
	}
	fallback := Fallback(reading)
	r.remember(fallback)
	return fallback
}

// Last returns a copy of the last displayed prediction.
func (r *Reconciler) Last() *Prediction {
	if r.last == nil {
		return nil
	}
	return clonePrediction(r.last)
}

func (r *Reconciler) remember(p Prediction) {
	r.last = clonePrediction(&p)
}

func fromBackend(resp *models.PredictResponse) (Prediction, bool) {
	if resp == nil {
		return Prediction{}, false
	}
	co2, ok := ParseNumber(resp.PredictedCO2Kg)
	if !ok {
		return Prediction{}, false
	}
	p := Prediction{CO2Kg: clients.Round2(co2), Source: SourceBackend}
	if esg, ok := ParseNumber(resp.ESGScore); ok {
		rounded := clients.Round2(esg)
		p.ESGScore = &rounded
	}
	return p, true
}

func clonePrediction(p *Prediction) *Prediction {
	out := *p
	if p.ESGScore != nil {
		esg := *p.ESGScore
		out.ESGScore = &esg
	}
	return &out
}
