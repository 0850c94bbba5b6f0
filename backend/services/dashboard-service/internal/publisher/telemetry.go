package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/dashboard"
)

// DefaultTopic is the ThingsBoard device telemetry topic.
const DefaultTopic = "v1/devices/me/telemetry"

// Telemetry with timestamp, e.g. `{"ts": 1756742602000, "values": {"usage_kw": 900}}`.
type Telemetry struct {
	// Unix timestamp in milliseconds
	Timestamp int64                  `json:"ts"`
	Values    map[string]interface{} `json:"values"`
}

// Publisher sends raw payloads to a broker topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// TelemetrySink forwards applied predictions as device telemetry.
type TelemetrySink struct {
	publisher Publisher
	topic     string
	logger    *zap.Logger
}

// NewTelemetrySink returns a sink publishing to topic (DefaultTopic when empty).
func NewTelemetrySink(publisher Publisher, topic string, logger *zap.Logger) *TelemetrySink {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelemetrySink{publisher: publisher, topic: topic, logger: logger}
}

// NewTelemetry builds the telemetry message for one applied prediction.
func NewTelemetry(rec dashboard.PredictionRecord) Telemetry {
	values := map[string]interface{}{
		"usage_kw":         rec.Reading,
		"predicted_CO2_kg": rec.Prediction.CO2Kg,
		"source":           string(rec.Prediction.Source),
	}
	if rec.Prediction.ESGScore != nil {
		values["esg_score"] = *rec.Prediction.ESGScore
	}
	return Telemetry{Timestamp: rec.RecordedAt.UnixMilli(), Values: values}
}

// RecordPrediction publishes the record; failures are returned for the caller to log.
func (s *TelemetrySink) RecordPrediction(ctx context.Context, rec dashboard.PredictionRecord) error {
	payload, err := json.Marshal(NewTelemetry(rec))
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}
	if err := s.publisher.Publish(ctx, s.topic, payload); err != nil {
		return fmt.Errorf("publish telemetry to %s: %w", s.topic, err)
	}
	s.logger.Debug("telemetry published", zap.String("topic", s.topic), zap.Uint64("tick", rec.Tick))
	return nil
}
