package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/clients"
	"greenlens/backend/services/dashboard-service/internal/models"
)

// InitialMessage is shown until the first live-data answer arrives.
const InitialMessage = "Loading data..."

// Phase is the poll-cycle state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseFetching   Phase = "fetching"
	PhasePredicting Phase = "predicting"
	PhaseStopped    Phase = "stopped"
)

// Backend is the subset of the GreenLens client the dashboard polls.
type Backend interface {
	GetLiveData(ctx context.Context) (*models.LiveData, error)
	PredictCO2(ctx context.Context, req models.PredictRequest) (*models.PredictResponse, error)
}

// Sink receives every applied prediction (history, telemetry forwarding).
type Sink interface {
	RecordPrediction(ctx context.Context, rec PredictionRecord) error
}

// PredictionRecord describes one applied prediction.
type PredictionRecord struct {
	Tick       uint64     `json:"tick"`
	Basis      Basis      `json:"basis"`
	Reading    float64    `json:"reading"`
	Prediction Prediction `json:"prediction"`
	RecordedAt time.Time  `json:"recorded_at"`
}

// Snapshot is a copy of the dashboard state for rendering.
type Snapshot struct {
	Version     uint64      `json:"version"`
	Tick        uint64      `json:"tick"`
	Labels      []string    `json:"labels"`
	Usage       []float64   `json:"usage"`
	Message     string      `json:"message"`
	Prediction  *Prediction `json:"prediction"`
	Predicting  bool        `json:"predicting"`
	Phase       Phase       `json:"phase"`
	ThresholdKW float64     `json:"threshold_kw"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

const (
	DefaultTolerance   = 0.01
	DefaultSinkTimeout = 5 * time.Second
)

// Options configure a Dashboard. Zero values take the defaults.
type Options struct {
	Interval    time.Duration
	Tolerance   float64
	Window      int
	ThresholdKW float64
	Company     string
	// SinkTimeout bounds each RecordPrediction call.
	SinkTimeout time.Duration
	Now         func() time.Time
}

func (o *Options) applyDefaults() {
	if o.Interval <= 0 {
		o.Interval = 6 * time.Second
	}
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.Window < 1 {
		o.Window = 3
	}
	if o.SinkTimeout <= 0 {
		o.SinkTimeout = DefaultSinkTimeout
	}
	if o.ThresholdKW == 0 {
		o.ThresholdKW = 1000
	}
	if o.Company == "" {
		o.Company = "GreenLens"
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Dashboard polls live data, keeps the chart series and reconciles predictions.
//
// Every poll gets a tick number. Ticks may overlap when the backend is slow; results
// from an older tick are dropped once a newer tick has applied its own.
type Dashboard struct {
	backend Backend
	opts    Options
	logger  *zap.Logger

	mu             sync.Mutex
	detector       *ChangeDetector
	reconciler     *Reconciler
	usage          []float64
	labels         []string
	message        string
	prediction     *Prediction
	lastTick       uint64
	telemetryTick  uint64
	predictionTick uint64
	fetching       int
	predicting     int
	stopped        bool
	version        uint64
	updatedAt      time.Time
	listeners      []func(Snapshot)
	sinks          []Sink

	wg sync.WaitGroup
}

// New builds a dashboard; call Start to begin polling.
func New(backend Backend, opts Options, logger *zap.Logger) *Dashboard {
	opts.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dashboard{
		backend:    backend,
		opts:       opts,
		logger:     logger,
		detector:   NewChangeDetector(opts.Tolerance, opts.Window),
		reconciler: NewReconciler(),
		usage:      []float64{},
		labels:     []string{},
		message:    InitialMessage,
	}
}

// OnUpdate registers fn to be called with a fresh snapshot after every state change.
// Register before Start.
func (d *Dashboard) OnUpdate(fn func(Snapshot)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// AddSink registers a prediction sink. Register before Start.
func (d *Dashboard) AddSink(s Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sinks = append(d.sinks, s)
}

// Start polls immediately and then on every interval until ctx is done.
// In-flight requests are not aborted on stop, but their results are discarded.
// Start returns once every spawned poll has finished.
func (d *Dashboard) Start(ctx context.Context) {
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	d.logger.Info("dashboard poller started", zap.Duration("interval", d.opts.Interval))
	d.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			d.stop()
			d.wg.Wait()
			d.logger.Info("dashboard poller stopped")
			return
		case <-ticker.C:
			d.spawn(ctx)
		}
	}
}

func (d *Dashboard) spawn(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.Poll(context.WithoutCancel(ctx))
	}()
}

func (d *Dashboard) stop() {
	d.mu.Lock()
	d.stopped = true
	d.bump()
	d.mu.Unlock()
	d.notify()
}

// Poll runs one full cycle: fetch telemetry, detect change, predict and reconcile.
func (d *Dashboard) Poll(ctx context.Context) {
	tick, ok := d.beginTick()
	if !ok {
		return
	}
	d.notify()

	data, err := d.backend.GetLiveData(ctx)
	if err == nil && data.UsageData == nil {
		err = errors.New("live data without usage_data")
	}
	if err != nil {
		d.logger.Warn("live data fetch failed", zap.Uint64("tick", tick), zap.Error(err))
		d.endFetch()
		d.notify()
		return
	}

	trigger, due := d.applyTelemetry(tick, data)
	d.notify()
	if !due {
		return
	}

	d.logger.Debug("requesting prediction",
		zap.Uint64("tick", tick),
		zap.String("basis", string(trigger.Basis)),
		zap.Float64("value", trigger.Value),
		zap.Float64("last", trigger.Last),
		zap.Float64("avg", trigger.Avg),
	)
	req := clients.NewPredictRequest(d.opts.Company, trigger.Value, d.opts.Now())
	resp, err := d.backend.PredictCO2(ctx, req)
	if err != nil {
		d.logger.Warn("prediction request failed, using fallback", zap.Uint64("tick", tick), zap.Error(err))
		resp = nil
	}

	rec, applied := d.applyPrediction(tick, trigger, resp)
	d.notify()
	if applied {
		d.record(ctx, rec)
	}
}

func (d *Dashboard) beginTick() (uint64, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return 0, false
	}
	d.lastTick++
	d.fetching++
	d.bump()
	return d.lastTick, true
}

func (d *Dashboard) endFetch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetching--
	d.bump()
}

func (d *Dashboard) applyTelemetry(tick uint64, data *models.LiveData) (Trigger, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetching--
	d.bump()

	if d.stopped {
		return Trigger{}, false
	}
	if tick < d.telemetryTick {
		d.logger.Debug("dropping stale telemetry", zap.Uint64("tick", tick), zap.Uint64("current", d.telemetryTick))
		return Trigger{}, false
	}
	d.telemetryTick = tick

	d.usage = append([]float64(nil), data.UsageData...)
	d.labels = Labels(len(d.usage))
	d.message = data.Message
	d.updatedAt = d.opts.Now()

	trigger, due := d.detector.Evaluate(d.usage)
	if due {
		d.predicting++
	}
	return trigger, due
}

func (d *Dashboard) applyPrediction(tick uint64, trigger Trigger, resp *models.PredictResponse) (PredictionRecord, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.predicting--
	d.bump()

	if d.stopped {
		return PredictionRecord{}, false
	}
	if tick < d.predictionTick {
		d.logger.Debug("dropping stale prediction", zap.Uint64("tick", tick), zap.Uint64("current", d.predictionTick))
		return PredictionRecord{}, false
	}
	d.predictionTick = tick

	p := d.reconciler.Reconcile(resp, trigger.Value)
	d.prediction = clonePrediction(&p)
	d.updatedAt = d.opts.Now()

	if p.Source == SourceFallback {
		d.logger.Debug("using fallback prediction", zap.Uint64("tick", tick), zap.Float64("co2_kg", p.CO2Kg))
	}

	return PredictionRecord{
		Tick:       tick,
		Basis:      trigger.Basis,
		Reading:    trigger.Value,
		Prediction: p,
		RecordedAt: d.updatedAt,
	}, true
}

func (d *Dashboard) record(ctx context.Context, rec PredictionRecord) {
	d.mu.Lock()
	sinks := append([]Sink(nil), d.sinks...)
	d.mu.Unlock()

	for _, s := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, d.opts.SinkTimeout)
		err := s.RecordPrediction(sinkCtx, rec)
		cancel()
		if err != nil {
			d.logger.Warn("prediction sink failed", zap.Uint64("tick", rec.Tick), zap.Error(err))
		}
	}
}

// bump marks a state change; callers hold d.mu.
func (d *Dashboard) bump() {
	d.version++
}

func (d *Dashboard) notify() {
	d.mu.Lock()
	snap := d.snapshotLocked()
	listeners := append([]func(Snapshot){}, d.listeners...)
	d.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

// Snapshot returns a copy of the current state.
func (d *Dashboard) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Dashboard) snapshotLocked() Snapshot {
	snap := Snapshot{
		Version:     d.version,
		Tick:        d.telemetryTick,
		Labels:      append([]string{}, d.labels...),
		Usage:       append([]float64{}, d.usage...),
		Message:     d.message,
		Predicting:  d.predicting > 0,
		Phase:       d.phaseLocked(),
		ThresholdKW: d.opts.ThresholdKW,
		UpdatedAt:   d.updatedAt,
	}
	if d.prediction != nil {
		snap.Prediction = clonePrediction(d.prediction)
	}
	return snap
}

func (d *Dashboard) phaseLocked() Phase {
	switch {
	case d.stopped:
		return PhaseStopped
	case d.predicting > 0:
		return PhasePredicting
	case d.fetching > 0:
		return PhaseFetching
	default:
		return PhaseIdle
	}
}

// Labels returns the 1-based ordinal chart labels for n readings.
func Labels(n int) []string {
	labels := make([]string, n)
	for i := range labels {
		labels[i] = fmt.Sprintf("Reading %d", i+1)
	}
	return labels
}
