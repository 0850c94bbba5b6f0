package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"greenlens/backend/services/dashboard-service/internal/models"
)

type fakeBackend struct {
	mu        sync.Mutex
	live      func(call int) (*models.LiveData, error)
	predict   func(req models.PredictRequest) (*models.PredictResponse, error)
	liveCalls int
	requests  []models.PredictRequest
}

func (f *fakeBackend) GetLiveData(ctx context.Context) (*models.LiveData, error) {
	f.mu.Lock()
	f.liveCalls++
	n := f.liveCalls
	fn := f.live
	f.mu.Unlock()
	return fn(n)
}

func (f *fakeBackend) PredictCO2(ctx context.Context, req models.PredictRequest) (*models.PredictResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.predict
	f.mu.Unlock()
	if fn == nil {
		return nil, errors.New("no prediction configured")
	}
	return fn(req)
}

func (f *fakeBackend) Requests() []models.PredictRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.PredictRequest(nil), f.requests...)
}

func (f *fakeBackend) LiveCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.liveCalls
}

func staticLive(usage []float64, message string) func(int) (*models.LiveData, error) {
	return func(int) (*models.LiveData, error) {
		return &models.LiveData{UsageData: usage, Message: message}, nil
	}
}

type recordingSink struct {
	mu      sync.Mutex
	records []PredictionRecord
	err     error
}

func (s *recordingSink) RecordPrediction(ctx context.Context, rec PredictionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *recordingSink) Records() []PredictionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PredictionRecord(nil), s.records...)
}

var fixedNow = time.Date(2025, time.January, 15, 10, 0, 0, 0, time.UTC)

func newTestDashboard(backend Backend) *Dashboard {
	return New(backend, Options{
		Interval:  time.Hour,
		Tolerance: 0.01,
		Window:    3,
		Company:   "Acme",
		Now:       func() time.Time { return fixedNow },
	}, zap.NewNop())
}

func TestNewDashboardInitialState(t *testing.T) {
	d := newTestDashboard(&fakeBackend{})
	snap := d.Snapshot()

	assert.Equal(t, InitialMessage, snap.Message)
	assert.Empty(t, snap.Usage)
	assert.Empty(t, snap.Labels)
	assert.Nil(t, snap.Prediction)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.Equal(t, 1000.0, snap.ThresholdKW)
}

func TestLabels(t *testing.T) {
	assert.Equal(t, []string{"Reading 1", "Reading 2", "Reading 3"}, Labels(3))
	assert.Empty(t, Labels(0))
}

func TestPollUpdatesSeriesAndPrediction(t *testing.T) {
	backend := &fakeBackend{
		live: staticLive([]float64{700, 800, 900}, "Live feed OK"),
		predict: func(models.PredictRequest) (*models.PredictResponse, error) {
			return &models.PredictResponse{PredictedCO2Kg: 270.0, ESGScore: 73.0}, nil
		},
	}
	d := newTestDashboard(backend)

	d.Poll(context.Background())

	snap := d.Snapshot()
	assert.Equal(t, []float64{700, 800, 900}, snap.Usage)
	assert.Equal(t, []string{"Reading 1", "Reading 2", "Reading 3"}, snap.Labels)
	assert.Equal(t, "Live feed OK", snap.Message)
	assert.Equal(t, uint64(1), snap.Tick)
	assert.Equal(t, PhaseIdle, snap.Phase)
	assert.False(t, snap.Predicting)
	require.NotNil(t, snap.Prediction)
	assert.Equal(t, SourceBackend, snap.Prediction.Source)
	assert.Equal(t, 270.0, snap.Prediction.CO2Kg)
	assert.Equal(t, 73.0, *snap.Prediction.ESGScore)

	reqs := backend.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Acme", reqs[0].Company)
	assert.Equal(t, 900.0, reqs[0].TotalUsageKWh)
	assert.Equal(t, 1, reqs[0].MonthNumber)
	assert.Equal(t, 1, reqs[0].IsWinter)
}

func TestPollRequestsOnlyOnChange(t *testing.T) {
	backend := &fakeBackend{
		live: staticLive([]float64{700, 800, 900}, "ok"),
		predict: func(req models.PredictRequest) (*models.PredictResponse, error) {
			return &models.PredictResponse{PredictedCO2Kg: req.TotalUsageKWh / 4, ESGScore: 75.0}, nil
		},
	}
	d := newTestDashboard(backend)

	d.Poll(context.Background())
	d.Poll(context.Background())
	d.Poll(context.Background())

	reqs := backend.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, 900.0, reqs[0].TotalUsageKWh)
	assert.Equal(t, 800.0, reqs[1].TotalUsageKWh)
	assert.Equal(t, 3, backend.LiveCalls())
}

func TestPollFetchErrorKeepsPreviousState(t *testing.T) {
	backend := &fakeBackend{
		live: func(call int) (*models.LiveData, error) {
			if call == 2 {
				return nil, errors.New("connection refused")
			}
			return &models.LiveData{UsageData: []float64{float64(call * 100)}, Message: "ok"}, nil
		},
	}
	d := newTestDashboard(backend)

	d.Poll(context.Background())
	first := d.Snapshot()
	assert.Equal(t, []float64{100}, first.Usage)

	d.Poll(context.Background())
	second := d.Snapshot()
	assert.Equal(t, first.Usage, second.Usage)
	assert.Equal(t, first.Prediction, second.Prediction)
	assert.Equal(t, PhaseIdle, second.Phase)

	d.Poll(context.Background())
	assert.Equal(t, []float64{300}, d.Snapshot().Usage)
}

func TestPollMissingUsageIsAFailure(t *testing.T) {
	backend := &fakeBackend{
		live: func(int) (*models.LiveData, error) {
			return &models.LiveData{Message: "half an answer"}, nil
		},
	}
	d := newTestDashboard(backend)

	d.Poll(context.Background())

	snap := d.Snapshot()
	assert.Equal(t, InitialMessage, snap.Message)
	assert.Empty(t, snap.Usage)
	assert.Empty(t, backend.Requests())
}

func TestPollPredictErrorUsesFallback(t *testing.T) {
	backend := &fakeBackend{
		live: staticLive([]float64{1000}, "ok"),
		predict: func(models.PredictRequest) (*models.PredictResponse, error) {
			return nil, errors.New("503 Service Unavailable")
		},
	}
	d := newTestDashboard(backend)

	d.Poll(context.Background())

	snap := d.Snapshot()
	require.NotNil(t, snap.Prediction)
	assert.Equal(t, SourceFallback, snap.Prediction.Source)
	assert.Equal(t, 300.0, snap.Prediction.CO2Kg)
	assert.Equal(t, 70.0, *snap.Prediction.ESGScore)
}

func TestPollDropsStaleTelemetry(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := &fakeBackend{
		live: func(call int) (*models.LiveData, error) {
			if call == 1 {
				close(entered)
				<-release
				return &models.LiveData{UsageData: []float64{999}, Message: "old"}, nil
			}
			return &models.LiveData{UsageData: []float64{500}, Message: "new"}, nil
		},
		predict: func(req models.PredictRequest) (*models.PredictResponse, error) {
			return &models.PredictResponse{PredictedCO2Kg: req.TotalUsageKWh}, nil
		},
	}
	d := newTestDashboard(backend)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Poll(context.Background())
	}()
	<-entered

	d.Poll(context.Background())
	close(release)
	<-done

	snap := d.Snapshot()
	assert.Equal(t, []float64{500}, snap.Usage)
	assert.Equal(t, "new", snap.Message)
	assert.Equal(t, uint64(2), snap.Tick)
	require.Len(t, backend.Requests(), 1)
	assert.Equal(t, 500.0, snap.Prediction.CO2Kg)
}

func TestPollDropsStalePrediction(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	backend := &fakeBackend{
		live: func(call int) (*models.LiveData, error) {
			return &models.LiveData{UsageData: []float64{float64(call * 100)}}, nil
		},
		predict: func(req models.PredictRequest) (*models.PredictResponse, error) {
			if req.TotalUsageKWh == 100 {
				close(entered)
				<-release
			}
			return &models.PredictResponse{PredictedCO2Kg: req.TotalUsageKWh, ESGScore: 50.0}, nil
		},
	}
	d := newTestDashboard(backend)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Poll(context.Background())
	}()
	<-entered
	assert.True(t, d.Snapshot().Predicting)
	assert.Equal(t, PhasePredicting, d.Snapshot().Phase)

	d.Poll(context.Background())
	close(release)
	<-done

	snap := d.Snapshot()
	require.NotNil(t, snap.Prediction)
	assert.Equal(t, 200.0, snap.Prediction.CO2Kg)
	assert.False(t, snap.Predicting)
}

func TestSinksAndListenersReceiveUpdates(t *testing.T) {
	backend := &fakeBackend{
		live: staticLive([]float64{700, 800, 900}, "ok"),
		predict: func(models.PredictRequest) (*models.PredictResponse, error) {
			return &models.PredictResponse{PredictedCO2Kg: 270.0, ESGScore: 73.0}, nil
		},
	}
	d := newTestDashboard(backend)

	failing := &recordingSink{err: errors.New("disk full")}
	sink := &recordingSink{}
	d.AddSink(failing)
	d.AddSink(sink)

	var (
		mu    sync.Mutex
		snaps []Snapshot
	)
	d.OnUpdate(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		snaps = append(snaps, s)
	})

	d.Poll(context.Background())

	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, BasisLast, records[0].Basis)
	assert.Equal(t, 900.0, records[0].Reading)
	assert.Equal(t, uint64(1), records[0].Tick)
	assert.Equal(t, fixedNow, records[0].RecordedAt)
	assert.Len(t, failing.Records(), 1)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snaps)
	for i := 1; i < len(snaps); i++ {
		assert.GreaterOrEqual(t, snaps[i].Version, snaps[i-1].Version)
	}
	assert.Equal(t, d.Snapshot(), snaps[len(snaps)-1])
}

func TestStartPollsUntilCancelled(t *testing.T) {
	backend := &fakeBackend{live: staticLive([]float64{10, 20}, "ok")}
	d := New(backend, Options{Interval: 5 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Start(ctx)
	}()

	require.Eventually(t, func() bool { return backend.LiveCalls() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	calls := backend.LiveCalls()
	assert.Equal(t, PhaseStopped, d.Snapshot().Phase)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, backend.LiveCalls())

	d.Poll(context.Background())
	assert.Equal(t, calls, backend.LiveCalls())
}

func TestStartDiscardsResultsArrivingAfterStop(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	backend := &fakeBackend{
		live: func(int) (*models.LiveData, error) {
			once.Do(func() { close(entered) })
			<-release
			return &models.LiveData{UsageData: []float64{42}, Message: "late"}, nil
		},
	}
	d := newTestDashboard(backend)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Start(ctx)
	}()

	<-entered
	cancel()
	require.Eventually(t, func() bool { return d.Snapshot().Phase == PhaseStopped }, time.Second, time.Millisecond)
	close(release)
	<-done

	snap := d.Snapshot()
	assert.Empty(t, snap.Usage)
	assert.Equal(t, InitialMessage, snap.Message)
	assert.Empty(t, backend.Requests())
}

func TestZeroOptionsUseDefaults(t *testing.T) {
	backend := &fakeBackend{
		live: func(call int) (*models.LiveData, error) {
			if call == 1 {
				return &models.LiveData{UsageData: []float64{1000}}, nil
			}
			return &models.LiveData{UsageData: []float64{1000.005}}, nil
		},
	}
	d := New(backend, Options{}, nil)
	assert.Equal(t, DefaultTolerance, d.opts.Tolerance)
	assert.Equal(t, DefaultSinkTimeout, d.opts.SinkTimeout)

	d.Poll(context.Background())
	d.Poll(context.Background())

	assert.Len(t, backend.Requests(), 1)
	assert.Equal(t, []float64{1000.005}, d.Snapshot().Usage)
}

type stallingSink struct {
	mu  sync.Mutex
	err error
}

func (s *stallingSink) RecordPrediction(ctx context.Context, rec PredictionRecord) error {
	<-ctx.Done()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = ctx.Err()
	return s.err
}

func (s *stallingSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func TestSinkCallsAreBoundedByTimeout(t *testing.T) {
	backend := &fakeBackend{live: staticLive([]float64{500}, "ok")}
	d := New(backend, Options{SinkTimeout: 20 * time.Millisecond, Now: func() time.Time { return fixedNow }}, zap.NewNop())

	stalled := &stallingSink{}
	after := &recordingSink{}
	d.AddSink(stalled)
	d.AddSink(after)

	done := make(chan struct{})
	go func() {
		defer close(done)
		d.Poll(context.WithoutCancel(context.Background()))
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll blocked on a stalled sink")
	}
	assert.ErrorIs(t, stalled.Err(), context.DeadlineExceeded)
	assert.Len(t, after.Records(), 1)
}
