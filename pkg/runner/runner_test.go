package runner_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/infracore/eventcore/pkg/observability"
	"github.com/infracore/eventcore/pkg/runner"
)

type fakeService struct {
	name       string
	startErr   error
	stopErr    error
	started    bool
	stopped    bool
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Start(ctx context.Context) error {
	s.started = true
	return s.startErr
}

func (s *fakeService) Stop(ctx context.Context) error {
	s.stopped = true
	return s.stopErr
}

func TestRunnerStopsAllServicesOnContextCancel(t *testing.T) {
	svc1 := &fakeService{name: "one"}
	svc2 := &fakeService{name: "two"}

	r := runner.New([]runner.Service{svc1, svc2}, runner.WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.True(t, svc1.started)
	assert.True(t, svc2.started)
	assert.True(t, svc1.stopped)
	assert.True(t, svc2.stopped)
}

func TestRunnerStopsAlreadyStartedServicesWhenOneFailsToStart(t *testing.T) {
	svc1 := &fakeService{name: "one"}
	svc2 := &fakeService{name: "two", startErr: errors.New("boom")}

	r := runner.New([]runner.Service{svc1, svc2})

	err := r.Run(context.Background())

	require.Error(t, err)
	assert.True(t, svc1.started)
	assert.True(t, svc1.stopped)
	assert.False(t, svc2.stopped)
}

type healthyService struct {
	fakeService
	healthErr error
}

func (s *healthyService) HealthCheck(ctx context.Context) error { return s.healthErr }

func TestRunnerHealthCheckAggregatesServices(t *testing.T) {
	boom := errors.New("unhealthy")
	svc := &healthyService{fakeService: fakeService{name: "checked"}, healthErr: boom}

	r := runner.New([]runner.Service{svc})

	err := r.HealthCheck(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunnerRecordsServiceUpMetricAcrossStartAndStop(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observability.NewMetrics(mp.Meter("test"))
	require.NoError(t, err)

	svc := &fakeService{name: "metered"}
	r := runner.New([]runner.Service{svc}, runner.WithMetrics(metrics), runner.WithShutdownTimeout(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	cancel()

	select {
	case runErr := <-done:
		require.NoError(t, runErr)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var found bool
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == "eventcore.runner.service_up" {
				found = true
			}
		}
	}
	assert.True(t, found, "expected eventcore.runner.service_up to have been recorded")
}
