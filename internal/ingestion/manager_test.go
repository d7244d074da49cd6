package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/mr1hm/go-rupture-hazard/internal/config"
	"github.com/mr1hm/go-rupture-hazard/internal/geo"
	"github.com/mr1hm/go-rupture-hazard/internal/metrics"
	"github.com/mr1hm/go-rupture-hazard/internal/models"
	"github.com/mr1hm/go-rupture-hazard/internal/repository"
	"github.com/mr1hm/go-rupture-hazard/internal/rupture"
	"github.com/mr1hm/go-rupture-hazard/internal/stream"
	"github.com/mr1hm/go-rupture-hazard/internal/tectonic"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mockEventRepo implements repository.EventRepository for testing
type mockEventRepo struct {
	mu       sync.Mutex
	events   map[string]*models.Event
	addCount atomic.Int64
}

func newMockRepo() *mockEventRepo {
	return &mockEventRepo{
		events: make(map[string]*models.Event),
	}
}

func (m *mockEventRepo) Add(ctx context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = e
	m.addCount.Add(1)
	return nil
}

func (m *mockEventRepo) GetByID(ctx context.Context, id string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[id], nil
}

func (m *mockEventRepo) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, exists := m.events[id]
	return exists, nil
}

func (m *mockEventRepo) ListEvents(ctx context.Context, opts repository.Filter) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var results []models.Event
	for _, e := range m.events {
		results = append(results, *e)
	}
	return results, nil
}

func (m *mockEventRepo) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.events)), nil
}

func testConfig(workers, buffer int) *config.Config {
	return &config.Config{
		Worker: config.WorkerConfig{
			Count:      workers,
			BufferSize: buffer,
		},
		Sources: config.SourcesConfig{
			USGSEnabled:      false,
			USGSPollInterval: time.Minute,
			USGSRegionType:   string(tectonic.ActiveShallowCrust),
		},
	}
}

func testEvent(t *testing.T, id string, mag float64) *models.Event {
	t.Helper()
	hypo := &geo.Point{Longitude: 139.0, Latitude: 35.0, Depth: 10}
	r, err := rupture.New(mag, 0, tectonic.ActiveShallowCrust, hypo, geo.NewPointSurface(*hypo))
	if err != nil {
		t.Fatalf("rupture.New failed: %v", err)
	}
	return &models.Event{
		ID:            id,
		Source:        "test",
		Deterministic: r,
		CreatedAt:     time.Now(),
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

const testFeed = `{
  "type": "FeatureCollection",
  "features": [
    {"id": "us1", "properties": {"mag": 5.2, "place": "10 km N of Somewhere", "time": 1700000000000, "title": "M 5.2 - 10 km N of Somewhere"},
     "geometry": {"type": "Point", "coordinates": [139.1, 35.2, 10.5]}},
    {"id": "nc2", "properties": {"mag": 1.1, "place": "The Geysers", "time": 1700000001000, "title": "M 1.1 - The Geysers"},
     "geometry": {"type": "Point", "coordinates": [-122.8, 38.8, -0.5]}},
    {"id": "ak3", "properties": {"mag": null, "place": "Alaska", "time": 1700000002000, "title": "Unknown"},
     "geometry": {"type": "Point", "coordinates": [-150.0, 61.0, 30.0]}},
    {"id": "hv4", "properties": {"mag": 2.0, "place": "Hawaii", "time": 1700000003000, "title": "M 2.0 - Hawaii"},
     "geometry": {"type": "Point", "coordinates": [-155.0, 19.0]}}
  ]
}`

func TestParseUSGS(t *testing.T) {
	now := time.Now()
	events, rejected, err := parseUSGS(strings.NewReader(testFeed), tectonic.SubductionInterface, now)
	if err != nil {
		t.Fatalf("parseUSGS failed: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID != "usgs_us1" {
		t.Errorf("expected ID usgs_us1, got %s", e.ID)
	}
	r := e.Rupture()
	if r.Magnitude() != 5.2 || r.Rake() != 0 || r.TectonicRegionType() != tectonic.SubductionInterface {
		t.Errorf("unexpected rupture fields: mag=%f rake=%f trt=%s", r.Magnitude(), r.Rake(), r.TectonicRegionType())
	}
	if h := r.Hypocenter(); h.Longitude != 139.1 || h.Latitude != 35.2 || h.Depth != 10.5 {
		t.Errorf("unexpected hypocenter: %+v", h)
	}
	if !e.OccurredAt.Equal(time.UnixMilli(1700000000000)) {
		t.Errorf("unexpected occurred_at: %v", e.OccurredAt)
	}

	if len(rejected) != 3 {
		t.Fatalf("expected 3 rejections, got %d", len(rejected))
	}
	want := map[string]string{
		"usgs_nc2": metrics.ReasonInvalidArgument,
		"usgs_ak3": metrics.ReasonMalformed,
		"usgs_hv4": metrics.ReasonMalformed,
	}
	for _, r := range rejected {
		if got := metrics.Reason(r.Err); got != want[r.ID] {
			t.Errorf("rejection %s: expected reason %s, got %s (%v)", r.ID, want[r.ID], got, r.Err)
		}
	}
	if rejected[0].Err.Error() != "rupture hypocenter must have positive depth" {
		t.Errorf("unexpected rejection message: %q", rejected[0].Err.Error())
	}
}

func TestParseUSGS_BadJSON(t *testing.T) {
	if _, _, err := parseUSGS(strings.NewReader("{"), tectonic.ActiveShallowCrust, time.Now()); err == nil {
		t.Error("expected decode error")
	}
}

func TestManager_StartStop(t *testing.T) {
	repo := newMockRepo()
	mgr := NewManager(testConfig(2, 10), repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())

	// Start should not block
	mgr.Start(ctx)

	time.Sleep(50 * time.Millisecond)

	cancel()
	mgr.Stop()
}

func TestManager_StopWithoutStart(t *testing.T) {
	mgr := NewManager(testConfig(1, 10), newMockRepo(), nil, nil)
	mgr.Stop()
}

func TestManager_PollsUSGS(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, testFeed)
	}))
	defer srv.Close()

	cfg := testConfig(2, 10)
	cfg.Sources.USGSEnabled = true
	cfg.Sources.USGSURL = srv.URL

	repo := newMockRepo()
	b := stream.NewBroadcaster(10)
	id, ch := b.Subscribe()
	defer b.Unsubscribe(id)

	mgr := NewManager(cfg, repo, b, metrics.New())

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	waitFor(t, func() bool { return repo.addCount.Load() == 1 })

	cancel()
	mgr.Stop()

	if hits.Load() != 1 {
		t.Errorf("expected 1 feed request, got %d", hits.Load())
	}
	if _, ok := repo.events["usgs_us1"]; !ok {
		t.Error("expected usgs_us1 to be stored")
	}

	select {
	case e := <-ch:
		if e.ID != "usgs_us1" {
			t.Errorf("expected broadcast of usgs_us1, got %s", e.ID)
		}
	case <-time.After(time.Second):
		t.Error("expected stored event to be broadcast")
	}
}

func TestManager_PollUSGSStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(1, 10)
	cfg.Sources.USGSURL = srv.URL

	mgr := NewManager(cfg, newMockRepo(), nil, nil)
	_, _, err := mgr.pollUSGS(context.Background(), srv.URL)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Errorf("expected status error, got %v", err)
	}
	mgr.client.CloseIdleConnections()
}

func TestManager_SkipsDuplicates(t *testing.T) {
	repo := newMockRepo()
	mgr := NewManager(testConfig(1, 10), repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	e := testEvent(t, "dup", 5.0)
	for i := 0; i < 3; i++ {
		mgr.pool.Submit(ctx, e)
	}

	time.Sleep(50 * time.Millisecond)

	cancel()
	mgr.Stop()

	if repo.addCount.Load() != 1 {
		t.Errorf("expected 1 add, got %d", repo.addCount.Load())
	}
}

// failingRepo rejects every Add.
type failingRepo struct {
	*mockEventRepo
}

func (f failingRepo) Add(ctx context.Context, e *models.Event) error {
	return errors.New("disk full")
}

func TestManager_StoreError(t *testing.T) {
	mgr := NewManager(testConfig(1, 10), failingRepo{newMockRepo()}, nil, metrics.New())

	err := mgr.store(context.Background(), testEvent(t, "x", 5.0))
	if err == nil {
		t.Error("expected store error")
	}
}

func TestManager_ConcurrentSubmit(t *testing.T) {
	repo := newMockRepo()
	mgr := NewManager(testConfig(4, 100), repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	var wg sync.WaitGroup
	numGoroutines := 10
	numPerGoroutine := 50

	batches := make([][]*models.Event, numGoroutines)
	for i := range batches {
		for j := 0; j < numPerGoroutine; j++ {
			batches[i] = append(batches[i], testEvent(t, fmt.Sprintf("test_%d_%d", i, j), 4.5))
		}
	}

	for _, batch := range batches {
		wg.Add(1)
		go func(batch []*models.Event) {
			defer wg.Done()
			for _, e := range batch {
				mgr.pool.Submit(ctx, e)
			}
		}(batch)
	}

	wg.Wait()

	waitFor(t, func() bool { return repo.addCount.Load() == int64(numGoroutines*numPerGoroutine) })

	cancel()
	mgr.Stop()
}

func TestManager_GracefulShutdown(t *testing.T) {
	repo := newMockRepo()
	mgr := NewManager(testConfig(2, 100), repo, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	mgr.Start(ctx)

	for i := 0; i < 50; i++ {
		mgr.pool.Submit(ctx, testEvent(t, fmt.Sprintf("shutdown_test_%d", i), 3.0))
	}

	// Immediately cancel
	cancel()

	done := make(chan struct{})
	go func() {
		mgr.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("manager.Stop() timed out - possible goroutine leak")
	}
}
