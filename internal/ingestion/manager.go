package ingestion

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mr1hm/go-rupture-hazard/internal/config"
	"github.com/mr1hm/go-rupture-hazard/internal/metrics"
	"github.com/mr1hm/go-rupture-hazard/internal/models"
	"github.com/mr1hm/go-rupture-hazard/internal/repository"
	"github.com/mr1hm/go-rupture-hazard/internal/stream"
	"github.com/mr1hm/go-rupture-hazard/internal/worker"
)

type Manager struct {
	cfg         *config.Config
	repo        repository.EventRepository
	broadcaster *stream.Broadcaster
	metrics     *metrics.Metrics
	client      *http.Client
	pool        *worker.WorkerPool[*models.Event]
	wg          sync.WaitGroup
}

func NewManager(cfg *config.Config, repo repository.EventRepository, broadcaster *stream.Broadcaster, m *metrics.Metrics) *Manager {
	return &Manager{
		cfg:         cfg,
		repo:        repo,
		broadcaster: broadcaster,
		metrics:     m,
		client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
	}
}

func (m *Manager) Start(ctx context.Context) {
	m.pool = worker.NewWorkerPool("ingestion", m.cfg.Worker.Count, m.cfg.Worker.BufferSize, m.store)
	m.pool.Start(ctx)

	if m.cfg.Sources.USGSEnabled {
		m.wg.Add(1)
		go m.runPoller(ctx, models.SourceUSGS, m.cfg.Sources.USGSURL, m.cfg.Sources.USGSPollInterval)
	}
}

// store catalogs one event unless it is already known.
func (m *Manager) store(ctx context.Context, e *models.Event) error {
	exists, err := m.repo.Exists(ctx, e.ID)
	if err != nil {
		slog.Error("error checking existence", "id", e.ID, "error", err)
		return err
	}
	if exists {
		return nil
	}

	if err := m.repo.Add(ctx, e); err != nil {
		slog.Error("error adding event", "id", e.ID, "error", err)
		if m.metrics != nil {
			m.metrics.EventRejected(e.Source, err)
		}
		return err
	}

	if m.metrics != nil {
		m.metrics.EventStored(e.Source)
	}
	if m.broadcaster != nil {
		m.broadcaster.Broadcast(e)
	}

	r := e.Rupture()
	slog.Info("added event", "id", e.ID, "source", e.Source, "magnitude", r.Magnitude(), "trt", r.TectonicRegionType())
	return nil
}

func (m *Manager) runPoller(ctx context.Context, source, url string, interval time.Duration) {
	defer m.wg.Done()
	slog.Info("starting poller", "source", source, "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial poll
	m.poll(ctx, source, url)

	for {
		select {
		case <-ctx.Done():
			slog.Info("poller shutting down", "source", source)
			return
		case <-ticker.C:
			m.poll(ctx, source, url)
		}
	}
}

func (m *Manager) poll(ctx context.Context, source, url string) {
	slog.Debug("polling", "source", source)

	var (
		events   []*models.Event
		rejected []rejection
		err      error
	)

	switch source {
	case models.SourceUSGS:
		events, rejected, err = m.pollUSGS(ctx, url)
	}
	if err != nil {
		slog.Error("poll failed", "source", source, "error", err)
		return
	}

	for _, r := range rejected {
		slog.Warn("event rejected", "source", source, "id", r.ID, "error", r.Err)
		if m.metrics != nil {
			m.metrics.EventRejected(source, r.Err)
		}
	}

	for _, e := range events {
		if err := m.pool.Submit(ctx, e); err != nil {
			slog.Debug("poll interrupted", "source", source, "error", err)
			return
		}
	}

	slog.Debug("poll complete", "source", source, "count", len(events), "rejected", len(rejected))
}

func (m *Manager) Stop() {
	m.wg.Wait()
	if m.pool != nil {
		m.pool.Stop()
	}
	m.client.CloseIdleConnections()
	slog.Info("ingestion manager stopped")
}
