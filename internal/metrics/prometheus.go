// Package metrics provides Prometheus metrics for the GitLite server.
package metrics

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// CountStore defines the interface for retrieving entity counts.
type CountStore interface {
	CountRepositories(ctx context.Context) (int64, error)
	CountFiles(ctx context.Context) (int64, error)
	CountVersions(ctx context.Context) (int64, error)
}

// refreshInterval caps how often the count gauges hit the database.
const refreshInterval = 15 * time.Second

// Collector owns the server's Prometheus metrics and refreshes the entity
// count gauges on demand.
type Collector struct {
	store  CountStore
	logger zerolog.Logger

	registry *prometheus.Registry

	repositoriesTotal prometheus.Gauge
	filesTotal        prometheus.Gauge
	versionsTotal     prometheus.Gauge

	VersionsCreated   prometheus.Counter
	DiffsComputed     prometheus.Counter
	IntegrityFailures prometheus.Counter
	IntegritySweeps   prometheus.Counter

	mu          sync.Mutex
	lastRefresh time.Time
}

// NewCollector creates a Collector with all metrics registered on a private
// registry.
func NewCollector(store CountStore, logger zerolog.Logger) *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		store:    store,
		logger:   logger.With().Str("component", "metrics").Logger(),
		registry: registry,

		repositoriesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gitlite_repositories_total",
			Help: "Total number of repositories.",
		}),
		filesTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gitlite_files_total",
			Help: "Total number of files.",
		}),
		versionsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gitlite_versions_total",
			Help: "Total number of file versions.",
		}),

		VersionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitlite_versions_created_total",
			Help: "Number of versions written since server start.",
		}),
		DiffsComputed: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitlite_diffs_computed_total",
			Help: "Number of diffs computed since server start.",
		}),
		IntegrityFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitlite_integrity_failures_total",
			Help: "Number of content hash mismatches detected.",
		}),
		IntegritySweeps: factory.NewCounter(prometheus.CounterOpts{
			Name: "gitlite_integrity_sweeps_total",
			Help: "Number of completed integrity sweeps.",
		}),
	}
}

// Handler returns the HTTP handler serving the exposition endpoint. The
// count gauges are refreshed before each scrape, rate limited to one
// database round trip per refresh interval.
func (c *Collector) Handler() http.Handler {
	promHandler := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.refresh(r.Context())
		promHandler.ServeHTTP(w, r)
	})
}

func (c *Collector) refresh(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.lastRefresh) < refreshInterval {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	repos, err := c.store.CountRepositories(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to count repositories")
		return
	}
	files, err := c.store.CountFiles(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to count files")
		return
	}
	versions, err := c.store.CountVersions(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to count versions")
		return
	}

	c.repositoriesTotal.Set(float64(repos))
	c.filesTotal.Set(float64(files))
	c.versionsTotal.Set(float64(versions))
	c.lastRefresh = time.Now()
}
