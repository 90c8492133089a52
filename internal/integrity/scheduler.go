// Package integrity runs the background content hash sweep. Every stored
// version's content is re-hashed and compared against the hash recorded at
// write time, surfacing silent corruption before a read hits it.
package integrity

import (
	"context"
	"errors"
	"sync"

	"github.com/gitlite/gitlite/internal/metrics"
	"github.com/gitlite/gitlite/internal/models"
	"github.com/gitlite/gitlite/internal/vcs"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// sweepBatchSize is the number of versions loaded per page during a sweep.
const sweepBatchSize = 200

// SweepStore defines the interface for paging through stored versions.
type SweepStore interface {
	GetVersionsBatch(ctx context.Context, afterID int64, limit int) ([]*models.Version, error)
}

// SweepResult summarizes one completed sweep.
type SweepResult struct {
	Checked    int
	Mismatched int
}

// Scheduler runs periodic integrity sweeps on a cron schedule.
type Scheduler struct {
	store     SweepStore
	collector *metrics.Collector
	schedule  string
	cron      *cron.Cron
	logger    zerolog.Logger
	mu        sync.Mutex
	running   bool
}

// NewScheduler creates a new integrity sweep scheduler. The collector may be
// nil, in which case sweep outcomes are only logged.
func NewScheduler(store SweepStore, collector *metrics.Collector, schedule string, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		store:     store,
		collector: collector,
		schedule:  schedule,
		cron:      cron.New(),
		logger:    logger.With().Str("component", "integrity").Logger(),
	}
}

// Start begins the sweep schedule.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("integrity scheduler already running")
	}

	_, err := s.cron.AddFunc(s.schedule, s.runSweep)
	if err != nil {
		return err
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().Str("schedule", s.schedule).Msg("integrity scheduler started")
	return nil
}

// Stop stops the scheduler gracefully.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.logger.Info().Msg("stopping integrity scheduler")
	return s.cron.Stop()
}

func (s *Scheduler) runSweep() {
	result, err := s.Sweep(context.Background())
	if err != nil {
		s.logger.Error().Err(err).Msg("integrity sweep failed")
		return
	}

	s.logger.Info().
		Int("checked", result.Checked).
		Int("mismatched", result.Mismatched).
		Msg("integrity sweep completed")
}

// Sweep re-hashes every stored version and compares against the recorded
// hash. Mismatches are logged and counted but never modified; repair is a
// manual operation.
func (s *Scheduler) Sweep(ctx context.Context) (*SweepResult, error) {
	result := &SweepResult{}

	var afterID int64
	for {
		batch, err := s.store.GetVersionsBatch(ctx, afterID, sweepBatchSize)
		if err != nil {
			return nil, err
		}
		if len(batch) == 0 {
			break
		}

		for _, v := range batch {
			result.Checked++
			if vcs.HashContent(v.Payload()) != v.ContentHash {
				result.Mismatched++
				s.logger.Error().
					Int64("version_id", v.ID).
					Int64("file_id", v.FileID).
					Int("version_number", v.VersionNumber).
					Msg("content hash mismatch")
				if s.collector != nil {
					s.collector.IntegrityFailures.Inc()
				}
			}
		}

		afterID = batch[len(batch)-1].ID
	}

	if s.collector != nil {
		s.collector.IntegritySweeps.Inc()
	}

	return result, nil
}
