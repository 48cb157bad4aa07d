package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/serisow/docquery/services/rag_service"
)

// IndexMaintainer rebuilds the vector index when it has drifted from the
// table size. Implemented by storage.IndexManager.
type IndexMaintainer interface {
	ReindexIfNeeded(ctx context.Context) error
}

// Scheduler is the store maintenance loop. Each tick it fails documents
// stuck in processing beyond the lease (a crashed ingestion must not hold a
// document in processing forever) and keeps the vector index sized to the
// data.
type Scheduler struct {
	store         rag_service.Store
	index         IndexMaintainer
	lease         time.Duration
	checkInterval time.Duration
	logger        *slog.Logger
	stop          chan struct{}
}

func New(store rag_service.Store, index IndexMaintainer, lease, checkInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:         store,
		index:         index,
		lease:         lease,
		checkInterval: checkInterval,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("Starting maintenance scheduler",
		slog.Duration("check_interval", s.checkInterval),
		slog.Duration("processing_lease", s.lease))

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.runOnce()
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stop)
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.checkInterval)
	defer cancel()

	failed, err := s.store.FailStuckProcessing(ctx, s.lease)
	if err != nil {
		s.logger.Error("Failed to reap stuck documents",
			slog.String("error", err.Error()))
	} else if failed > 0 {
		s.logger.Warn("Failed stuck documents",
			slog.Int("count", failed),
			slog.Duration("lease", s.lease))
	}

	if s.index != nil {
		if err := s.index.ReindexIfNeeded(ctx); err != nil {
			s.logger.Error("Vector index maintenance failed",
				slog.String("error", err.Error()))
		}
	}
}
