package stream

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru"
	log "github.com/sirupsen/logrus"

	"github.com/fawad-mazhar/statusboard/internal/metrics"
	"github.com/fawad-mazhar/statusboard/internal/models"
)

// ExecutionStore lists the most recent executions, oldest first
type ExecutionStore interface {
	RecentExecutions(ctx context.Context, job string, limit int) ([]models.ExecutionSnapshot, error)
}

// StoreSource polls an ExecutionStore and delivers every execution whose
// encoding changed since it was last delivered, or since Reset.
type StoreSource struct {
	store    ExecutionStore
	job      string
	limit    int
	interval time.Duration
	seen     *lru.Cache
	logger   *log.Entry
}

func NewStoreSource(store ExecutionStore, job string, limit int, interval time.Duration, logger *log.Entry) (*StoreSource, error) {
	seen, err := lru.New(seenCacheSize)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	return &StoreSource{
		store:    store,
		job:      job,
		limit:    limit,
		interval: interval,
		seen:     seen,
		logger:   logger,
	}, nil
}

func (s *StoreSource) Name() string {
	return "postgres"
}

func (s *StoreSource) Reset() {
	s.seen.Purge()
}

func (s *StoreSource) Run(ctx context.Context, handle Handler) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.poll(ctx, handle); err != nil && ctx.Err() == nil {
			s.logger.WithError(err).Warn("Failed to read executions, retrying on next tick")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *StoreSource) poll(ctx context.Context, handle Handler) error {
	executions, err := s.store.RecentExecutions(ctx, s.job, s.limit)
	if err != nil {
		return err
	}

	for i := range executions {
		payload, err := executions[i].ToJSON()
		if err != nil {
			s.logger.WithError(err).WithField("execution", executions[i].ID).Warn("Failed to encode execution")
			continue
		}
		if seen, _ := s.seen.ContainsOrAdd(string(payload), struct{}{}); seen {
			continue
		}
		metrics.RecordMessageReceived(s.Name())
		handle(payload)
	}
	return nil
}
