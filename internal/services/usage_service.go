package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tenancy-service/internal/config"
	"tenancy-service/internal/metrics"
	"tenancy-service/internal/models"
)

// UsageStore is the persistence surface the usage service needs.
// Implemented by repository.UsageRepository.
type UsageStore interface {
	Increment(ctx context.Context, tenantID uuid.UUID, metric string, day time.Time, n int64) error
	SumRange(ctx context.Context, tenantID uuid.UUID, metric string, from, to time.Time) (int64, error)
}

// usageWindow returns the accounting window for a metric. API calls are
// limited per UTC day, bookings per calendar month, properties over the
// lifetime of the tenant.
func usageWindow(metric string, now time.Time) (from, to time.Time) {
	now = now.UTC()
	switch metric {
	case models.MetricAPICalls:
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 0, 1)
	case models.MetricBookings:
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return from, from.AddDate(0, 1, 0)
	default:
		return time.Time{}, now.AddDate(0, 0, 1)
	}
}

type usageIncrement struct {
	TenantID uuid.UUID
	Metric   string
	Day      time.Time
	Count    int64
}

// UsageService enforces tier limits synchronously and records consumption
// asynchronously through a bounded queue
type UsageService struct {
	repo   UsageStore
	cfg    config.UsageConfig
	logger *logrus.Logger

	queue chan usageIncrement
	wg    sync.WaitGroup
	once  sync.Once
}

// NewUsageService creates a new usage service
func NewUsageService(repo UsageStore, cfg config.UsageConfig, logger *logrus.Logger) *UsageService {
	return &UsageService{
		repo:   repo,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan usageIncrement, cfg.QueueSize),
	}
}

// Check verifies that the tenant is under its limit for metric. The read
// is synchronous and strict: if current usage cannot be determined the
// request is denied with USAGE_LIMIT_CHECK_ERROR rather than admitted.
func (s *UsageService) Check(ctx context.Context, tc models.TenantContext, metric string) error {
	limit, ok := tc.Limits.LimitFor(metric)
	if !ok {
		return ErrUsageLimitCheck(fmt.Errorf("unknown usage metric %q", metric))
	}
	if limit <= 0 {
		// Zero or negative snapshot means unlimited for this tier
		return nil
	}

	from, to := usageWindow(metric, time.Now())
	current, err := s.repo.SumRange(ctx, tc.TenantID, metric, from, to)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"tenant_id": tc.TenantID,
			"metric":    metric,
		}).WithError(err).Error("Usage limit check failed")
		return ErrUsageLimitCheck(err)
	}

	if current >= limit {
		metrics.QuotaRejections.WithLabelValues(metric).Inc()
		return ErrUsageLimitExceeded(metric, current, limit, tc.Limits)
	}
	return nil
}

// Record enqueues a usage increment. It never blocks the caller: if the
// queue is full the increment is dropped and counted, and the request
// that produced it is unaffected.
func (s *UsageService) Record(tenantID uuid.UUID, metric string, n int64) {
	if n <= 0 {
		return
	}
	inc := usageIncrement{
		TenantID: tenantID,
		Metric:   metric,
		Day:      time.Now().UTC(),
		Count:    n,
	}
	select {
	case s.queue <- inc:
	default:
		metrics.UsageDropped.Inc()
		s.logger.WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"metric":    metric,
		}).Warn("Usage recorder queue full, increment dropped")
	}
}

// Start launches the recorder workers
func (s *UsageService) Start() {
	log.Printf("[UsageService] Starting %d recorder workers (queue size %d)", s.cfg.Workers, s.cfg.QueueSize)
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Stop closes the queue and waits for the workers to drain it
func (s *UsageService) Stop() {
	s.once.Do(func() {
		close(s.queue)
	})
	s.wg.Wait()
	log.Printf("[UsageService] Recorder stopped")
}

func (s *UsageService) worker() {
	defer s.wg.Done()
	for inc := range s.queue {
		s.flush(inc)
	}
}

func (s *UsageService) flush(inc usageIncrement) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(s.cfg.FlushTimeoutMS)*time.Millisecond)
	defer cancel()

	if err := s.repo.Increment(ctx, inc.TenantID, inc.Metric, inc.Day, inc.Count); err != nil {
		// Recording is best-effort; a failed write must not surface to
		// the request that produced it
		s.logger.WithFields(logrus.Fields{
			"tenant_id": inc.TenantID,
			"metric":    inc.Metric,
		}).WithError(err).Error("Failed to record usage increment")
		return
	}
	metrics.UsageRecorded.WithLabelValues(inc.Metric).Inc()
}
