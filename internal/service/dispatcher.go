package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/trackforge/postback-engine/internal/delivery"
	"github.com/trackforge/postback-engine/internal/domain"
	"github.com/trackforge/postback-engine/internal/observability"
	"github.com/trackforge/postback-engine/internal/ratelimit"
	"github.com/trackforge/postback-engine/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 100
	defaultConcurrency  = 16
	defaultClaimLease   = 45 * time.Second

	failReasonExhausted = "exhausted"
)

// Dispatcher polls the store for due postbacks and drives delivery attempts.
// The store is the only scheduling authority: the dispatcher holds no queue of
// its own, so a crashed cycle loses nothing beyond one poll interval.
type Dispatcher struct {
	postbacks repository.PostbackRepository
	attempts  repository.AttemptLogRepository
	client    delivery.Client
	limiter   ratelimit.RateLimiter
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time

	pollInterval time.Duration
	batchSize    int
	concurrency  int
	claimLease   time.Duration
}

type DispatcherOption func(*Dispatcher)

func WithPollInterval(interval time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

func WithBatchSize(size int) DispatcherOption {
	return func(d *Dispatcher) {
		if size > 0 {
			d.batchSize = size
		}
	}
}

func WithConcurrency(concurrency int) DispatcherOption {
	return func(d *Dispatcher) {
		if concurrency > 0 {
			d.concurrency = concurrency
		}
	}
}

func WithClaimLease(lease time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if lease > 0 {
			d.claimLease = lease
		}
	}
}

func WithClock(now func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		if now != nil {
			d.now = now
		}
	}
}

func NewDispatcher(
	postbacks repository.PostbackRepository,
	attempts repository.AttemptLogRepository,
	client delivery.Client,
	limiter ratelimit.RateLimiter,
	metrics *observability.Metrics,
	logger *zap.Logger,
	opts ...DispatcherOption,
) (*Dispatcher, error) {
	if postbacks == nil {
		return nil, fmt.Errorf("postback repository is required")
	}
	if client == nil {
		return nil, fmt.Errorf("delivery client is required")
	}
	if limiter == nil {
		limiter = ratelimit.NoopLimiter{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	d := &Dispatcher{
		postbacks:    postbacks,
		attempts:     attempts,
		client:       client,
		limiter:      limiter,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
		pollInterval: defaultPollInterval,
		batchSize:    defaultBatchSize,
		concurrency:  defaultConcurrency,
		claimLease:   defaultClaimLease,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start blocks until ctx is canceled. One scan runs immediately so restarts do
// not wait a full interval before picking up overdue work.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info("dispatcher started",
		zap.Duration("pollInterval", d.pollInterval),
		zap.Int("batchSize", d.batchSize),
		zap.Int("concurrency", d.concurrency),
	)

	d.runCycle(ctx)

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			d.runCycle(ctx)
		}
	}
}

// RunOnce executes a single poll-and-deliver cycle. Exposed for tests and for
// one-shot invocations.
func (d *Dispatcher) RunOnce(ctx context.Context) {
	d.runCycle(ctx)
}

func (d *Dispatcher) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	due, err := d.collectDue(ctx)
	if err != nil {
		d.logger.Error("failed to scan for due postbacks", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	d.logger.Debug("dispatch cycle", zap.Int("due", len(due)))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.concurrency)
	for _, postback := range due {
		pb := postback
		group.Go(func() error {
			d.processOne(groupCtx, pb)
			return nil
		})
	}
	_ = group.Wait()
}

// collectDue unions the new-work and retry queries and de-duplicates by id. A
// postback can briefly satisfy both when a status write races the scan.
func (d *Dispatcher) collectDue(ctx context.Context) ([]domain.Postback, error) {
	now := d.now().UTC()

	pending, err := d.postbacks.GetPending(ctx, d.batchSize)
	if err != nil {
		return nil, fmt.Errorf("pending scan: %w", err)
	}
	retrying, err := d.postbacks.GetRetryCandidates(ctx, now, d.batchSize)
	if err != nil {
		return nil, fmt.Errorf("retry scan: %w", err)
	}

	seen := make(map[string]struct{}, len(pending)+len(retrying))
	due := make([]domain.Postback, 0, len(pending)+len(retrying))
	for _, pb := range append(pending, retrying...) {
		if _, ok := seen[pb.ID]; ok {
			continue
		}
		seen[pb.ID] = struct{}{}
		if !pb.IsDueNow(now) {
			continue
		}
		due = append(due, pb)
	}
	return due, nil
}

func (d *Dispatcher) processOne(ctx context.Context, postback domain.Postback) {
	logger := d.logger.With(
		zap.String("postbackId", postback.ID),
		zap.String("conversionId", postback.ConversionID),
	)

	now := d.now().UTC()
	claimed, err := d.postbacks.Claim(ctx, postback.ID, now, now.Add(d.claimLease))
	if err != nil {
		logger.Error("failed to claim postback", zap.Error(err))
		return
	}
	if !claimed {
		d.metrics.IncClaimConflict()
		logger.Debug("postback already claimed, skipping")
		return
	}
	defer func() {
		if err := d.postbacks.ReleaseClaim(ctx, postback.ID); err != nil {
			logger.Warn("failed to release claim", zap.Error(err))
		}
	}()

	// Re-read under the lease. The poll snapshot may predate another worker's
	// completed attempt; the claim only proves no one holds the postback now,
	// not that the snapshot is still current.
	current, err := d.postbacks.GetByID(ctx, postback.ID)
	if err != nil {
		logger.Error("failed to re-read postback under claim", zap.Error(err))
		return
	}
	if !current.IsDueNow(d.now().UTC()) {
		logger.Debug("postback no longer due under claim, skipping")
		return
	}
	postback = *current

	if host := hostOf(postback.URL); host != "" {
		if err := d.limiter.Wait(ctx, host); err != nil {
			logger.Warn("rate limiter wait aborted", zap.Error(err))
			return
		}
	}

	d.metrics.IncInflight()
	start := d.now()
	result := d.client.Attempt(ctx, postback)
	d.metrics.DecInflight()
	d.metrics.ObserveDeliveryDuration(postback.Method.String(), d.now().Sub(start))

	postback.RecordAttempt(result.ResponseCode, result.ResponseBody, result.ErrorMessage, d.now().UTC())

	d.logAttempt(ctx, postback, result, logger)

	if err := d.savePostback(ctx, &postback); err != nil {
		// The stored row keeps its old state; once the claim is released a
		// later cycle redelivers. At-least-once, never silently dropped.
		logger.Error("failed to persist attempt outcome", zap.Error(err))
		return
	}

	switch postback.Status {
	case domain.StatusSent:
		d.metrics.IncPostbackSent(postback.Method.String())
		logger.Info("postback delivered",
			zap.Int("attemptCount", postback.AttemptCount),
			zap.Intp("responseCode", result.ResponseCode),
		)
	case domain.StatusRetrying:
		d.metrics.IncRetryScheduled(postback.Method.String())
		logger.Warn("postback attempt failed, retry scheduled",
			zap.Int("attemptCount", postback.AttemptCount),
			zap.Timep("nextAttemptAt", postback.NextAttemptAt),
			zap.Intp("responseCode", result.ResponseCode),
			zap.String("error", result.ErrorMessage),
		)
	case domain.StatusFailed:
		d.metrics.IncPostbackFailed(postback.Method.String(), failReasonExhausted)
		logger.Error("postback permanently failed",
			zap.Int("attemptCount", postback.AttemptCount),
			zap.Intp("responseCode", result.ResponseCode),
			zap.String("error", result.ErrorMessage),
		)
	}
}

// savePostback retries a failed save once. A second failure leaves recovery to
// the next poll cycle.
func (d *Dispatcher) savePostback(ctx context.Context, postback *domain.Postback) error {
	if err := d.postbacks.Save(ctx, postback); err == nil {
		return nil
	}
	return d.postbacks.Save(ctx, postback)
}

// logAttempt appends to the audit trail. Best effort: a missing audit row must
// not block state progression.
func (d *Dispatcher) logAttempt(ctx context.Context, postback domain.Postback, result delivery.Result, logger *zap.Logger) {
	if d.attempts == nil {
		return
	}

	attempt := &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		PostbackID:    postback.ID,
		AttemptNumber: postback.AttemptCount,
		ResponseCode:  result.ResponseCode,
		CreatedAt:     d.now().UTC(),
	}
	if result.ResponseBody != "" {
		body := result.ResponseBody
		attempt.ResponseBody = &body
	}
	if result.ErrorMessage != "" {
		msg := result.ErrorMessage
		attempt.ErrorMessage = &msg
	}

	if err := d.attempts.Create(ctx, attempt); err != nil {
		logger.Warn("failed to record delivery attempt", zap.Error(err))
	}
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Hostname()
}
