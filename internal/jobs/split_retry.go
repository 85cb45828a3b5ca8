// internal/jobs/split_retry.go
package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/javajoker/commission-backend/internal/config"
	"github.com/javajoker/commission-backend/internal/events"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/repository"
	"github.com/javajoker/commission-backend/internal/services"
)

// CommissionRetrier re-runs the payout of one order or payment.
type CommissionRetrier interface {
	RetrySplit(ctx context.Context, orderID uuid.UUID) (*services.ProcessResult, error)
	ProcessPayment(ctx context.Context, paymentID uuid.UUID) (*services.ProcessResult, error)
}

// SplitRetryJob periodically resubmits failed splits that have attempts left,
// re-runs the commission flow of confirmed payments that never got a split
// record and reports pending splits that stopped moving.
type SplitRetryJob struct {
	splits       repository.SplitRepository
	payments     repository.PaymentRepository
	retrier      CommissionRetrier
	publisher    events.Publisher
	triggerKinds []models.PaymentKind
	cfg          config.JobsConfig
	logger       logrus.FieldLogger
	now          func() time.Time
}

type SplitRetryDeps struct {
	Splits       repository.SplitRepository
	Payments     repository.PaymentRepository
	Retrier      CommissionRetrier
	Publisher    events.Publisher
	TriggerKinds []string
	Config       config.JobsConfig
	Logger       logrus.FieldLogger
}

type SweepResult struct {
	Found     int
	Unsplit   int
	Submitted int
	Failed    int
	Stale     int
}

func NewSplitRetryJob(d SplitRetryDeps) *SplitRetryJob {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	cfg := d.Config
	if cfg.SplitRetryWorkers < 1 {
		cfg.SplitRetryWorkers = 1
	}
	if cfg.SplitRetryBatchSize < 1 {
		cfg.SplitRetryBatchSize = 50
	}
	if cfg.SplitStaleAfter <= 0 {
		cfg.SplitStaleAfter = 30 * time.Minute
	}
	kinds := make([]models.PaymentKind, 0, len(d.TriggerKinds))
	for _, k := range d.TriggerKinds {
		kinds = append(kinds, models.PaymentKind(k))
	}
	return &SplitRetryJob{
		splits:       d.Splits,
		payments:     d.Payments,
		retrier:      d.Retrier,
		publisher:    d.Publisher,
		triggerKinds: kinds,
		cfg:          cfg,
		logger:       logger.WithField("job", "split_retry"),
		now:          time.Now,
	}
}

func (j *SplitRetryJob) Name() string { return "split_retry" }

func (j *SplitRetryJob) Definition() gocron.JobDefinition {
	interval := j.cfg.SplitRetryInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return gocron.DurationJob(interval)
}

type retryTask struct {
	orderID   uuid.UUID
	paymentID uuid.UUID // set when no split record exists yet
}

// Sweep retries one batch. Each order is handled by at most one worker.
func (j *SplitRetryJob) Sweep(ctx context.Context) (SweepResult, error) {
	now := j.now()

	records, err := j.splits.ListRetryable(ctx, j.cfg.SplitRetryMaxAttempts, j.cfg.SplitRetryBatchSize)
	if err != nil {
		return SweepResult{}, err
	}
	res := SweepResult{Found: len(records)}

	var unsplit []models.Payment
	if j.payments != nil && len(j.triggerKinds) > 0 {
		unsplit, err = j.payments.ListAwaitingSplit(ctx, j.triggerKinds, now.Add(-j.cfg.SplitProcessGrace), j.cfg.SplitRetryBatchSize)
		if err != nil {
			return res, err
		}
	}
	res.Unsplit = len(unsplit)

	res.Stale = j.reportStale(ctx, now)

	seen := make(map[uuid.UUID]bool, len(records)+len(unsplit))
	tasks := make([]retryTask, 0, len(records)+len(unsplit))
	for _, rec := range records {
		if !seen[rec.OrderID] {
			seen[rec.OrderID] = true
			tasks = append(tasks, retryTask{orderID: rec.OrderID})
		}
	}
	for i := range unsplit {
		orderID := unsplit[i].CommissionOrderID()
		if !seen[orderID] {
			seen[orderID] = true
			tasks = append(tasks, retryTask{orderID: orderID, paymentID: unsplit[i].ID})
		}
	}
	if len(tasks) == 0 {
		return res, nil
	}

	pool, err := ants.NewPool(j.cfg.SplitRetryWorkers, ants.WithPanicHandler(func(p interface{}) {
		j.logger.WithField("panic", p).Error("Split retry worker panicked")
	}))
	if err != nil {
		return res, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg        sync.WaitGroup
		submitted int64
		failed    int64
	)
	for _, task := range tasks {
		task := task
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			out, err := j.run(ctx, task)
			if err != nil {
				atomic.AddInt64(&failed, 1)
				j.logger.WithError(err).WithFields(logrus.Fields{
					"order_id":   task.orderID,
					"payment_id": task.paymentID,
				}).Warn("Split retry failed")
				return
			}
			if out != nil && out.Split != nil && out.Split.Submitted() {
				atomic.AddInt64(&submitted, 1)
			}
		})
		if err != nil {
			wg.Done()
			atomic.AddInt64(&failed, 1)
			j.logger.WithError(err).WithField("order_id", task.orderID).Error("Failed to submit split retry task")
		}
	}
	wg.Wait()

	res.Submitted = int(submitted)
	res.Failed = int(failed)
	return res, nil
}

func (j *SplitRetryJob) run(ctx context.Context, task retryTask) (*services.ProcessResult, error) {
	if task.paymentID != uuid.Nil {
		return j.retrier.ProcessPayment(ctx, task.paymentID)
	}
	return j.retrier.RetrySplit(ctx, task.orderID)
}

// reportStale flags pending splits that no submitter finished. They are never
// resubmitted automatically because the processor may already hold them.
func (j *SplitRetryJob) reportStale(ctx context.Context, now time.Time) int {
	stale, err := j.splits.ListStalePending(ctx, now.Add(-j.cfg.SplitStaleAfter), j.cfg.SplitRetryBatchSize)
	if err != nil {
		j.logger.WithError(err).Error("Failed to list stale pending splits")
		return 0
	}
	for _, rec := range stale {
		j.logger.WithFields(logrus.Fields{
			"order_id":            rec.OrderID,
			"external_payment_id": rec.ExternalPaymentID,
			"attempts":            rec.Attempts,
			"pending_since":       rec.UpdatedAt,
		}).Warn("Split stuck in pending, needs manual reconciliation")
		if j.publisher == nil {
			continue
		}
		ev := events.New(events.TypeSplitStale, rec.OrderID.String(), map[string]interface{}{
			"order_id":            rec.OrderID,
			"external_payment_id": rec.ExternalPaymentID,
			"attempts":            rec.Attempts,
			"pending_since":       rec.UpdatedAt,
		})
		if err := j.publisher.Publish(ctx, ev); err != nil {
			j.logger.WithError(err).WithField("order_id", rec.OrderID).Warn("Failed to publish event")
		}
	}
	return len(stale)
}

// Execute is the scheduler entrypoint.
func (j *SplitRetryJob) Execute(ctx context.Context) {
	start := time.Now()
	res, err := j.Sweep(ctx)
	if err != nil {
		j.logger.WithError(err).Error("Split retry sweep failed")
		return
	}
	if res.Found == 0 && res.Unsplit == 0 && res.Stale == 0 {
		j.logger.Debug("No failed splits to retry")
		return
	}
	j.logger.WithFields(logrus.Fields{
		"found":     res.Found,
		"unsplit":   res.Unsplit,
		"submitted": res.Submitted,
		"failed":    res.Failed,
		"stale":     res.Stale,
		"duration":  time.Since(start).String(),
	}).Info("Split retry sweep completed")
}
