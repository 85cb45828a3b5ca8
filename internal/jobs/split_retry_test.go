package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javajoker/commission-backend/internal/config"
	"github.com/javajoker/commission-backend/internal/events"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/repository"
	"github.com/javajoker/commission-backend/internal/services"
)

type listSplits struct {
	repository.SplitRepository
	records     []models.SplitRecord
	stale       []models.SplitRecord
	err         error
	maxAttempts int
	limit       int
	staleBefore time.Time
}

func (l *listSplits) ListRetryable(_ context.Context, maxAttempts, limit int) ([]models.SplitRecord, error) {
	l.maxAttempts, l.limit = maxAttempts, limit
	return l.records, l.err
}

func (l *listSplits) ListStalePending(_ context.Context, updatedBefore time.Time, _ int) ([]models.SplitRecord, error) {
	l.staleBefore = updatedBefore
	return l.stale, nil
}

type awaitingPayments struct {
	repository.PaymentRepository
	payments   []models.Payment
	kinds      []models.PaymentKind
	paidBefore time.Time
}

func (a *awaitingPayments) ListAwaitingSplit(_ context.Context, kinds []models.PaymentKind, paidBefore time.Time, _ int) ([]models.Payment, error) {
	a.kinds, a.paidBefore = kinds, paidBefore
	return a.payments, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type countingRetrier struct {
	mu        sync.Mutex
	inFlight  map[uuid.UUID]int
	calls     map[uuid.UUID]int
	processed map[uuid.UUID]int
	overlap   bool
	fail      map[uuid.UUID]bool
}

func newCountingRetrier() *countingRetrier {
	return &countingRetrier{
		inFlight:  map[uuid.UUID]int{},
		calls:     map[uuid.UUID]int{},
		processed: map[uuid.UUID]int{},
		fail:      map[uuid.UUID]bool{},
	}
}

func (r *countingRetrier) ProcessPayment(_ context.Context, paymentID uuid.UUID) (*services.ProcessResult, error) {
	r.mu.Lock()
	r.processed[paymentID]++
	fail := r.fail[paymentID]
	r.mu.Unlock()

	if fail {
		return nil, errors.New("wallet not configured")
	}
	id := "split_" + paymentID.String()
	return &services.ProcessResult{Split: &models.SplitRecord{OrderID: paymentID, ExternalSplitID: &id}}, nil
}

func (r *countingRetrier) RetrySplit(_ context.Context, orderID uuid.UUID) (*services.ProcessResult, error) {
	r.mu.Lock()
	r.inFlight[orderID]++
	r.calls[orderID]++
	if r.inFlight[orderID] > 1 {
		r.overlap = true
	}
	fail := r.fail[orderID]
	r.mu.Unlock()

	time.Sleep(5 * time.Millisecond)

	r.mu.Lock()
	r.inFlight[orderID]--
	r.mu.Unlock()

	if fail {
		return nil, errors.New("processor unavailable")
	}
	id := "split_" + orderID.String()
	return &services.ProcessResult{Split: &models.SplitRecord{OrderID: orderID, ExternalSplitID: &id}}, nil
}

func jobsConfig() config.JobsConfig {
	return config.JobsConfig{
		SplitRetryEnabled:     true,
		SplitRetryInterval:    20 * time.Millisecond,
		SplitRetryMaxAttempts: 5,
		SplitRetryWorkers:     3,
		SplitRetryBatchSize:   10,
	}
}

func TestSweepRetriesEachOrderOnce(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	splits := &listSplits{records: []models.SplitRecord{
		{OrderID: a}, {OrderID: b}, {OrderID: a}, {OrderID: c},
	}}
	retrier := newCountingRetrier()
	retrier.fail[c] = true
	logger, _ := test.NewNullLogger()
	job := NewSplitRetryJob(SplitRetryDeps{Splits: splits, Retrier: retrier, Config: jobsConfig(), Logger: logger})

	res, err := job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Found)
	assert.Equal(t, 2, res.Submitted)
	assert.Equal(t, 1, res.Failed)

	assert.Equal(t, 1, retrier.calls[a])
	assert.Equal(t, 1, retrier.calls[b])
	assert.Equal(t, 1, retrier.calls[c])
	assert.False(t, retrier.overlap)
	assert.Equal(t, 5, splits.maxAttempts)
	assert.Equal(t, 10, splits.limit)
}

func TestSweepPropagatesListErrors(t *testing.T) {
	job := NewSplitRetryJob(SplitRetryDeps{Splits: &listSplits{err: errors.New("db down")}, Retrier: newCountingRetrier(), Config: jobsConfig()})
	_, err := job.Sweep(context.Background())
	assert.EqualError(t, err, "db down")
}

func TestSweepWithNothingToDo(t *testing.T) {
	logger, hook := test.NewNullLogger()
	job := NewSplitRetryJob(SplitRetryDeps{Splits: &listSplits{}, Retrier: newCountingRetrier(), Logger: logger})

	job.Execute(context.Background())
	assert.Empty(t, hook.AllEntries())
}

func TestSweepProcessesConfirmedPaymentsWithoutSplit(t *testing.T) {
	orderID := uuid.New()
	failedOrder := uuid.New()
	withOrder := models.Payment{BaseModel: models.BaseModel{ID: uuid.New()}, OrderID: &orderID}
	plain := models.Payment{BaseModel: models.BaseModel{ID: uuid.New()}}
	rejected := models.Payment{BaseModel: models.BaseModel{ID: uuid.New()}}
	// already listed as a failed split, must not be handled twice
	duplicate := models.Payment{BaseModel: models.BaseModel{ID: uuid.New()}, OrderID: &failedOrder}

	splits := &listSplits{records: []models.SplitRecord{{OrderID: failedOrder}}}
	payments := &awaitingPayments{payments: []models.Payment{withOrder, plain, rejected, duplicate}}
	retrier := newCountingRetrier()
	retrier.fail[rejected.ID] = true

	cfg := jobsConfig()
	cfg.SplitProcessGrace = 10 * time.Minute
	logger, _ := test.NewNullLogger()
	job := NewSplitRetryJob(SplitRetryDeps{
		Splits:       splits,
		Payments:     payments,
		Retrier:      retrier,
		TriggerKinds: []string{"membership", "subscription"},
		Config:       cfg,
		Logger:       logger,
	})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	res, err := job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Found)
	assert.Equal(t, 4, res.Unsplit)
	assert.Equal(t, 3, res.Submitted)
	assert.Equal(t, 1, res.Failed)

	assert.Equal(t, 1, retrier.calls[failedOrder])
	assert.Equal(t, 1, retrier.processed[withOrder.ID])
	assert.Equal(t, 1, retrier.processed[plain.ID])
	assert.Equal(t, 1, retrier.processed[rejected.ID])
	assert.Zero(t, retrier.processed[duplicate.ID])

	assert.Equal(t, []models.PaymentKind{models.PaymentKindMembership, models.PaymentKindSubscription}, payments.kinds)
	assert.Equal(t, now.Add(-10*time.Minute), payments.paidBefore)
}

func TestSweepReportsStalePendingSplits(t *testing.T) {
	stale := models.SplitRecord{OrderID: uuid.New(), ExternalPaymentID: "pay_1", Attempts: 1}
	splits := &listSplits{stale: []models.SplitRecord{stale}}
	pub := &recordingPublisher{}
	retrier := newCountingRetrier()

	cfg := jobsConfig()
	cfg.SplitStaleAfter = time.Hour
	logger, hook := test.NewNullLogger()
	job := NewSplitRetryJob(SplitRetryDeps{Splits: splits, Retrier: retrier, Publisher: pub, Config: cfg, Logger: logger})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	res, err := job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stale)
	assert.Equal(t, now.Add(-time.Hour), splits.staleBefore)

	// stale records are reported, never resubmitted
	assert.Zero(t, retrier.calls[stale.OrderID])
	require.Len(t, pub.events, 1)
	assert.Equal(t, events.TypeSplitStale, pub.events[0].Type)
	assert.Equal(t, stale.OrderID.String(), pub.events[0].Key)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, stale.OrderID, entry.Data["order_id"])
}

type tickJob struct {
	runs int32
}

func (j *tickJob) Name() string { return "tick" }

func (j *tickJob) Definition() gocron.JobDefinition {
	return gocron.DurationJob(10 * time.Millisecond)
}

func (j *tickJob) Execute(context.Context) { atomic.AddInt32(&j.runs, 1) }

func TestSchedulerRunsRegisteredJobs(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s, err := NewScheduler(logger)
	require.NoError(t, err)

	job := &tickJob{}
	require.NoError(t, s.Register(job))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&job.runs) >= 2 }, time.Second, 5*time.Millisecond)
}
