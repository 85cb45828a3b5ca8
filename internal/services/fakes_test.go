package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/commission"
	"github.com/javajoker/commission-backend/internal/events"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/processor"
	"github.com/javajoker/commission-backend/internal/retry"
)

func testPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		MaxDelay:    5 * time.Millisecond,
		Retryable:   retry.IsRetryable,
	}
}

// memStore implements every repository the services depend on.
type memStore struct {
	mu sync.Mutex

	affiliates    map[uuid.UUID]*models.Affiliate
	payments      map[uuid.UUID]*models.Payment
	commissions   []models.CommissionRecord
	splits        map[uuid.UUID]*models.SplitRecord
	webhooks      map[string]*models.WebhookEvent
	notifications []models.Notification

	affiliateUpdateErr error
	transitionErr      error
	listErr            error
	notificationErr    error
	markProcessedErr   error
}

func newMemStore() *memStore {
	return &memStore{
		affiliates: map[uuid.UUID]*models.Affiliate{},
		payments:   map[uuid.UUID]*models.Payment{},
		splits:     map[uuid.UUID]*models.SplitRecord{},
		webhooks:   map[string]*models.WebhookEvent{},
	}
}

func strPtr(s string) *string { return &s }

func (m *memStore) addAffiliate(a *models.Affiliate) *models.Affiliate {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Type == "" {
		a.Type = models.AffiliateTypeIndividual
	}
	m.affiliates[a.ID] = a
	return a
}

func (m *memStore) affiliate(id uuid.UUID) models.Affiliate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.affiliates[id]
}

// affiliates

func (m *memStore) lookupAffiliate(id uuid.UUID) (*models.Affiliate, error) {
	a, ok := m.affiliates[id]
	if !ok || a.DeletedAt.Valid {
		return nil, fmt.Errorf("%w: %s", apperr.ErrAffiliateNotFound, id)
	}
	cp := *a
	return &cp, nil
}

type memAffiliates struct{ *memStore }

func (r memAffiliates) GetByID(_ context.Context, id uuid.UUID) (*models.Affiliate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookupAffiliate(id)
}

func (r memAffiliates) GetNode(_ context.Context, id uuid.UUID) (*commission.Node, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, err := r.lookupAffiliate(id)
	if err != nil {
		return nil, err
	}
	return &commission.Node{ID: a.ID, Active: a.IsActive(), ReferredBy: a.ReferredBy}, nil
}

func (r memAffiliates) UpdatePaymentStatus(_ context.Context, id uuid.UUID, status models.AffiliatePaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.affiliateUpdateErr != nil {
		return r.affiliateUpdateErr
	}
	a, ok := r.affiliates[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperr.ErrAffiliateNotFound, id)
	}
	a.PaymentStatus = status
	return nil
}

func (r memAffiliates) SetStorefrontVisible(_ context.Context, id uuid.UUID, visible bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.affiliates[id]; ok && a.Type == models.AffiliateTypeStore {
		a.StorefrontVisible = visible
	}
	return nil
}

// payments

type memPayments struct{ *memStore }

func (r memPayments) add(p *models.Payment) *models.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.payments[p.ID] = p
	return p
}

func (r memPayments) GetByID(_ context.Context, id uuid.UUID) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrPaymentNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (r memPayments) GetByExternalID(_ context.Context, externalID string) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", apperr.ErrPaymentNotFound, externalID)
}

func (r memPayments) Create(_ context.Context, p *models.Payment) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.payments {
		if existing.ExternalID == p.ExternalID {
			cp := *existing
			return &cp, nil
		}
	}
	p.ID = uuid.New()
	cp := *p
	r.payments[p.ID] = &cp
	return p, nil
}

func (r memPayments) Transition(_ context.Context, id uuid.UUID, from, to models.PaymentStatus, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitionErr != nil {
		return false, r.transitionErr
	}
	p, ok := r.payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	if to == models.PaymentStatusConfirmed {
		p.PaidAt = &at
	}
	return true, nil
}

func (r memPayments) ListAwaitingSplit(_ context.Context, kinds []models.PaymentKind, paidBefore time.Time, limit int) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wanted := make(map[models.PaymentKind]bool, len(kinds))
	for _, k := range kinds {
		wanted[k] = true
	}
	var out []models.Payment
	for _, p := range r.payments {
		if p.Status != models.PaymentStatusConfirmed || !wanted[p.Kind] || p.PaidAt == nil || !p.PaidAt.Before(paidBefore) {
			continue
		}
		if _, ok := r.splits[p.CommissionOrderID()]; ok {
			continue
		}
		out = append(out, *p)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// commissions

type memCommissions struct{ *memStore }

func (r memCommissions) Append(_ context.Context, records []models.CommissionRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range records {
		dup := false
		for _, existing := range r.commissions {
			if existing.PaymentID == rec.PaymentID && existing.Role == rec.Role {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		rec.ID = uuid.New()
		rec.CreatedAt = time.Now()
		r.commissions = append(r.commissions, rec)
	}
	return nil
}

func (r memCommissions) ListByPayment(_ context.Context, paymentID uuid.UUID) ([]models.CommissionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.CommissionRecord
	for _, rec := range r.commissions {
		if rec.PaymentID == paymentID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r memCommissions) ListByAffiliate(_ context.Context, affiliateID uuid.UUID, offset, limit int) ([]models.CommissionRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []models.CommissionRecord
	for _, rec := range r.commissions {
		if rec.AffiliateID != nil && *rec.AffiliateID == affiliateID {
			all = append(all, rec)
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return []models.CommissionRecord{}, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

// splits

type memSplits struct{ *memStore }

func (r memSplits) GetByOrderID(_ context.Context, orderID uuid.UUID) (*models.SplitRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.splits[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperr.ErrSplitNotFound, orderID)
	}
	cp := *rec
	return &cp, nil
}

func (r memSplits) Claim(_ context.Context, rec *models.SplitRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.splits[rec.OrderID]; ok {
		return false, nil
	}
	rec.ID = uuid.New()
	rec.Status = models.SplitStatusPending
	rec.Attempts = 1
	cp := *rec
	r.splits[rec.OrderID] = &cp
	return true, nil
}

func (r memSplits) Reclaim(_ context.Context, rec *models.SplitRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.splits[rec.OrderID]
	if !ok || existing.Status != models.SplitStatusFailed || existing.ExternalSplitID != nil || existing.NeedsReconciliation {
		return false, nil
	}
	existing.Status = models.SplitStatusPending
	existing.Attempts++
	existing.Items = rec.Items
	existing.WalletIDs = rec.WalletIDs
	existing.LastError = ""
	return true, nil
}

func (r memSplits) MarkSent(_ context.Context, orderID uuid.UUID, splitID string, raw models.JSONB, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.splits[orderID]
	if !ok || rec.ExternalSplitID != nil {
		return false, nil
	}
	rec.ExternalSplitID = &splitID
	rec.Status = models.SplitStatusSent
	rec.RawResponse = raw
	rec.SentAt = &at
	return true, nil
}

func (r memSplits) MarkFailed(_ context.Context, orderID uuid.UUID, lastError string, raw models.JSONB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.splits[orderID]; ok && rec.ExternalSplitID == nil {
		rec.Status = models.SplitStatusFailed
		rec.LastError = lastError
		rec.RawResponse = raw
	}
	return nil
}

func (r memSplits) MarkUnconfirmed(_ context.Context, orderID uuid.UUID, lastError string, raw models.JSONB) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.splits[orderID]; ok && rec.ExternalSplitID == nil {
		rec.Status = models.SplitStatusFailed
		rec.NeedsReconciliation = true
		rec.LastError = lastError
		rec.RawResponse = raw
	}
	return nil
}

func (r memSplits) ListRetryable(_ context.Context, maxAttempts, limit int) ([]models.SplitRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SplitRecord
	for _, rec := range r.splits {
		if rec.Status == models.SplitStatusFailed && rec.ExternalSplitID == nil && !rec.NeedsReconciliation && rec.Attempts < maxAttempts {
			out = append(out, *rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r memSplits) ListStalePending(_ context.Context, updatedBefore time.Time, limit int) ([]models.SplitRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.SplitRecord
	for _, rec := range r.splits {
		if rec.Status == models.SplitStatusPending && rec.ExternalSplitID == nil && rec.UpdatedAt.Before(updatedBefore) {
			out = append(out, *rec)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// webhooks

type memWebhooks struct{ *memStore }

func (r memWebhooks) Record(_ context.Context, ev *models.WebhookEvent) (*models.WebhookEvent, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ev.Provider + "/" + ev.EventID
	if existing, ok := r.webhooks[key]; ok {
		cp := *existing
		return &cp, false, nil
	}
	ev.ID = uuid.New()
	cp := *ev
	r.webhooks[key] = &cp
	return ev, true, nil
}

func (r memWebhooks) MarkProcessed(_ context.Context, id uuid.UUID, processingError string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markProcessedErr != nil {
		return r.markProcessedErr
	}
	for _, ev := range r.webhooks {
		if ev.ID == id {
			ev.ProcessedAt = &at
			ev.ProcessingError = processingError
		}
	}
	return nil
}

func (r memWebhooks) get(provider, eventID string) *models.WebhookEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.webhooks[provider+"/"+eventID]
}

// notifications

type memNotifications struct{ *memStore }

func (r memNotifications) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notificationErr != nil {
		return r.notificationErr
	}
	r.notifications = append(r.notifications, *n)
	return nil
}

// memWalletCache is an in-memory cache.WalletCache.
type memWalletCache struct {
	mu      sync.Mutex
	entries map[string]models.WalletValidation
	getErr  error
	puts    int
}

func newMemWalletCache() *memWalletCache {
	return &memWalletCache{entries: map[string]models.WalletValidation{}}
}

func (c *memWalletCache) Get(_ context.Context, walletID string) (*models.WalletValidation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	v, ok := c.entries[walletID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (c *memWalletCache) Put(_ context.Context, v *models.WalletValidation, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[v.WalletID] = *v
	return nil
}

// fakeGateway is a scripted processor.
type fakeGateway struct {
	mu         sync.Mutex
	wallets    map[string]*processor.WalletInfo
	walletErrs []error
	walletHits int32

	splitErrs  []error
	splitCalls int32
	splitDelay time.Duration
	requests   []processor.SplitRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{wallets: map[string]*processor.WalletInfo{}}
}

func (g *fakeGateway) addWallet(id string, active bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.wallets[id] = &processor.WalletInfo{ID: id, Name: "Wallet " + id, Active: active}
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) GetWallet(_ context.Context, walletID string) (*processor.WalletInfo, error) {
	atomic.AddInt32(&g.walletHits, 1)
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.walletErrs) > 0 {
		err := g.walletErrs[0]
		g.walletErrs = g.walletErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	w, ok := g.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", processor.ErrWalletNotFound, walletID)
	}
	cp := *w
	return &cp, nil
}

func (g *fakeGateway) CreateSplit(_ context.Context, req processor.SplitRequest) (*processor.SplitResult, error) {
	atomic.AddInt32(&g.splitCalls, 1)
	if g.splitDelay > 0 {
		time.Sleep(g.splitDelay)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.splitErrs) > 0 {
		err := g.splitErrs[0]
		g.splitErrs = g.splitErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &processor.SplitResult{SplitID: "split_" + strings.ReplaceAll(req.OrderID.String(), "-", "")[:8], Status: "DONE"}, nil
}

func (g *fakeGateway) calls() int { return int(atomic.LoadInt32(&g.splitCalls)) }

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}
