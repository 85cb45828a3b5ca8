package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/javajoker/commission-backend/internal/apperr"
	"github.com/javajoker/commission-backend/internal/commission"
	"github.com/javajoker/commission-backend/internal/i18n"
	"github.com/javajoker/commission-backend/internal/middleware"
	"github.com/javajoker/commission-backend/internal/models"
	"github.com/javajoker/commission-backend/internal/processor"
	"github.com/javajoker/commission-backend/internal/services"
	"github.com/javajoker/commission-backend/internal/utils"
)

type fakeLedger struct {
	page    *services.LedgerPage
	payment *services.PaymentLedger
	split   *models.SplitRecord
	err     error

	affiliateID   uuid.UUID
	offset, limit int
}

func (f *fakeLedger) ListByAffiliate(_ context.Context, affiliateID uuid.UUID, offset, limit int) (*services.LedgerPage, error) {
	f.affiliateID, f.offset, f.limit = affiliateID, offset, limit
	return f.page, f.err
}

func (f *fakeLedger) ListByPayment(context.Context, uuid.UUID) (*services.PaymentLedger, error) {
	return f.payment, f.err
}

func (f *fakeLedger) GetSplit(context.Context, uuid.UUID) (*models.SplitRecord, error) {
	return f.split, f.err
}

type fakeOperator struct {
	breakdown *commission.Breakdown
	result    *services.ProcessResult
	err       error
	processed []uuid.UUID
}

func (f *fakeOperator) Preview(_ context.Context, value int64, n1ID uuid.UUID) (*commission.Breakdown, error) {
	if f.err != nil {
		return nil, f.err
	}
	b := *f.breakdown
	b.OrderValueCents = value
	return &b, nil
}

func (f *fakeOperator) RetrySplit(context.Context, uuid.UUID) (*services.ProcessResult, error) {
	return f.result, f.err
}

func (f *fakeOperator) ProcessPayment(_ context.Context, paymentID uuid.UUID) (*services.ProcessResult, error) {
	f.processed = append(f.processed, paymentID)
	return f.result, f.err
}

type fakeWallets struct {
	status services.WalletStatus
	err    error
}

func (f *fakeWallets) Validate(_ context.Context, walletID string) (services.WalletStatus, error) {
	s := f.status
	s.WalletID = walletID
	return s, f.err
}

type fakeReconciler struct {
	mu     sync.Mutex
	events []*processor.PaymentEvent
	result *services.ReconcileResult
	err    error
}

func (f *fakeReconciler) HandleEvent(_ context.Context, ev *processor.PaymentEvent) (*services.ReconcileResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeArchiver struct {
	keys []string
	err  error
}

func (f *fakeArchiver) Archive(_ context.Context, provider, eventID string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	key := provider + "/" + eventID
	f.keys = append(f.keys, key)
	return key, nil
}

type HandlersTestSuite struct {
	suite.Suite
	router     *gin.Engine
	ledger     *fakeLedger
	operator   *fakeOperator
	wallets    *fakeWallets
	reconciler *fakeReconciler
	archiver   *fakeArchiver
	dbErr      error

	adminToken     string
	affiliateToken string
	affiliateID    uuid.UUID
}

func (suite *HandlersTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.Require().NoError(i18n.Initialize(i18n.LangEnglish))
	utils.SetJWTSecret("handlers-test")

	var err error
	suite.adminToken, err = utils.GenerateJWT("admin-1", utils.UserTypeAdmin, "", time.Hour)
	suite.Require().NoError(err)
	suite.affiliateID = uuid.New()
	suite.affiliateToken, err = utils.GenerateJWT("user-2", utils.UserTypeAffiliate, suite.affiliateID.String(), time.Hour)
	suite.Require().NoError(err)
}

func (suite *HandlersTestSuite) SetupTest() {
	suite.ledger = &fakeLedger{}
	suite.operator = &fakeOperator{breakdown: &commission.Breakdown{TotalCents: 98700}}
	suite.wallets = &fakeWallets{status: services.WalletStatus{IsValid: true, IsActive: true}}
	suite.reconciler = &fakeReconciler{result: &services.ReconcileResult{EventID: "evt_1", Transitioned: true}}
	suite.archiver = &fakeArchiver{}
	suite.dbErr = nil

	logger, _ := test.NewNullLogger()
	commissions := NewCommissionHandler(suite.ledger, suite.operator, suite.wallets, logger)
	webhooks := NewWebhookHandler(suite.reconciler, suite.archiver, "whsec", logger)
	health := NewHealthHandler("test", map[string]Check{
		"database": func(context.Context) error { return suite.dbErr },
	})

	r := gin.New()
	r.Use(middleware.I18nMiddleware())
	r.GET("/health", health.Health)
	r.POST("/webhooks/asaas", webhooks.HandleAsaas)
	v1 := r.Group("/v1", middleware.AuthRequired())
	v1.GET("/me/commissions", middleware.AffiliateRequired(), commissions.GetMyCommissions)
	admin := v1.Group("", middleware.AdminRequired())
	admin.GET("/commissions", commissions.ListCommissions)
	admin.GET("/commissions/payments/:id", commissions.GetPaymentCommissions)
	admin.POST("/commissions/payments/:id/process", commissions.ProcessPayment)
	admin.POST("/commissions/preview", commissions.Preview)
	admin.GET("/splits/:order_id", commissions.GetSplit)
	admin.POST("/splits/:order_id/retry", commissions.RetrySplit)
	admin.GET("/wallets/:wallet_id/validation", commissions.ValidateWallet)
	suite.router = r
}

func (suite *HandlersTestSuite) do(method, path, token string, body interface{}, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		suite.Require().NoError(json.NewEncoder(&buf).Encode(b))
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)

	var response map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &response)
	return w, response
}

func errorOf(response map[string]interface{}) map[string]interface{} {
	e, _ := response["error"].(map[string]interface{})
	return e
}

const asaasConfirmed = `{"id":"evt_1","event":"PAYMENT_CONFIRMED","dateCreated":"2024-05-01 10:00:00","payment":{"id":"pay_1","value":99.90,"status":"CONFIRMED","externalReference":"kind=membership|affiliate=6f1c1c8e-2c7b-4a53-9f55-0c1f4f1b2a10"}}`

func (suite *HandlersTestSuite) TestWebhookRequiresToken() {
	w, response := suite.do(http.MethodPost, "/webhooks/asaas", "", asaasConfirmed, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Equal(suite.T(), "Invalid webhook token", errorOf(response)["message"])

	w, _ = suite.do(http.MethodPost, "/webhooks/asaas", "", asaasConfirmed, map[string]string{asaasTokenHeader: "wrong"})
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
	assert.Empty(suite.T(), suite.reconciler.events)
}

func (suite *HandlersTestSuite) TestWebhookHandled() {
	w, response := suite.do(http.MethodPost, "/webhooks/asaas", "", asaasConfirmed, map[string]string{asaasTokenHeader: "whsec"})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.True(suite.T(), response["success"].(bool))

	suite.Require().Len(suite.reconciler.events, 1)
	ev := suite.reconciler.events[0]
	assert.Equal(suite.T(), processor.EventPaymentConfirmed, ev.Type)
	assert.Equal(suite.T(), int64(9990), ev.ValueCents)
	assert.Equal(suite.T(), []string{"asaas/evt_1"}, suite.archiver.keys)
}

func (suite *HandlersTestSuite) TestWebhookReportsFailedSideEffects() {
	suite.reconciler.result.SideEffectErrors = []apperr.PartialFailure{{Step: "commission", Err: errors.New("wallet missing")}}
	w, response := suite.do(http.MethodPost, "/webhooks/asaas", "", asaasConfirmed, map[string]string{asaasTokenHeader: "whsec"})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), []interface{}{"commission"}, data["failed_side_effects"])
}

func (suite *HandlersTestSuite) TestWebhookArchiveFailureIsNotFatal() {
	suite.archiver.err = errors.New("s3 down")
	w, _ := suite.do(http.MethodPost, "/webhooks/asaas", "", asaasConfirmed, map[string]string{asaasTokenHeader: "whsec"})
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Len(suite.T(), suite.reconciler.events, 1)
}

func (suite *HandlersTestSuite) TestWebhookMalformedPayload() {
	for _, body := range []string{`{not json`, `{"event":"PAYMENT_CONFIRMED"}`, `{"payment":{"id":"pay_1"}}`} {
		w, _ := suite.do(http.MethodPost, "/webhooks/asaas", "", body, map[string]string{asaasTokenHeader: "whsec"})
		assert.Equal(suite.T(), http.StatusBadRequest, w.Code, body)
	}
	assert.Empty(suite.T(), suite.reconciler.events)
}

func (suite *HandlersTestSuite) TestWebhookPrimaryFailureAsksForRedelivery() {
	suite.reconciler.err = errors.New("connection reset")
	w, response := suite.do(http.MethodPost, "/webhooks/asaas", "", asaasConfirmed, map[string]string{asaasTokenHeader: "whsec"})
	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	assert.Equal(suite.T(), "WEBHOOK_FAILED", errorOf(response)["code"])
}

func (suite *HandlersTestSuite) TestMyCommissions() {
	suite.ledger.page = &services.LedgerPage{
		Records:    []models.CommissionRecord{{Role: "n1", ValueCents: 49350}},
		Total:      41,
		TotalCents: 49350,
	}
	w, response := suite.do(http.MethodGet, "/v1/me/commissions?page=2&limit=20", suite.affiliateToken, nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), suite.affiliateID, suite.ledger.affiliateID)
	assert.Equal(suite.T(), 20, suite.ledger.offset)
	assert.Equal(suite.T(), "41", w.Header().Get("X-Total-Count"))

	meta := response["meta"].(map[string]interface{})
	assert.Equal(suite.T(), float64(49350), meta["page_total_cents"])

	w, _ = suite.do(http.MethodGet, "/v1/me/commissions", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestAdminRoutesRequireAdmin() {
	w, _ := suite.do(http.MethodGet, "/v1/commissions?affiliate_id="+uuid.NewString(), suite.affiliateToken, nil, nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)

	w, _ = suite.do(http.MethodGet, "/v1/commissions?affiliate_id="+uuid.NewString(), "", nil, nil)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestListCommissionsValidatesAffiliate() {
	w, _ := suite.do(http.MethodGet, "/v1/commissions", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w, _ = suite.do(http.MethodGet, "/v1/commissions?affiliate_id=nope", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	suite.ledger.page = &services.LedgerPage{Records: []models.CommissionRecord{}}
	id := uuid.New()
	w, _ = suite.do(http.MethodGet, "/v1/commissions?affiliate_id="+id.String(), suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), id, suite.ledger.affiliateID)
}

func (suite *HandlersTestSuite) TestPaymentCommissions() {
	suite.ledger.payment = &services.PaymentLedger{Records: []models.CommissionRecord{}}
	w, response := suite.do(http.MethodGet, "/v1/commissions/payments/"+uuid.NewString(), suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), []interface{}{}, data["records"])

	w, _ = suite.do(http.MethodGet, "/v1/commissions/payments/not-a-uuid", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *HandlersTestSuite) TestPreview() {
	w, response := suite.do(http.MethodPost, "/v1/commissions/preview", suite.adminToken, gin.H{
		"order_value_cents": 329000,
		"n1_affiliate_id":   uuid.NewString(),
	}, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), float64(329000-98700), data["remainder_cents"])

	w, response = suite.do(http.MethodPost, "/v1/commissions/preview", suite.adminToken, gin.H{
		"order_value_cents": 0,
		"n1_affiliate_id":   "nope",
	}, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "VALIDATION_ERROR", errorOf(response)["code"])
	assert.Len(suite.T(), errorOf(response)["details"], 2)
}

func (suite *HandlersTestSuite) TestPreviewUnknownAffiliate() {
	suite.operator.err = apperr.AffiliateNotFound("commission.Calculate", "x")
	w, response := suite.do(http.MethodPost, "/v1/commissions/preview", suite.adminToken, gin.H{
		"order_value_cents": 1000,
		"n1_affiliate_id":   uuid.NewString(),
	}, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "Affiliate not found", errorOf(response)["message"])
}

func (suite *HandlersTestSuite) TestGetSplitNotFound() {
	suite.ledger.err = &apperr.Error{Kind: apperr.KindValidation, Field: "order_id", Err: apperr.ErrSplitNotFound}
	w, response := suite.do(http.MethodGet, "/v1/splits/"+uuid.NewString(), suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "NOT_FOUND", errorOf(response)["code"])
}

func (suite *HandlersTestSuite) TestRetrySplitWalletMissing() {
	affiliate := uuid.New()
	suite.operator.err = apperr.ValidationWrap("services.SplitBuilder.BuildSplitItems", "split_items", &services.SplitValidationError{
		Problems: []services.SplitProblem{{Role: "n2", AffiliateID: &affiliate, ValueCents: 9870, Reason: services.ReasonWalletMissing}},
	})
	suite.operator.result = &services.ProcessResult{}

	w, response := suite.do(http.MethodPost, "/v1/splits/"+uuid.NewString()+"/retry", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	e := errorOf(response)
	assert.Equal(suite.T(), "SPLIT_VALIDATION_ERROR", e["code"])
	assert.Contains(suite.T(), e["message"], "no wallet configured")
	problems := e["details"].(map[string]interface{})["problems"].([]interface{})
	assert.Len(suite.T(), problems, 1)
}

func (suite *HandlersTestSuite) TestRetrySplitTransient() {
	failed := &models.SplitRecord{OrderID: uuid.New(), Status: models.SplitStatusFailed, Attempts: 2}
	suite.operator.result = &services.ProcessResult{Split: failed}
	suite.operator.err = &services.SubmissionError{OrderID: failed.OrderID, Attempts: 3, Err: &processor.APIError{StatusCode: http.StatusBadGateway}}

	w, response := suite.do(http.MethodPost, "/v1/splits/"+failed.OrderID.String()+"/retry", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, w.Code)
	assert.Equal(suite.T(), "Your commission is being processed, please check back later", errorOf(response)["message"])
	assert.NotNil(suite.T(), errorOf(response)["details"])
}

func (suite *HandlersTestSuite) TestRetrySplitRejected() {
	suite.operator.err = &services.SubmissionError{OrderID: uuid.New(), Attempts: 1, Err: &processor.APIError{StatusCode: http.StatusBadRequest, Code: "invalid_wallet"}}
	w, response := suite.do(http.MethodPost, "/v1/splits/"+uuid.NewString()+"/retry", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusBadGateway, w.Code)
	assert.Equal(suite.T(), "SPLIT_REJECTED", errorOf(response)["code"])
}

func (suite *HandlersTestSuite) TestRetrySplitAlreadySubmitted() {
	id := "split_1"
	suite.operator.result = &services.ProcessResult{Split: &models.SplitRecord{ExternalSplitID: &id}}
	w, response := suite.do(http.MethodPost, "/v1/splits/"+uuid.NewString()+"/retry", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "Split was already submitted for this order", data["message"])

	suite.operator.result.Payment = &models.Payment{}
	_, response = suite.do(http.MethodPost, "/v1/splits/"+uuid.NewString()+"/retry", suite.adminToken, nil, nil)
	data = response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "Split submitted", data["message"])
}

func (suite *HandlersTestSuite) TestRetrySplitConsistencyError() {
	suite.operator.err = apperr.Consistency("services.CommissionService.RetrySplit", "split references unknown payment")
	w, response := suite.do(http.MethodPost, "/v1/splits/"+uuid.NewString()+"/retry", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	assert.Equal(suite.T(), "CONSISTENCY_ERROR", errorOf(response)["code"])
}

func (suite *HandlersTestSuite) TestProcessPaymentSubmitsSplit() {
	paymentID := uuid.New()
	id := "split_9"
	suite.operator.result = &services.ProcessResult{
		Payment: &models.Payment{},
		Split:   &models.SplitRecord{OrderID: paymentID, ExternalSplitID: &id, Status: models.SplitStatusSent},
		Reused:  true,
	}

	w, response := suite.do(http.MethodPost, "/v1/commissions/payments/"+paymentID.String()+"/process", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), "Split submitted", data["message"])
	assert.Equal(suite.T(), true, data["reused"])
	assert.Equal(suite.T(), []uuid.UUID{paymentID}, suite.operator.processed)
}

func (suite *HandlersTestSuite) TestProcessPaymentStillMissingWallet() {
	suite.operator.err = apperr.ValidationWrap("services.SplitBuilder.BuildSplitItems", "split_items", &services.SplitValidationError{
		Problems: []services.SplitProblem{{Role: "n3", ValueCents: 200, Reason: services.ReasonWalletMissing}},
	})
	suite.operator.result = &services.ProcessResult{}

	w, response := suite.do(http.MethodPost, "/v1/commissions/payments/"+uuid.NewString()+"/process", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "SPLIT_VALIDATION_ERROR", errorOf(response)["code"])
}

func (suite *HandlersTestSuite) TestProcessPaymentNotFound() {
	suite.operator.err = &apperr.Error{Kind: apperr.KindValidation, Op: "services.CommissionService.ProcessPayment", Field: "payment_id", Err: apperr.ErrPaymentNotFound}
	w, _ := suite.do(http.MethodPost, "/v1/commissions/payments/"+uuid.NewString()+"/process", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)

	w, _ = suite.do(http.MethodPost, "/v1/commissions/payments/not-a-uuid/process", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w, _ = suite.do(http.MethodPost, "/v1/commissions/payments/"+uuid.NewString()+"/process", suite.affiliateToken, nil, nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *HandlersTestSuite) TestValidateWallet() {
	w, response := suite.do(http.MethodGet, "/v1/wallets/wal_123/validation", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	data := response["data"].(map[string]interface{})
	assert.Equal(suite.T(), true, data["usable"])
	assert.Equal(suite.T(), "wal_123", data["wallet"].(map[string]interface{})["wallet_id"])

	w, _ = suite.do(http.MethodGet, "/v1/wallets/bad%20wallet/validation", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	suite.wallets.err = apperr.Transient("services.WalletValidator.Validate", errors.New("timeout"))
	w, _ = suite.do(http.MethodGet, "/v1/wallets/wal_123/validation", suite.adminToken, nil, nil)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, w.Code)
}

func (suite *HandlersTestSuite) TestHealth() {
	w, response := suite.do(http.MethodGet, "/health", "", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "healthy", response["status"])

	suite.dbErr = errors.New("connection refused")
	w, response = suite.do(http.MethodGet, "/health", "", nil, nil)
	assert.Equal(suite.T(), http.StatusServiceUnavailable, w.Code)
	assert.Equal(suite.T(), "connection refused", response["checks"].(map[string]interface{})["database"])
}

func TestHandlersSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
