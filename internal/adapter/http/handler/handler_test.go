package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"salon-magik-hub/internal/adapter/http/dto"
	"salon-magik-hub/internal/adapter/http/middleware"
	"salon-magik-hub/internal/core/domain"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/internal/core/ports/mocks"
	"salon-magik-hub/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func jsonRequest(t *testing.T, method, target string, payload any) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

func authenticate(c *gin.Context, tenantID uuid.UUID) {
	c.Set(middleware.CtxTenantID, tenantID)
}

func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, ok := resp["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

// --- Auth Handler Tests ---

func TestToken_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTokens := mocks.NewMockTokenService(ctrl)
	h := NewAuthHandler(mockTokens, "pk_live_abc")

	tenantID := uuid.New()
	expiry := time.Now().Add(time.Hour)
	mockTokens.EXPECT().Generate(tenantID).Return("jwt-token-123", expiry, nil)

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/auth/token", dto.TokenRequest{
		TenantID:    tenantID.String(),
		PlatformKey: "pk_live_abc",
	})

	h.Token(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, "jwt-token-123", data["token"])
	assert.Equal(t, float64(expiry.Unix()), data["expiry"])
}

func TestToken_WrongPlatformKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTokens := mocks.NewMockTokenService(ctrl)
	h := NewAuthHandler(mockTokens, "pk_live_abc")

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/auth/token", dto.TokenRequest{
		TenantID:    uuid.New().String(),
		PlatformKey: "pk_live_wrong",
	})

	h.Token(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestToken_EmptyConfiguredKeyRejectsAll(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTokens := mocks.NewMockTokenService(ctrl)
	h := NewAuthHandler(mockTokens, "")

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/auth/token", dto.TokenRequest{
		TenantID:    uuid.New().String(),
		PlatformKey: "",
	})

	h.Token(c)

	// Binding rejects the empty key before the comparison runs.
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestToken_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockTokens := mocks.NewMockTokenService(ctrl)
	h := NewAuthHandler(mockTokens, "pk_live_abc")

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/auth/token", map[string]string{})

	h.Token(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(ctx context.Context) error { return s.err }
func (s stubChecker) Name() string                   { return s.name }

func TestHealthCheck_AllHealthy(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "healthy", deps["postgresql"])
	assert.Equal(t, "healthy", deps["redis"])
}

func TestHealthCheck_DependencyDown(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(stubChecker{name: "postgresql"}, stubChecker{name: "redis", err: errors.New("connection refused")})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp["status"])
}

// --- Wallet Handler Tests ---

func TestTopup_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	tenantID := uuid.New()
	customerID := uuid.New()
	walletID := uuid.New()

	mockLedger.EXPECT().CreditWallet(gomock.Any(), ports.CreditWalletRequest{
		TenantID:       tenantID,
		Kind:           domain.WalletKindCustomerPurse,
		OwnerID:        customerID,
		EntryType:      domain.EntryTypeCustomerPurseTopup,
		Amount:         5000,
		Currency:       "NGN",
		ReferenceType:  domain.ReferenceTypeTopup,
		ReferenceID:    "topup_789",
		IdempotencyKey: "key_abc",
	}).Return(&domain.LedgerEntry{
		ID:           "01J8ENTRY",
		TenantID:     tenantID,
		WalletID:     walletID,
		EntryType:    domain.EntryTypeCustomerPurseTopup,
		Amount:       5000,
		Currency:     "NGN",
		BalanceAfter: 5000,
		CreatedAt:    time.Now(),
	}, nil)

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/purses/topup", dto.TopupRequest{
		CustomerID:     customerID.String(),
		Amount:         5000,
		Currency:       "NGN",
		ReferenceID:    "topup_789",
		IdempotencyKey: "key_abc",
	})
	authenticate(c, tenantID)

	h.Topup(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := responseData(t, w)
	assert.Equal(t, "01J8ENTRY", data["id"])
	assert.Equal(t, float64(5000), data["balance_after"])
}

func TestTopup_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/purses/topup", map[string]any{
		"customer_id": "not-a-uuid",
		"amount":      100,
	})
	authenticate(c, uuid.New())

	h.Topup(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBalance_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	tenantID := uuid.New()
	walletID := uuid.New()

	mockLedger.EXPECT().GetWallet(gomock.Any(), walletID).Return(&domain.Wallet{
		ID:       walletID,
		TenantID: tenantID,
		Kind:     domain.WalletKindSalonWallet,
		Balance:  123400,
		Currency: "NGN",
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+walletID.String()+"/balance", nil)
	c.Params = gin.Params{{Key: "id", Value: walletID.String()}}
	authenticate(c, tenantID)

	h.GetBalance(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, float64(123400), data["balance"])
	assert.Equal(t, "salon_wallet", data["kind"])
}

func TestGetBalance_ForeignWalletHidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	walletID := uuid.New()
	mockLedger.EXPECT().GetWallet(gomock.Any(), walletID).Return(&domain.Wallet{
		ID:       walletID,
		TenantID: uuid.New(), // belongs to another tenant
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+walletID.String()+"/balance", nil)
	c.Params = gin.Params{{Key: "id", Value: walletID.String()}}
	authenticate(c, uuid.New())

	h.GetBalance(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEntries_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	tenantID := uuid.New()
	walletID := uuid.New()

	mockLedger.EXPECT().GetWallet(gomock.Any(), walletID).Return(&domain.Wallet{
		ID:       walletID,
		TenantID: tenantID,
	}, nil)
	mockLedger.EXPECT().ListWalletEntries(gomock.Any(), walletID, 2, 10).Return([]domain.LedgerEntry{
		{ID: "01J8AAA", EntryType: domain.EntryTypeSalonPurseCreditBooking, Amount: 7000, BalanceAfter: 7000},
	}, int64(11), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/wallets/"+walletID.String()+"/entries?page=2&page_size=10", nil)
	c.Params = gin.Params{{Key: "id", Value: walletID.String()}}
	authenticate(c, tenantID)

	h.ListEntries(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, float64(11), data["total"])
	assert.Equal(t, float64(2), data["page"])
	entries := data["entries"].([]interface{})
	require.Len(t, entries, 1)
}

func TestBookingCredit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	tenantID := uuid.New()
	mockLedger.EXPECT().CreditWallet(gomock.Any(), ports.CreditWalletRequest{
		TenantID:       tenantID,
		Kind:           domain.WalletKindSalonWallet,
		OwnerID:        tenantID,
		EntryType:      domain.EntryTypeSalonPurseCreditBooking,
		Amount:         25000,
		Currency:       "NGN",
		ReferenceType:  domain.ReferenceTypeBooking,
		ReferenceID:    "booking_42",
		IdempotencyKey: "key_bc_42",
	}).Return(&domain.LedgerEntry{ID: "01J8BBB", Amount: 25000, BalanceAfter: 25000}, nil)

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/wallets/booking-credit", dto.BookingCreditRequest{
		Amount:         25000,
		Currency:       "NGN",
		BookingID:      "booking_42",
		IdempotencyKey: "key_bc_42",
	})
	authenticate(c, tenantID)

	h.BookingCredit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreditPurchase_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockLedger := mocks.NewMockLedgerService(ctrl)
	h := NewWalletHandler(mockLedger)

	tenantID := uuid.New()
	walletID := uuid.New()

	mockLedger.EXPECT().GetWallet(gomock.Any(), walletID).Return(&domain.Wallet{
		ID:       walletID,
		TenantID: tenantID,
	}, nil)
	mockLedger.EXPECT().DebitWallet(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrInsufficientFunds())

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/wallets/credit-purchase", dto.CreditPurchaseRequest{
		WalletID:       walletID.String(),
		Amount:         999999,
		Currency:       "NGN",
		PurchaseID:     "purchase_7",
		IdempotencyKey: "key_cp_7",
	})
	authenticate(c, tenantID)

	h.CreditPurchase(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

// --- Withdrawal Handler Tests ---

func TestCreateWithdrawal_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawals := mocks.NewMockWithdrawalService(ctrl)
	mockDests := mocks.NewMockDestinationRepository(ctrl)
	h := NewWithdrawalHandler(mockWithdrawals, mockDests)

	tenantID := uuid.New()
	destID := uuid.New()
	withdrawalID := uuid.New()

	mockWithdrawals.EXPECT().CreateWithdrawal(gomock.Any(), ports.CreateWithdrawalRequest{
		TenantID:      tenantID,
		DestinationID: destID,
		Amount:        40000,
	}).Return(&domain.Withdrawal{
		ID:            withdrawalID,
		TenantID:      tenantID,
		DestinationID: destID,
		Amount:        40000,
		Currency:      "NGN",
		Status:        domain.WithdrawalStatusProcessing,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}, nil)

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/withdrawals", dto.CreateWithdrawalRequest{
		DestinationID: destID.String(),
		Amount:        40000,
	})
	authenticate(c, tenantID)

	h.Create(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := responseData(t, w)
	assert.Equal(t, withdrawalID.String(), data["id"])
	assert.Equal(t, "processing", data["status"])
}

func TestCreateWithdrawal_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawals := mocks.NewMockWithdrawalService(ctrl)
	mockDests := mocks.NewMockDestinationRepository(ctrl)
	h := NewWithdrawalHandler(mockWithdrawals, mockDests)

	mockWithdrawals.EXPECT().CreateWithdrawal(gomock.Any(), gomock.Any()).
		Return(nil, apperror.ErrInsufficientFunds())

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/withdrawals", dto.CreateWithdrawalRequest{
		DestinationID: uuid.New().String(),
		Amount:        40000,
	})
	authenticate(c, uuid.New())

	h.Create(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
}

func TestGetWithdrawal_NotFound(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawals := mocks.NewMockWithdrawalService(ctrl)
	mockDests := mocks.NewMockDestinationRepository(ctrl)
	h := NewWithdrawalHandler(mockWithdrawals, mockDests)

	tenantID := uuid.New()
	id := uuid.New()
	mockWithdrawals.EXPECT().GetWithdrawal(gomock.Any(), tenantID, id).
		Return(nil, apperror.ErrWithdrawalNotFound())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/withdrawals/"+id.String(), nil)
	c.Params = gin.Params{{Key: "id", Value: id.String()}}
	authenticate(c, tenantID)

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListWithdrawals_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawals := mocks.NewMockWithdrawalService(ctrl)
	mockDests := mocks.NewMockDestinationRepository(ctrl)
	h := NewWithdrawalHandler(mockWithdrawals, mockDests)

	tenantID := uuid.New()
	mockWithdrawals.EXPECT().ListWithdrawals(gomock.Any(), tenantID, 1, 20).
		Return([]domain.Withdrawal{
			{ID: uuid.New(), Status: domain.WithdrawalStatusCompleted, Amount: 40000},
		}, int64(1), nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/withdrawals", nil)
	authenticate(c, tenantID)

	h.List(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := responseData(t, w)
	assert.Equal(t, float64(1), data["total"])
}

func TestCreateDestination_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawals := mocks.NewMockWithdrawalService(ctrl)
	mockDests := mocks.NewMockDestinationRepository(ctrl)
	h := NewWithdrawalHandler(mockWithdrawals, mockDests)

	tenantID := uuid.New()
	mockDests.EXPECT().Create(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, dest *domain.PayoutDestination) error {
			assert.Equal(t, tenantID, dest.TenantID)
			assert.Equal(t, domain.PayoutChannelBank, dest.Channel)
			assert.Equal(t, "RCP_abc123", dest.RecipientCode)
			return nil
		})

	c, w := jsonRequest(t, http.MethodPost, "/api/v1/destinations", dto.CreateDestinationRequest{
		Channel:       "bank",
		Label:         "GTBank ••4821",
		RecipientCode: "RCP_abc123",
		Currency:      "NGN",
	})
	authenticate(c, tenantID)

	h.CreateDestination(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	// The provider-side recipient code must never be echoed back.
	assert.NotContains(t, w.Body.String(), "RCP_abc123")
}

func TestListDestinations_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWithdrawals := mocks.NewMockWithdrawalService(ctrl)
	mockDests := mocks.NewMockDestinationRepository(ctrl)
	h := NewWithdrawalHandler(mockWithdrawals, mockDests)

	tenantID := uuid.New()
	mockDests.EXPECT().ListByTenant(gomock.Any(), tenantID).Return([]domain.PayoutDestination{
		{ID: uuid.New(), TenantID: tenantID, Channel: domain.PayoutChannelMobileMoney, Label: "MTN MoMo", Currency: "GHS"},
	}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/destinations", nil)
	authenticate(c, tenantID)

	h.ListDestinations(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Settlement Handler Tests ---

func TestHandleWebhook_Acknowledges(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(mockSettlement, zerolog.Nop())

	body := []byte(`{"event":"transfer.success","data":{"reference":"withdrawal_x_1"}}`)
	mockSettlement.EXPECT().HandleEvent(gomock.Any(), body, "sig123").Return(nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/transfer", bytes.NewReader(body))
	c.Request.Header.Set(SignatureHeader, "sig123")

	h.HandleWebhook(c)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["received"])
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettlement := mocks.NewMockSettlementService(ctrl)
	h := NewSettlementHandler(mockSettlement, zerolog.Nop())

	body := []byte(`{"event":"transfer.success"}`)
	mockSettlement.EXPECT().HandleEvent(gomock.Any(), body, "bad").
		Return(apperror.ErrInvalidSignature())

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/webhooks/transfer", bytes.NewReader(body))
	c.Request.Header.Set(SignatureHeader, "bad")

	h.HandleWebhook(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
