package handler

import (
	"strconv"
	"time"

	"salon-magik-hub/internal/adapter/http/dto"
	"salon-magik-hub/internal/adapter/http/middleware"
	"salon-magik-hub/internal/core/domain"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/pkg/apperror"
	"salon-magik-hub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles ledger-facing endpoints: balances, statements, and
// the credit/debit verbs.
type WalletHandler struct {
	ledger ports.LedgerService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(ledger ports.LedgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

// tenantID extracts the authenticated tenant from the request context.
func tenantID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(middleware.CtxTenantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return v.(uuid.UUID), true
}

// GetBalance handles GET /api/v1/wallets/:id/balance.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	wallet, err := h.ledger.GetWallet(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if wallet.TenantID != tid {
		response.Error(c, apperror.ErrNotFound("wallet"))
		return
	}

	response.OK(c, dto.WalletBalanceResponse{
		WalletID: wallet.ID.String(),
		Kind:     string(wallet.Kind),
		Balance:  wallet.Balance,
		Currency: wallet.Currency,
	})
}

// ListEntries handles GET /api/v1/wallets/:id/entries.
func (h *WalletHandler) ListEntries(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	walletID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	wallet, err := h.ledger.GetWallet(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if wallet.TenantID != tid {
		response.Error(c, apperror.ErrNotFound("wallet"))
		return
	}

	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 20)

	entries, total, err := h.ledger.ListWalletEntries(c.Request.Context(), walletID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.EntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}

	response.OK(c, dto.EntryListResponse{
		Entries:  out,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// Topup handles POST /api/v1/purses/topup — credits a customer purse,
// creating it on first use.
func (h *WalletHandler) Topup(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	var req dto.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	customerID, err := uuid.Parse(req.CustomerID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid customer id"))
		return
	}

	entry, err := h.ledger.CreditWallet(c.Request.Context(), ports.CreditWalletRequest{
		TenantID:       tid,
		Kind:           domain.WalletKindCustomerPurse,
		OwnerID:        customerID,
		EntryType:      domain.EntryTypeCustomerPurseTopup,
		Amount:         req.Amount,
		Currency:       req.Currency,
		ReferenceType:  domain.ReferenceTypeTopup,
		ReferenceID:    req.ReferenceID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toEntryResponse(*entry))
}

// BookingCredit handles POST /api/v1/wallets/booking-credit — credits the
// salon wallet for a settled booking.
func (h *WalletHandler) BookingCredit(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	var req dto.BookingCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	entry, err := h.ledger.CreditWallet(c.Request.Context(), ports.CreditWalletRequest{
		TenantID:       tid,
		Kind:           domain.WalletKindSalonWallet,
		OwnerID:        tid,
		EntryType:      domain.EntryTypeSalonPurseCreditBooking,
		Amount:         req.Amount,
		Currency:       req.Currency,
		ReferenceType:  domain.ReferenceTypeBooking,
		ReferenceID:    req.BookingID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toEntryResponse(*entry))
}

// CreditPurchase handles POST /api/v1/wallets/credit-purchase — debits the
// salon wallet when the salon spends balance on platform credits.
func (h *WalletHandler) CreditPurchase(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	var req dto.CreditPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	walletID, err := uuid.Parse(req.WalletID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid wallet id"))
		return
	}

	wallet, err := h.ledger.GetWallet(c.Request.Context(), walletID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if wallet.TenantID != tid {
		response.Error(c, apperror.ErrNotFound("wallet"))
		return
	}

	entry, err := h.ledger.DebitWallet(c.Request.Context(), ports.DebitWalletRequest{
		TenantID:       tid,
		WalletID:       walletID,
		EntryType:      domain.EntryTypeSalonPurseDebitCreditPurchase,
		Amount:         req.Amount,
		Currency:       req.Currency,
		ReferenceType:  domain.ReferenceTypeCreditPurchase,
		ReferenceID:    req.PurchaseID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toEntryResponse(*entry))
}

func toEntryResponse(e domain.LedgerEntry) dto.EntryResponse {
	return dto.EntryResponse{
		ID:            e.ID,
		WalletID:      e.WalletID.String(),
		EntryType:     string(e.EntryType),
		Amount:        e.Amount,
		Currency:      e.Currency,
		BalanceAfter:  e.BalanceAfter,
		ReferenceType: e.ReferenceType,
		ReferenceID:   e.ReferenceID,
		CreatedAt:     e.CreatedAt.Format(time.RFC3339),
	}
}

// intQuery parses a positive integer query param with a fallback.
func intQuery(c *gin.Context, name string, fallback int) int {
	v := c.Query(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
