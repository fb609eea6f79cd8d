package dto

// TopupRequest credits a customer purse with prepaid value.
type TopupRequest struct {
	CustomerID     string `json:"customer_id" binding:"required,uuid"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
	ReferenceID    string `json:"reference_id" binding:"required,max=100"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=200"`
}

// BookingCreditRequest credits the salon wallet for a settled booking.
type BookingCreditRequest struct {
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
	BookingID      string `json:"booking_id" binding:"required,max=100"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=200"`
}

// CreditPurchaseRequest debits the salon wallet for a credit purchase.
type CreditPurchaseRequest struct {
	WalletID       string `json:"wallet_id" binding:"required,uuid"`
	Amount         int64  `json:"amount" binding:"required,gt=0"`
	Currency       string `json:"currency" binding:"required,len=3"`
	PurchaseID     string `json:"purchase_id" binding:"required,max=100"`
	IdempotencyKey string `json:"idempotency_key" binding:"required,max=200"`
}

// CreateWithdrawalRequest starts a payout to a registered destination.
type CreateWithdrawalRequest struct {
	DestinationID string `json:"destination_id" binding:"required,uuid"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
}

// CreateDestinationRequest registers a payout destination.
type CreateDestinationRequest struct {
	Channel       string `json:"channel" binding:"required,oneof=bank mobile_money"`
	Label         string `json:"label" binding:"required,max=100"`
	RecipientCode string `json:"recipient_code" binding:"required,max=100"`
	Currency      string `json:"currency" binding:"required,len=3"`
}

// TokenRequest exchanges the platform key for a tenant-scoped JWT.
type TokenRequest struct {
	TenantID    string `json:"tenant_id" binding:"required,uuid"`
	PlatformKey string `json:"platform_key" binding:"required"`
}

// TokenResponse carries the issued token.
type TokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// WalletBalanceResponse is the wallet balance view.
type WalletBalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Kind     string `json:"kind"`
	Balance  int64  `json:"balance"`
	Currency string `json:"currency"`
}

// EntryResponse is one statement line.
type EntryResponse struct {
	ID            string `json:"id"`
	WalletID      string `json:"wallet_id"`
	EntryType     string `json:"entry_type"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	BalanceAfter  int64  `json:"balance_after"`
	ReferenceType string `json:"reference_type"`
	ReferenceID   string `json:"reference_id"`
	CreatedAt     string `json:"created_at"`
}

// EntryListResponse is a page of a wallet statement.
type EntryListResponse struct {
	Entries  []EntryResponse `json:"entries"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
}

// WithdrawalResponse is the withdrawal view returned to the tenant.
type WithdrawalResponse struct {
	ID                string  `json:"id"`
	DestinationID     string  `json:"destination_id"`
	Amount            int64   `json:"amount"`
	Currency          string  `json:"currency"`
	Status            string  `json:"status"`
	FailureReason     *string `json:"failure_reason,omitempty"`
	TransferReference *string `json:"transfer_reference,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

// WithdrawalListResponse is a page of withdrawals.
type WithdrawalListResponse struct {
	Withdrawals []WithdrawalResponse `json:"withdrawals"`
	Total       int64                `json:"total"`
	Page        int                  `json:"page"`
	PageSize    int                  `json:"page_size"`
}

// DestinationResponse is the payout destination view. The provider-side
// recipient code is never echoed back.
type DestinationResponse struct {
	ID        string `json:"id"`
	Channel   string `json:"channel"`
	Label     string `json:"label"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"created_at"`
}
