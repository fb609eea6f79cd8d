package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes callers branch on.
const (
	CodeInsufficientFunds = "LED_001"
	CodeCurrencyMismatch  = "LED_002"
	CodeNotFound          = "LED_004"
	CodeProviderRejected  = "WDR_001"
	CodeInvalidSignature  = "SEC_001"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// IsCode reports whether err is an AppError carrying the given code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Ledger (LED) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrCurrencyMismatch() *AppError {
	return New(CodeCurrencyMismatch, "Entry currency does not match wallet currency", http.StatusConflict)
}

func ErrInvalidAmount() *AppError {
	return New("LED_003", "Invalid amount", http.StatusBadRequest)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

func ErrInvalidEntryType() *AppError {
	return New("LED_005", "Unknown ledger entry type", http.StatusBadRequest)
}

// ---- Withdrawal & Settlement (WDR) ----

// ErrProviderRejected reports a synchronous transfer-provider failure.
// The compensating reversal has already been applied when this is returned.
func ErrProviderRejected(reason string) *AppError {
	return New(CodeProviderRejected, fmt.Sprintf("Transfer provider rejected the withdrawal: %s", reason), http.StatusBadGateway)
}

func ErrWithdrawalNotFound() *AppError {
	return New("WDR_002", "Withdrawal not found", http.StatusNotFound)
}

func ErrDestinationNotFound() *AppError {
	return New("WDR_003", "Payout destination not found", http.StatusNotFound)
}

// ---- Security & Authentication (SEC) ----

func ErrInvalidSignature() *AppError {
	return New(CodeInvalidSignature, "Invalid signature", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("SEC_002", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a LED_003-style validation error with a custom message.
func Validation(message string) *AppError {
	return New("LED_003", message, http.StatusBadRequest)
}
