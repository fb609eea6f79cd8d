package handler

import (
	"time"

	"salon-magik-hub/internal/adapter/http/dto"
	"salon-magik-hub/internal/core/domain"
	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/pkg/apperror"
	"salon-magik-hub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WithdrawalHandler handles payout endpoints: withdrawals and the
// destinations they settle to.
type WithdrawalHandler struct {
	withdrawals ports.WithdrawalService
	dests       ports.DestinationRepository
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawals ports.WithdrawalService, dests ports.DestinationRepository) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawals: withdrawals, dests: dests}
}

// Create handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	destID, err := uuid.Parse(req.DestinationID)
	if err != nil {
		response.Error(c, apperror.Validation("invalid destination id"))
		return
	}

	w, err := h.withdrawals.CreateWithdrawal(c.Request.Context(), ports.CreateWithdrawalRequest{
		TenantID:      tid,
		DestinationID: destID,
		Amount:        req.Amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toWithdrawalResponse(*w))
}

// Get handles GET /api/v1/withdrawals/:id.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("invalid withdrawal id"))
		return
	}

	w, err := h.withdrawals.GetWithdrawal(c.Request.Context(), tid, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toWithdrawalResponse(*w))
}

// List handles GET /api/v1/withdrawals.
func (h *WithdrawalHandler) List(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	page := intQuery(c, "page", 1)
	pageSize := intQuery(c, "page_size", 20)

	ws, total, err := h.withdrawals.ListWithdrawals(c.Request.Context(), tid, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.WithdrawalResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, toWithdrawalResponse(w))
	}

	response.OK(c, dto.WithdrawalListResponse{
		Withdrawals: out,
		Total:       total,
		Page:        page,
		PageSize:    pageSize,
	})
}

// CreateDestination handles POST /api/v1/destinations.
func (h *WithdrawalHandler) CreateDestination(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	var req dto.CreateDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	dest := &domain.PayoutDestination{
		ID:            uuid.New(),
		TenantID:      tid,
		Channel:       domain.PayoutChannel(req.Channel),
		Label:         req.Label,
		RecipientCode: req.RecipientCode,
		Currency:      req.Currency,
		CreatedAt:     time.Now(),
	}
	if err := h.dests.Create(c.Request.Context(), dest); err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, toDestinationResponse(*dest))
}

// ListDestinations handles GET /api/v1/destinations.
func (h *WithdrawalHandler) ListDestinations(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}

	dests, err := h.dests.ListByTenant(c.Request.Context(), tid)
	if err != nil {
		response.Error(c, err)
		return
	}

	out := make([]dto.DestinationResponse, 0, len(dests))
	for _, d := range dests {
		out = append(out, toDestinationResponse(d))
	}

	response.OK(c, out)
}

func toWithdrawalResponse(w domain.Withdrawal) dto.WithdrawalResponse {
	return dto.WithdrawalResponse{
		ID:                w.ID.String(),
		DestinationID:     w.DestinationID.String(),
		Amount:            w.Amount,
		Currency:          w.Currency,
		Status:            string(w.Status),
		FailureReason:     w.FailureReason,
		TransferReference: w.TransferReference,
		CreatedAt:         w.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         w.UpdatedAt.Format(time.RFC3339),
	}
}

func toDestinationResponse(d domain.PayoutDestination) dto.DestinationResponse {
	return dto.DestinationResponse{
		ID:        d.ID.String(),
		Channel:   string(d.Channel),
		Label:     d.Label,
		Currency:  d.Currency,
		CreatedAt: d.CreatedAt.Format(time.RFC3339),
	}
}
