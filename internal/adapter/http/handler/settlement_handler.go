package handler

import (
	"io"
	"net/http"

	"salon-magik-hub/internal/core/ports"
	"salon-magik-hub/pkg/apperror"
	"salon-magik-hub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SignatureHeader carries the provider's HMAC over the raw webhook body.
const SignatureHeader = "X-Provider-Signature"

// SettlementHandler receives transfer webhooks from the payout provider.
type SettlementHandler struct {
	settlement ports.SettlementService
	log        zerolog.Logger
}

// NewSettlementHandler creates a new SettlementHandler.
func NewSettlementHandler(settlement ports.SettlementService, log zerolog.Logger) *SettlementHandler {
	return &SettlementHandler{settlement: settlement, log: log}
}

// HandleWebhook handles POST /webhooks/transfer. The raw body is read
// before any parsing because the signature covers the exact bytes sent.
// Once the caller is authenticated every event is acknowledged with 200 so
// the provider does not retry events we have chosen to absorb.
func (h *SettlementHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Warn().Err(err).Msg("failed to read webhook body")
		response.Error(c, apperror.Validation("unreadable body"))
		return
	}

	signature := c.GetHeader(SignatureHeader)
	if err := h.settlement.HandleEvent(c.Request.Context(), body, signature); err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
