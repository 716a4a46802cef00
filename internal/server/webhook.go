package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// @Summary      Ingest Gateway Webhook
// @Description  Verify and apply an asynchronous gateway refund notification
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Param        provider  path  string  true  "Gateway provider"
// @Success      200  {object}  map[string]string
// @Router       /webhooks/{provider} [post]
func (s *Server) IngestWebhook(c *gin.Context) {
	provider := c.Param("provider")
	if !s.webhookLimit.Allow(provider + ":" + c.ClientIP()) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": apiError{
			Status:  http.StatusTooManyRequests,
			Code:    "rate_limited",
			Message: "too many requests",
		}})
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.gatewaySvc.IngestWebhook(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
