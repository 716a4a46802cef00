package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vendora/refundcore/internal/principal"
)

// @Summary      Stale Transactions
// @Description  Transactions left processing past the stale age, for manual reconciliation
// @Tags         reconciliation
// @Produce      json
// @Param        limit  query  int  false  "Limit"
// @Success      200  {object}  []recondomain.StaleTransaction
// @Router       /reconciliation/stale [get]
func (s *Server) StaleTransactions(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}
	if !caller.IsAdmin && !caller.Has(principal.CapabilityFinance) {
		AbortWithError(c, ErrForbidden)
		return
	}

	var query struct {
		Limit int `form:"limit"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	report, err := s.recorder.StaleReport(c.Request.Context(), query.Limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}
