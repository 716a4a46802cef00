package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/vendora/refundcore/internal/money"
)

// @Summary      Get Credit Note
// @Description  Get a credit note by ID
// @Tags         credit-notes
// @Produce      json
// @Param        id   path      string  true  "Credit Note ID"
// @Success      200  {object}  creditnotedomain.CreditNote
// @Router       /credit-notes/{id} [get]
func (s *Server) GetCreditNote(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	id := parseID(c.Param("id"))
	if id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid credit note id"))
		return
	}

	note, err := s.creditNoteSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !caller.IsAdmin && caller.CustomerID != note.CustomerID {
		AbortWithError(c, ErrForbidden)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": note})
}

type consumeCreditNoteRequest struct {
	Amount string `json:"amount"`
}

// @Summary      Consume Credit Note
// @Description  Spend part of a credit note's remaining balance
// @Tags         credit-notes
// @Accept       json
// @Produce      json
// @Param        id       path  string                    true  "Credit Note ID"
// @Param        request  body  consumeCreditNoteRequest  true  "Consume Request"
// @Success      200  {object}  map[string]string
// @Router       /credit-notes/{id}/consume [post]
func (s *Server) ConsumeCreditNote(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	id := parseID(c.Param("id"))
	if id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid credit note id"))
		return
	}

	var req consumeCreditNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := money.Parse(req.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}

	note, err := s.creditNoteSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !caller.IsAdmin && caller.CustomerID != note.CustomerID {
		AbortWithError(c, ErrForbidden)
		return
	}

	remaining, err := s.creditNoteSvc.Consume(c.Request.Context(), id, amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"credit_note_id":   id.String(),
		"remaining_amount": remaining.StringFixed(2),
	}})
}

// @Summary      Credit Balance
// @Description  Total active, unexpired credit for a customer
// @Tags         credit-notes
// @Produce      json
// @Param        id   path      string  true  "Customer ID"
// @Success      200  {object}  map[string]string
// @Router       /customers/{id}/credit-balance [get]
func (s *Server) GetCreditBalance(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	customerID := parseID(c.Param("id"))
	if customerID == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid customer id"))
		return
	}
	if !caller.IsAdmin && caller.CustomerID != customerID {
		AbortWithError(c, ErrForbidden)
		return
	}

	balance, err := s.creditNoteSvc.Balance(c.Request.Context(), customerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"customer_id": customerID.String(),
		"balance":     balance.StringFixed(2),
	}})
}
