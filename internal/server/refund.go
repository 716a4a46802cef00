package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/vendora/refundcore/internal/money"
	refunddomain "github.com/vendora/refundcore/internal/refund/domain"
	"github.com/vendora/refundcore/pkg/db/pagination"
)

type createRefundRequest struct {
	OrderID    string `json:"order_id"`
	SaleID     string `json:"sale_id"`
	CustomerID string `json:"customer_id"`
	Amount     string `json:"amount"`
	Method     string `json:"method"`
	Reason     string `json:"reason"`
}

// @Summary      Create Refund
// @Description  Raise a refund request against a paid order or POS sale
// @Tags         refunds
// @Accept       json
// @Produce      json
// @Param        request body createRefundRequest true "Create Refund Request"
// @Success      200  {object}  refunddomain.RefundRequest
// @Router       /refunds [post]
func (s *Server) CreateRefund(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	var req createRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}

	create := refunddomain.CreateRequest{
		CustomerID: parseID(req.CustomerID),
		Amount:     amount,
		Method:     refunddomain.RefundMethod(strings.ToLower(strings.TrimSpace(req.Method))),
		Reason:     strings.TrimSpace(req.Reason),
	}
	if id := parseID(req.OrderID); id != 0 {
		create.OrderID = &id
	}
	if id := parseID(req.SaleID); id != 0 {
		create.SaleID = &id
	}

	resp, err := s.refundSvc.Create(c.Request.Context(), caller, create)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Refund
// @Description  Get a refund request by ID
// @Tags         refunds
// @Produce      json
// @Param        id   path      string  true  "Refund ID"
// @Success      200  {object}  refunddomain.RefundRequest
// @Router       /refunds/{id} [get]
func (s *Server) GetRefund(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	id := parseID(c.Param("id"))
	if id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid refund id"))
		return
	}

	resp, err := s.refundSvc.GetByID(c.Request.Context(), caller, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Refunds
// @Description  List refund requests visible to the caller
// @Tags         refunds
// @Produce      json
// @Param        status      query  string  false  "Status"
// @Param        method      query  string  false  "Method"
// @Param        page_token  query  string  false  "Page Token"
// @Param        page_size   query  int     false  "Page Size"
// @Success      200  {object}  refunddomain.ListResult
// @Router       /refunds [get]
func (s *Server) ListRefunds(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	var query struct {
		pagination.Pagination
		Status     string `form:"status"`
		Method     string `form:"method"`
		CustomerID string `form:"customer_id"`
		VendorID   string `form:"vendor_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.refundSvc.List(c.Request.Context(), caller, refunddomain.ListFilter{
		CustomerID: parseID(query.CustomerID),
		VendorID:   parseID(query.VendorID),
		Status:     refunddomain.RefundStatus(strings.TrimSpace(query.Status)),
		Method:     refunddomain.RefundMethod(strings.TrimSpace(query.Method)),
		PageToken:  query.PageToken,
		PageSize:   query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type transitionRefundRequest struct {
	Action          string `json:"action"`
	ExpectedVersion int64  `json:"expected_version"`
}

// @Summary      Transition Refund
// @Description  Apply a lifecycle action (approve, reject, process, cancel)
// @Tags         refunds
// @Accept       json
// @Produce      json
// @Param        id       path  string                   true  "Refund ID"
// @Param        request  body  transitionRefundRequest  true  "Transition Request"
// @Success      200  {object}  refunddomain.RefundRequest
// @Router       /refunds/{id}/transitions [post]
func (s *Server) TransitionRefund(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	id := parseID(c.Param("id"))
	if id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid refund id"))
		return
	}

	var req transitionRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	action, err := refunddomain.ParseAction(req.Action)
	if err != nil {
		AbortWithError(c, newValidationError("action", "invalid_action", "invalid transition action"))
		return
	}

	resp, err := s.refundSvc.Transition(c.Request.Context(), caller, refunddomain.TransitionRequest{
		RefundID:        id,
		Action:          action,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Refund Transactions
// @Description  List the money-movement trail for one refund
// @Tags         refunds
// @Produce      json
// @Param        id   path      string  true  "Refund ID"
// @Success      200  {object}  []recondomain.RefundTransaction
// @Router       /refunds/{id}/transactions [get]
func (s *Server) ListRefundTransactions(c *gin.Context) {
	caller, ok := s.caller(c)
	if !ok {
		return
	}

	id := parseID(c.Param("id"))
	if id == 0 {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid refund id"))
		return
	}

	// View scope on the parent refund also covers its trail.
	if _, err := s.refundSvc.GetByID(c.Request.Context(), caller, id); err != nil {
		AbortWithError(c, err)
		return
	}

	txns, err := s.recorder.ListByRefund(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": txns})
}
