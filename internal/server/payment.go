package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/netbill/internal/payment/domain"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
)

type recordPaymentRequest struct {
	Amount          *int64 `json:"amount" binding:"required"`
	Method          string `json:"method" binding:"required"`
	ReferenceNumber string `json:"reference_number"`
	Notes           string `json:"notes"`
	PaymentDate     string `json:"payment_date"`
}

func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	paymentDate, err := parseOptionalTime(req.PaymentDate)
	if err != nil {
		AbortWithError(c, newValidationError("payment_date", "invalid_payment_date", "payment_date must be a date or RFC3339 time"))
		return
	}

	in := paymentdomain.RecordPaymentRequest{
		BillID:          strings.TrimSpace(c.Param("id")),
		Amount:          *req.Amount,
		Method:          req.Method,
		ReferenceNumber: req.ReferenceNumber,
		Notes:           req.Notes,
	}
	if !paymentDate.IsZero() {
		in.PaymentDate = &paymentDate
	}

	resp, err := s.paymentSvc.RecordPayment(c.Request.Context(), in)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListBillPayments(c *gin.Context) {
	payments, err := s.paymentSvc.ListByBill(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) ListPayments(c *gin.Context) {
	var query struct {
		pagination.Pagination
		BillID     string `form:"bill_id"`
		CustomerID string `form:"customer_id"`
		Method     string `form:"method"`
		DateFrom   string `form:"date_from"`
		DateTo     string `form:"date_to"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	dateFrom, err := parseOptionalTime(query.DateFrom)
	if err != nil {
		AbortWithError(c, newValidationError("date_from", "invalid_date_from", "date_from must be a date or RFC3339 time"))
		return
	}
	dateTo, err := parseOptionalTime(query.DateTo)
	if err != nil {
		AbortWithError(c, newValidationError("date_to", "invalid_date_to", "date_to must be a date or RFC3339 time"))
		return
	}

	resp, err := s.paymentSvc.List(c.Request.Context(), paymentdomain.ListPaymentRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		BillID:     query.BillID,
		CustomerID: query.CustomerID,
		Method:     query.Method,
		DateFrom:   dateFrom,
		DateTo:     dateTo,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Payments, "page_info": resp.PageInfo})
}
