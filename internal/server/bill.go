package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
)

type generateBillsRequest struct {
	Month int `json:"month" binding:"required"`
	Year  int `json:"year" binding:"required"`
}

type adjustBillRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
}

func (s *Server) GenerateBills(c *gin.Context) {
	var req generateBillsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billSvc.Generate(c.Request.Context(), billdomain.GenerateRequest{
		Month: req.Month,
		Year:  req.Year,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListBills(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Month      string `form:"month"`
		Year       string `form:"year"`
		Status     string `form:"status"`
		CustomerID string `form:"customer_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	month, year, err := parsePeriod(query.Month, query.Year)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billSvc.List(c.Request.Context(), billdomain.ListBillRequest{
		PageToken:  query.PageToken,
		PageSize:   int32(query.PageSize),
		Month:      month,
		Year:       year,
		Status:     strings.TrimSpace(query.Status),
		CustomerID: strings.TrimSpace(query.CustomerID),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Bills, "page_info": resp.PageInfo})
}

func (s *Server) GetBillStats(c *gin.Context) {
	month, year, err := parsePeriod(c.Query("month"), c.Query("year"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.billSvc.Stats(c.Request.Context(), billdomain.StatsRequest{Month: month, Year: year})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOverdueBills(c *gin.Context) {
	asOf, err := parseOptionalTime(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "as_of must be a date or RFC3339 time"))
		return
	}
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a number"))
		return
	}

	bills, err := s.billSvc.ListOverdue(c.Request.Context(), billdomain.OverdueRequest{AsOf: asOf, Limit: limit})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": bills})
}

func (s *Server) GetBillByID(c *gin.Context) {
	resp, err := s.billSvc.GetByID(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetBillDocument(c *gin.Context) {
	doc, err := s.billSvc.Document(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Header("Content-Disposition", `inline; filename="`+doc.Filename+`"`)
	c.Data(http.StatusOK, "application/pdf", doc.Content)
}

func (s *Server) SendBillReminder(c *gin.Context) {
	result, err := s.billSvc.SendReminder(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) SetBillCompensation(c *gin.Context) {
	s.adjustBill(c, s.billSvc.SetCompensation)
}

func (s *Server) SetBillPreviousDebt(c *gin.Context) {
	s.adjustBill(c, s.billSvc.SetPreviousDebt)
}

func (s *Server) adjustBill(c *gin.Context, apply func(context.Context, billdomain.AdjustRequest) (billdomain.Bill, error)) {
	var req adjustBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := apply(c.Request.Context(), billdomain.AdjustRequest{
		BillID: strings.TrimSpace(c.Param("id")),
		Amount: *req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
