package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	customerdomain "github.com/smallbiznis/netbill/internal/customer/domain"
	"github.com/smallbiznis/netbill/pkg/db/pagination"
)

type createCustomerRequest struct {
	Name        string `json:"name" binding:"required"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	PackageName string `json:"package_name"`
	MonthlyFee  int64  `json:"monthly_fee"`
	CarriedDebt int64  `json:"carried_debt"`
}

type setCarriedDebtRequest struct {
	Amount *int64 `json:"amount" binding:"required"`
}

type setCustomerStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (s *Server) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.Create(c.Request.Context(), customerdomain.CreateCustomerRequest{
		Name:        strings.TrimSpace(req.Name),
		Phone:       strings.TrimSpace(req.Phone),
		Address:     strings.TrimSpace(req.Address),
		PackageName: strings.TrimSpace(req.PackageName),
		MonthlyFee:  req.MonthlyFee,
		CarriedDebt: req.CarriedDebt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) ListCustomers(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Name   string `form:"name"`
		Status string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.List(c.Request.Context(), customerdomain.ListCustomerRequest{
		PageToken: query.PageToken,
		PageSize:  int32(query.PageSize),
		Name:      strings.TrimSpace(query.Name),
		Status:    strings.TrimSpace(query.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Customers, "page_info": resp.PageInfo})
}

func (s *Server) GetCustomerByID(c *gin.Context) {
	resp, err := s.customerSvc.GetByID(c.Request.Context(), customerdomain.GetCustomerRequest{
		ID: strings.TrimSpace(c.Param("id")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetCustomerCarriedDebt(c *gin.Context) {
	var req setCarriedDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.SetCarriedDebt(c.Request.Context(), customerdomain.SetCarriedDebtRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Amount: *req.Amount,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) SetCustomerStatus(c *gin.Context) {
	var req setCustomerStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.customerSvc.SetStatus(c.Request.Context(), customerdomain.SetStatusRequest{
		ID:     strings.TrimSpace(c.Param("id")),
		Status: req.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
