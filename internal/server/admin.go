package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	billdomain "github.com/smallbiznis/netbill/internal/bill/domain"
)

type resetRequest struct {
	Scope        string `json:"scope" binding:"required"`
	Month        int    `json:"month"`
	Year         int    `json:"year"`
	Confirmation string `json:"confirmation" binding:"required"`
}

func (s *Server) ResetBilling(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.billSvc.ResetPeriod(c.Request.Context(), billdomain.ResetRequest{
		Scope:        billdomain.ResetScope(req.Scope),
		Month:        req.Month,
		Year:         req.Year,
		Confirmation: req.Confirmation,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
