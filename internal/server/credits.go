package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/gapline/internal/credit/domain"
	"github.com/smallbiznis/gapline/internal/providers/pdf"
)

type recordAIActionRequest struct {
	AccountID   *string        `json:"account_id"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) GetCreditUsage(c *gin.Context) {
	_, tenant, ok := s.tenantStore(c)
	if !ok {
		return
	}

	usage, err := s.creditSvc.GetCreditUsage(c.Request.Context(), tenant.ID, string(tenant.PlanType))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": usage})
}

// CheckCredits answers whether ?action= is affordable right now. It never spends.
func (s *Server) CheckCredits(c *gin.Context) {
	_, tenant, ok := s.tenantStore(c)
	if !ok {
		return
	}

	action := strings.TrimSpace(c.Query("action"))
	if action == "" {
		AbortWithError(c, newValidationError("action", "required", "action is required"))
		return
	}

	result, err := s.creditSvc.CheckCredits(c.Request.Context(), tenant.ID, string(tenant.PlanType), action)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

// GetCreditStatement renders the current period's usage as a PDF.
func (s *Server) GetCreditStatement(c *gin.Context) {
	_, tenant, ok := s.tenantStore(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	record, err := s.tenantSvc.Get(ctx, tenant.ID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	usage, err := s.creditSvc.GetCreditUsage(ctx, tenant.ID, string(tenant.PlanType))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.pdf.GenerateCreditStatement(ctx, pdf.StatementFromUsage(record.Name, usage, s.clock.Now()))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, map[string]string{
		"Content-Disposition": fmt.Sprintf(`attachment; filename="credit-statement-%s.pdf"`, usage.BillingPeriod),
	})
}

// RecordAIAction meters an AI action the caller has already completed.
func (s *Server) RecordAIAction(c *gin.Context) {
	store, tenant, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req recordAIActionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := parseOptionalSnowflakeID(ptrValue(req.AccountID))
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account id"))
		return
	}

	ctx := c.Request.Context()
	if accountID != nil {
		if _, err := store.Accounts().Get(ctx, *accountID); err != nil {
			AbortWithError(c, err)
			return
		}
	}

	action := c.Param("action")
	result, err := s.creditSvc.DeductCredits(ctx, tenant.ID, string(tenant.PlanType), action, &creditdomain.Metadata{
		AccountID:   accountID,
		Description: strings.TrimSpace(req.Description),
		Attributes:  req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !result.Success {
		cost, _ := creditdomain.LookupAction(action)
		abortInsufficientCredits(c, cost.Action, cost.Cost, result.CreditsRemaining)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
