package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	tenantdomain "github.com/smallbiznis/gapline/internal/tenant/domain"
)

type updateSubscriptionRequest struct {
	PlanType         string `json:"plan_type"`
	Status           string `json:"status"`
	BillingPeriodEnd string `json:"billing_period_end"`
}

// UpdateSubscription applies a plan or status change reported by the billing provider.
// The next credit call reconciles the ledger against the new plan.
func (s *Server) UpdateSubscription(c *gin.Context) {
	_, tenant, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req updateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	periodEnd, err := parseEndOfDay(req.BillingPeriodEnd)
	if err != nil {
		AbortWithError(c, newValidationError("billing_period_end", "invalid_billing_period_end", "invalid billing period end"))
		return
	}

	updated, err := s.tenantSvc.UpdateSubscription(c.Request.Context(), tenantdomain.UpdateSubscriptionRequest{
		TenantID:         tenant.ID,
		PlanType:         req.PlanType,
		Status:           req.Status,
		BillingPeriodEnd: periodEnd,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": updated})
}
