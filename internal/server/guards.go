package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/gapline/internal/credit/domain"
	plandomain "github.com/smallbiznis/gapline/internal/plan/domain"
	"github.com/smallbiznis/gapline/internal/tenantcontext"
	"go.uber.org/zap"
)

const (
	CodeFeatureLimitExceeded = "FEATURE_LIMIT_EXCEEDED"
	CodeSubscriptionInactive = "SUBSCRIPTION_INACTIVE"
	CodePlanUpgradeRequired  = "PLAN_UPGRADE_REQUIRED"
	CodeInsufficientCredits  = "INSUFFICIENT_CREDITS"

	contextAIActionKey    = "ai_action"
	contextCreditCheckKey = "credit_check"
)

type featureLimitRejection struct {
	Message         string                `json:"message"`
	Code            string                `json:"code"`
	Feature         plandomain.FeatureKey `json:"feature"`
	Limit           int                   `json:"limit"`
	Current         int64                 `json:"current"`
	PlanType        plandomain.Type       `json:"planType"`
	UpgradeRequired bool                  `json:"upgradeRequired"`
}

type subscriptionRejection struct {
	Message         string                        `json:"message"`
	Code            string                        `json:"code"`
	Status          plandomain.SubscriptionStatus `json:"status"`
	PlanType        plandomain.Type               `json:"planType"`
	UpgradeRequired bool                          `json:"upgradeRequired"`
}

type planRejection struct {
	Message         string          `json:"message"`
	Code            string          `json:"code"`
	CurrentPlan     plandomain.Type `json:"currentPlan"`
	RequiredPlan    plandomain.Type `json:"requiredPlan"`
	UpgradeRequired bool            `json:"upgradeRequired"`
}

type creditRejection struct {
	Message          string                  `json:"message"`
	Code             string                  `json:"code"`
	Action           creditdomain.ActionType `json:"action"`
	CreditsRequired  int                     `json:"creditsRequired"`
	CreditsRemaining int                     `json:"creditsRemaining"`
	UpgradeRequired  bool                    `json:"upgradeRequired"`
}

// RequireFeatureLimit rejects a create before anything is written when the tenant's
// plan caps feature and the cap is reached.
func (s *Server) RequireFeatureLimit(feature plandomain.FeatureKey) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantcontext.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.featureSvc.CheckFeatureLimit(c.Request.Context(), tenant.ID, string(tenant.PlanType), string(feature))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, featureLimitRejection{
				Message: fmt.Sprintf("Your %s plan allows %d %s and %d are in use. Upgrade to add more.",
					result.PlanType, result.Limit, featureLabel(result.Feature), result.Current),
				Code:            CodeFeatureLimitExceeded,
				Feature:         result.Feature,
				Limit:           result.Limit,
				Current:         result.Current,
				PlanType:        result.PlanType,
				UpgradeRequired: true,
			})
			return
		}
		c.Next()
	}
}

// RequireActiveSubscription passes free tenants; paid tenants need an active or
// trialing subscription.
func (s *Server) RequireActiveSubscription() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantcontext.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		check := plandomain.EnsureActiveSubscription(tenant.PlanType, tenant.SubscriptionStatus)
		if !check.Allowed {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, subscriptionRejection{
				Message:         fmt.Sprintf("Your %s subscription is %s. Update billing to continue.", check.PlanType, check.Status),
				Code:            CodeSubscriptionInactive,
				Status:          check.Status,
				PlanType:        check.PlanType,
				UpgradeRequired: true,
			})
			return
		}
		c.Next()
	}
}

func (s *Server) RequirePlan(required plandomain.Type) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantcontext.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		check := plandomain.EnsurePlan(tenant.PlanType, required)
		if !check.Allowed {
			c.AbortWithStatusJSON(http.StatusForbidden, planRejection{
				Message:         fmt.Sprintf("This feature requires the %s plan or higher.", check.RequiredPlan),
				Code:            CodePlanUpgradeRequired,
				CurrentPlan:     check.CurrentPlan,
				RequiredPlan:    check.RequiredPlan,
				UpgradeRequired: true,
			})
			return
		}
		c.Next()
	}
}

// RequireCredits checks the balance without spending it. The handler deducts once the
// action has succeeded.
func (s *Server) RequireCredits(action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, ok := tenantcontext.FromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		result, err := s.creditSvc.CheckCredits(c.Request.Context(), tenant.ID, string(tenant.PlanType), action)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !result.Allowed {
			requestLogger(c).Info("ai action rejected for credits",
				zap.String("action", action),
				zap.Int("credits_required", result.CreditsRequired),
				zap.Int("credits_remaining", result.CreditsRemaining),
			)
			abortInsufficientCredits(c, result.Action, result.CreditsRequired, result.CreditsRemaining)
			return
		}
		c.Set(contextAIActionKey, action)
		c.Set(contextCreditCheckKey, result)
		c.Next()
	}
}

func abortInsufficientCredits(c *gin.Context, action creditdomain.ActionType, required, remaining int) {
	c.AbortWithStatusJSON(http.StatusPaymentRequired, creditRejection{
		Message:          creditdomain.InsufficientMessage(required, remaining),
		Code:             CodeInsufficientCredits,
		Action:           action,
		CreditsRequired:  required,
		CreditsRemaining: remaining,
		UpgradeRequired:  true,
	})
}

func featureLabel(feature plandomain.FeatureKey) string {
	switch feature {
	case plandomain.FeatureICPs:
		return "ICPs"
	case plandomain.FeatureEnrolledAccounts:
		return "enrolled accounts"
	default:
		return strings.ReplaceAll(string(feature), "_", " ")
	}
}
