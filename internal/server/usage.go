package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetFeatureUsage reports "N of M used" for every limited feature.
func (s *Server) GetFeatureUsage(c *gin.Context) {
	_, tenant, ok := s.tenantStore(c)
	if !ok {
		return
	}

	usage, err := s.featureSvc.GetFeatureUsage(c.Request.Context(), tenant.ID, string(tenant.PlanType))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": usage})
}
