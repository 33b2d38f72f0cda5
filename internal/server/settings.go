package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	storedomain "github.com/smallbiznis/gapline/internal/tenantstore/domain"
)

type putSettingRequest struct {
	Value string `json:"value"`
}

func (s *Server) GetSetting(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	setting, err := store.GetSetting(c.Request.Context(), c.Param("key"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": setting})
}

func (s *Server) PutSetting(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req putSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	setting, err := store.UpsertSetting(c.Request.Context(), c.Param("key"), req.Value)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": setting})
}

// GetScoringWeights falls back to the defaults until the tenant saves its own.
func (s *Server) GetScoringWeights(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	weights, err := store.GetScoringWeights(c.Request.Context())
	if errors.Is(err, storedomain.ErrNotFound) {
		defaults := storedomain.DefaultScoringWeights()
		c.JSON(http.StatusOK, gin.H{"data": defaults, "is_default": true})
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": weights, "is_default": false})
}

func (s *Server) PutScoringWeights(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req storedomain.WeightsInput
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	weights, err := store.UpsertScoringWeights(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": weights, "is_default": false})
}
