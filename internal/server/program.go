package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type enrollAccountRequest struct {
	AccountID string  `json:"account_id"`
	TierID    *string `json:"tier_id"`
}

type createCategoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

func (s *Server) ListProgramAccounts(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	items, err := store.ProgramAccounts().List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// EnrollProgramAccount adds one of the tenant's accounts to the rev-share program.
func (s *Server) EnrollProgramAccount(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req enrollAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := parseSnowflakeID(req.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account id"))
		return
	}
	tierID, err := parseOptionalSnowflakeID(ptrValue(req.TierID))
	if err != nil {
		AbortWithError(c, newValidationError("tier_id", "invalid_tier_id", "invalid tier id"))
		return
	}

	enrollment, err := store.EnrollAccount(c.Request.Context(), accountID, tierID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": enrollment})
}

func (s *Server) ListCustomCategories(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	items, err := store.CustomCategories().List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateCustomCategory(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req createCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	category, err := store.CreateCustomCategory(c.Request.Context(), strings.TrimSpace(req.Name), req.Color)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": category})
}
