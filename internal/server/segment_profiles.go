package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	storedomain "github.com/smallbiznis/gapline/internal/tenantstore/domain"
	"github.com/smallbiznis/gapline/pkg/db/option"
	"gorm.io/datatypes"
)

type createSegmentProfileRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Criteria    map[string]any `json:"criteria"`
	IsPrimary   bool           `json:"is_primary"`
}

func (s *Server) ListSegmentProfiles(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	primary, err := parseOptionalBool(c.Query("primary"))
	if err != nil {
		AbortWithError(c, newValidationError("primary", "invalid_primary", "invalid primary"))
		return
	}
	var filters []option.QueryOption
	if primary != nil {
		filters = append(filters, option.WithWhere("is_primary", *primary))
	}

	items, err := store.SegmentProfiles().List(c.Request.Context(), filters...)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreateSegmentProfile(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req createSegmentProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return
	}

	profile := &storedomain.SegmentProfile{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Criteria:    datatypes.JSONMap(req.Criteria),
		IsPrimary:   req.IsPrimary,
	}
	if err := store.SegmentProfiles().Create(c.Request.Context(), profile); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": profile})
}

func (s *Server) DeleteSegmentProfile(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := store.SegmentProfiles().Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
