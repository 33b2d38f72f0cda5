package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	creditdomain "github.com/smallbiznis/gapline/internal/credit/domain"
	storedomain "github.com/smallbiznis/gapline/internal/tenantstore/domain"
	"github.com/smallbiznis/gapline/pkg/db/option"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type createPlaybookRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Tags        []string       `json:"tags"`
	Steps       map[string]any `json:"steps"`
	AccountID   *string        `json:"account_id"`
}

var playbookSortColumns = map[string]struct{}{
	"name":       {},
	"created_at": {},
}

func (s *Server) ListPlaybooks(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var query struct {
		SortBy  string `form:"sort_by"`
		OrderBy string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	items, err := store.Playbooks().List(c.Request.Context(),
		option.WithSortBy(query.SortBy, !strings.EqualFold(query.OrderBy, "asc"), playbookSortColumns, "created_at desc, id desc"),
	)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) CreatePlaybook(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	playbook, _, ok := bindPlaybook(c)
	if !ok {
		return
	}
	if err := store.Playbooks().Create(c.Request.Context(), playbook); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": playbook})
}

// GeneratePlaybook stores a playbook produced by the AI collaborator and charges for it.
// Guards have already checked the feature cap and the balance; the charge happens only
// after the row is written.
func (s *Server) GeneratePlaybook(c *gin.Context) {
	store, tenant, ok := s.tenantStore(c)
	if !ok {
		return
	}

	playbook, accountID, ok := bindPlaybook(c)
	if !ok {
		return
	}
	playbook.AIGenerated = true

	ctx := c.Request.Context()
	if accountID != nil {
		if _, err := store.Accounts().Get(ctx, *accountID); err != nil {
			AbortWithError(c, err)
			return
		}
	}
	if err := store.Playbooks().Create(ctx, playbook); err != nil {
		AbortWithError(c, err)
		return
	}

	charge, err := s.creditSvc.DeductCredits(ctx, tenant.ID, string(tenant.PlanType), string(creditdomain.ActionGeneratePlaybook), &creditdomain.Metadata{
		AccountID:   accountID,
		Description: "Generated playbook " + playbook.Name,
		Attributes:  map[string]any{"playbook_id": playbook.ID.String()},
	})
	if err != nil {
		requestLogger(c).Error("playbook created but credit deduction failed",
			zap.String("playbook_id", playbook.ID.String()),
			zap.Error(err),
		)
		c.JSON(http.StatusCreated, gin.H{"data": playbook})
		return
	}
	if !charge.Success {
		// Lost the race to a concurrent action after the guard passed.
		requestLogger(c).Warn("playbook created without charge",
			zap.String("playbook_id", playbook.ID.String()),
			zap.String("reason", charge.Error),
		)
	}

	c.JSON(http.StatusCreated, gin.H{"data": playbook, "credits": charge})
}

func (s *Server) DeletePlaybook(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := store.Playbooks().Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func bindPlaybook(c *gin.Context) (*storedomain.Playbook, *snowflake.ID, bool) {
	var req createPlaybookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return nil, nil, false
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return nil, nil, false
	}
	accountID, err := parseOptionalSnowflakeID(ptrValue(req.AccountID))
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account id"))
		return nil, nil, false
	}

	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return &storedomain.Playbook{
		Name:        name,
		Description: strings.TrimSpace(req.Description),
		Tags:        tags,
		Steps:       datatypes.JSONMap(req.Steps),
	}, accountID, true
}
