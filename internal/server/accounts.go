package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/gapline/internal/tenantstore"
	storedomain "github.com/smallbiznis/gapline/internal/tenantstore/domain"
	"github.com/smallbiznis/gapline/pkg/db/pagination"
	"gorm.io/datatypes"
)

type createAccountRequest struct {
	Name               string         `json:"name"`
	ExternalID         string         `json:"external_id"`
	Segment            string         `json:"segment"`
	Region             string         `json:"region"`
	TerritoryManagerID *string        `json:"territory_manager_id"`
	CategoryID         *string        `json:"category_id"`
	Metadata           map[string]any `json:"metadata"`
}

type updateAccountRequest struct {
	Name               *string        `json:"name,omitempty"`
	Segment            *string        `json:"segment,omitempty"`
	Region             *string        `json:"region,omitempty"`
	Status             *string        `json:"status,omitempty"`
	TerritoryManagerID *string        `json:"territory_manager_id,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
}

type accountMetricsRequest struct {
	AccountIDs []string `json:"account_ids"`
}

func (s *Server) ListAccounts(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var query struct {
		pagination.Pagination
		Status             string `form:"status"`
		Segment            string `form:"segment"`
		TerritoryManagerID string `form:"territory_manager_id"`
		SortBy             string `form:"sort_by"`
		OrderBy            string `form:"order_by"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	// An explicit sort returns the whole list; the default view is cursor paged.
	if sortBy := strings.TrimSpace(query.SortBy); sortBy != "" {
		items, err := store.SortedAccounts(c.Request.Context(), sortBy, strings.EqualFold(query.OrderBy, "desc"))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": items})
		return
	}

	managerID, err := parseOptionalSnowflakeID(query.TerritoryManagerID)
	if err != nil {
		AbortWithError(c, newValidationError("territory_manager_id", "invalid_territory_manager_id", "invalid territory manager id"))
		return
	}

	items, info, err := store.ListAccounts(c.Request.Context(), storedomain.AccountFilter{
		Status:             query.Status,
		Segment:            query.Segment,
		TerritoryManagerID: managerID,
	}, query.Pagination)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": info})
}

func (s *Server) GetAccount(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	account, err := store.Accounts().Get(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) CreateAccount(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return
	}
	managerID, err := parseOptionalSnowflakeID(ptrValue(req.TerritoryManagerID))
	if err != nil {
		AbortWithError(c, newValidationError("territory_manager_id", "invalid_territory_manager_id", "invalid territory manager id"))
		return
	}
	categoryID, err := parseOptionalSnowflakeID(ptrValue(req.CategoryID))
	if err != nil {
		AbortWithError(c, newValidationError("category_id", "invalid_category_id", "invalid category id"))
		return
	}

	account := &storedomain.Account{
		Name:               name,
		ExternalID:         strings.TrimSpace(req.ExternalID),
		Segment:            strings.TrimSpace(req.Segment),
		Region:             strings.TrimSpace(req.Region),
		Status:             "active",
		TerritoryManagerID: managerID,
		CategoryID:         categoryID,
		Metadata:           datatypes.JSONMap(req.Metadata),
	}
	ctx := c.Request.Context()
	err = store.Transaction(ctx, func(tx *tenantstore.Store) error {
		if err := ownsManager(ctx, tx, managerID); err != nil {
			return err
		}
		if categoryID != nil {
			if _, err := tx.CustomCategories().Get(ctx, *categoryID); err != nil {
				return err
			}
		}
		return tx.Accounts().Create(ctx, account)
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": account})
}

func (s *Server) UpdateAccount(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fields := map[string]any{}
	if name := trimOptional(req.Name); name != nil {
		if *name == "" {
			AbortWithError(c, newValidationError("name", "required", "name is required"))
			return
		}
		fields["name"] = *name
	}
	if v := trimOptional(req.Segment); v != nil {
		fields["segment"] = *v
	}
	if v := trimOptional(req.Region); v != nil {
		fields["region"] = *v
	}
	if v := trimOptional(req.Status); v != nil && *v != "" {
		fields["status"] = *v
	}
	var managerID *snowflake.ID
	if req.TerritoryManagerID != nil {
		parsed, err := parseOptionalSnowflakeID(*req.TerritoryManagerID)
		if err != nil {
			AbortWithError(c, newValidationError("territory_manager_id", "invalid_territory_manager_id", "invalid territory manager id"))
			return
		}
		managerID = parsed
		fields["territory_manager_id"] = parsed
	}
	if req.Metadata != nil {
		fields["metadata"] = datatypes.JSONMap(req.Metadata)
	}
	if len(fields) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	var account *storedomain.Account
	err := store.Transaction(ctx, func(tx *tenantstore.Store) error {
		if err := ownsManager(ctx, tx, managerID); err != nil {
			return err
		}
		var err error
		account, err = tx.Accounts().Update(ctx, id, fields)
		return err
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) DeleteAccount(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := store.Accounts().Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// BatchAccountMetrics loads metrics for a page of accounts in one query.
func (s *Server) BatchAccountMetrics(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req accountMetricsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.AccountIDs) > pagination.MaxPageSize {
		AbortWithError(c, newValidationError("account_ids", "too_many", "too many account ids"))
		return
	}
	ids, err := parseSnowflakeIDs(req.AccountIDs)
	if err != nil {
		AbortWithError(c, newValidationError("account_ids", "invalid_account_ids", "invalid account id"))
		return
	}

	metrics, err := store.AccountMetricsByAccountIDs(c.Request.Context(), ids)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := make(map[string]*storedomain.AccountMetric, len(metrics))
	for id, m := range metrics {
		data[id.String()] = m
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

func ptrValue(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// ownsManager resolves a territory manager id against the store's tenant. A nil id
// clears the assignment and needs no lookup.
func ownsManager(ctx context.Context, store *tenantstore.Store, managerID *snowflake.ID) error {
	if managerID == nil {
		return nil
	}
	_, err := store.TerritoryManagers().Get(ctx, *managerID)
	return err
}
