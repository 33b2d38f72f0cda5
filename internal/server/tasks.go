package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	storedomain "github.com/smallbiznis/gapline/internal/tenantstore/domain"
	"github.com/smallbiznis/gapline/pkg/db/pagination"
)

type createTaskRequest struct {
	AccountID   *string `json:"account_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	Assignee    string  `json:"assignee"`
	DueAt       string  `json:"due_at"`
}

type updateTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Status      *string `json:"status,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Assignee    *string `json:"assignee,omitempty"`
	DueAt       *string `json:"due_at,omitempty"`
}

var (
	taskStatuses   = map[string]struct{}{"open": {}, "in_progress": {}, "done": {}}
	taskPriorities = map[string]struct{}{"low": {}, "medium": {}, "high": {}}
)

func (s *Server) ListTasks(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var query struct {
		pagination.PageRequest
		Status    string `form:"status"`
		AccountID string `form:"account_id"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := parseOptionalSnowflakeID(query.AccountID)
	if err != nil {
		AbortWithError(c, newValidationError("account_id", "invalid_account_id", "invalid account id"))
		return
	}

	page, err := store.ListTasksPage(c.Request.Context(), storedomain.TaskFilter{
		Status:    query.Status,
		AccountID: accountID,
	}, query.PageRequest)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

func (s *Server) CreateTask(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		AbortWithError(c, newValidationError("title", "required", "title is required"))
		return
	}
	priority := strings.ToLower(strings.TrimSpace(req.Priority))
	if priority == "" {
		priority = "medium"
	}
	if _, ok := taskPriorities[priority]; !ok {
		AbortWithError(c, newValidationError("priority", "invalid_priority", "invalid priority"))
		return
	}
	dueAt, err := parseEndOfDay(req.DueAt)
	if err != nil {
		AbortWithError(c, newValidationError("due_at", "invalid_due_at", "invalid due date"))
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

	task := &storedomain.Task{
		AccountID:   accountID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
		Status:      "open",
		Priority:    priority,
		Assignee:    strings.TrimSpace(req.Assignee),
		DueAt:       dueAt,
	}
	if err := store.Tasks().Create(ctx, task); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": task})
}

func (s *Server) UpdateTask(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	fields := map[string]any{}
	if v := trimOptional(req.Title); v != nil {
		if *v == "" {
			AbortWithError(c, newValidationError("title", "required", "title is required"))
			return
		}
		fields["title"] = *v
	}
	if v := trimOptional(req.Description); v != nil {
		fields["description"] = *v
	}
	if v := trimOptional(req.Status); v != nil {
		status := strings.ToLower(*v)
		if _, ok := taskStatuses[status]; !ok {
			AbortWithError(c, newValidationError("status", "invalid_status", "invalid status"))
			return
		}
		fields["status"] = status
	}
	if v := trimOptional(req.Priority); v != nil {
		priority := strings.ToLower(*v)
		if _, ok := taskPriorities[priority]; !ok {
			AbortWithError(c, newValidationError("priority", "invalid_priority", "invalid priority"))
			return
		}
		fields["priority"] = priority
	}
	if v := trimOptional(req.Assignee); v != nil {
		fields["assignee"] = *v
	}
	if req.DueAt != nil {
		dueAt, err := parseEndOfDay(*req.DueAt)
		if err != nil {
			AbortWithError(c, newValidationError("due_at", "invalid_due_at", "invalid due date"))
			return
		}
		fields["due_at"] = dueAt
	}
	if len(fields) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	task, err := store.Tasks().Update(c.Request.Context(), id, fields)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": task})
}

func (s *Server) DeleteTask(c *gin.Context) {
	store, _, ok := s.tenantStore(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := store.Tasks().Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
