package domain

import (
	"errors"
	"fmt"

	"github.com/smallbiznis/gapline/internal/config"
	"github.com/smallbiznis/gapline/pkg/repository"
)

var (
	ErrInvalidTenantID = fmt.Errorf("%w: invalid_tenant_id", config.ErrConfiguration)
	ErrTenantNotFound  = fmt.Errorf("%w: tenant_not_found", config.ErrConfiguration)

	// ErrNotFound covers both absent rows and rows owned by another tenant.
	ErrNotFound = repository.ErrNotFound

	ErrAlreadyEnrolled = errors.New("already_enrolled")
	ErrCategoryExists  = errors.New("category_exists")
	ErrInvalidKey      = errors.New("invalid_key")
	ErrInvalidName     = errors.New("invalid_name")
	ErrInvalidWeights  = errors.New("invalid_weights")
)
