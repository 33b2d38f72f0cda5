package option

import (
	"strings"

	"github.com/smallbiznis/gapline/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a query before execution.
type QueryOption interface {
	Apply(db *gorm.DB) *gorm.DB
}

type QueryOptionFunc func(db *gorm.DB) *gorm.DB

func (f QueryOptionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

func WithLimit(limit int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func WithOffset(offset int) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if offset <= 0 {
			return db
		}
		return db.Offset(offset)
	})
}

// WithPage applies LIMIT/OFFSET for a page-number request.
func WithPage(req pagination.PageRequest) QueryOption {
	req = req.Normalize()
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Limit(req.PageSize).Offset(req.Offset())
	})
}

// ApplyPagination fetches one row beyond the page size so callers can detect HasMore.
// A token that does not decode to a cursor is rejected rather than read as page one.
func ApplyPagination(page pagination.Pagination) (QueryOption, error) {
	afterID, err := page.AfterID()
	if err != nil {
		return nil, err
	}
	size := page.PageSize
	if size <= 0 {
		size = pagination.DefaultPageSize
	}
	if size > pagination.MaxPageSize {
		size = pagination.MaxPageSize
	}
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		if afterID > 0 {
			db = db.Where("id < ?", afterID)
		}
		return db.Limit(size + 1)
	}), nil
}

// WithSortBy orders by column when it appears in allowed; unknown columns fall back to
// fallback so request input never reaches ORDER BY verbatim.
func WithSortBy(column string, desc bool, allowed map[string]struct{}, fallback string) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		column = strings.ToLower(strings.TrimSpace(column))
		if _, ok := allowed[column]; !ok {
			if fallback == "" {
				return db
			}
			return db.Order(fallback)
		}
		direction := "asc"
		if desc {
			direction = "desc"
		}
		return db.Order(column + " " + direction + ", id " + direction)
	})
}

// WithWhere adds an equality predicate.
func WithWhere(column string, value any) QueryOption {
	return QueryOptionFunc(func(db *gorm.DB) *gorm.DB {
		return db.Where(column+" = ?", value)
	})
}
