package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrInvalidPageToken = errors.New("invalid_page_token")

const (
	DefaultPageSize = 20
	MaxPageSize     = 250
)

// Pagination is a cursor request.
type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size,default=20" validate:"gte=1,lte=250"`
}

// AfterID is the id the next page starts below. An empty token means the first page.
func (p Pagination) AfterID() (int64, error) {
	token := strings.TrimSpace(p.PageToken)
	if token == "" {
		return 0, nil
	}
	cursor, err := DecodeCursor(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	id, err := strconv.ParseInt(cursor.ID, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: cursor id %q", ErrInvalidPageToken, cursor.ID)
	}
	return id, nil
}

type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// BuildCursorPageInfo expects data fetched with limit+1 rows.
func BuildCursorPageInfo[T any](data []*T, limit int, extractCursor func(*T) string) *PageInfo {
	if len(data) == 0 {
		return &PageInfo{HasMore: false}
	}

	hasMore := false
	if len(data) > limit {
		hasMore = true
		data = data[:limit]
	}

	info := &PageInfo{HasMore: hasMore}
	if hasMore {
		info.NextPageToken = extractCursor(data[len(data)-1])
	}
	return info
}

// PageRequest is a page-number request; Page is 1-based.
type PageRequest struct {
	Page     int `form:"page,default=1" validate:"gte=1"`
	PageSize int `form:"page_size,default=20" validate:"gte=1,lte=250"`
}

// Normalize clamps out-of-range values instead of rejecting them.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p PageRequest) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.PageSize
}

// Page is one slice of a listing plus the total under the same filter.
type Page[T any] struct {
	Items      []T   `json:"items"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

func NewPage[T any](items []T, req PageRequest, total int64) Page[T] {
	req = req.Normalize()
	if items == nil {
		items = []T{}
	}
	pages := int((total + int64(req.PageSize) - 1) / int64(req.PageSize))
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		PageSize:   req.PageSize,
		Total:      total,
		TotalPages: pages,
	}
}
