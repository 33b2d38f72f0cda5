package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

var errInvalidID = errors.New("invalid_snowflake_id")

// pathID parses the :id route param. Malformed ids answer 404 like absent ones.
func pathID(c *gin.Context) (snowflake.ID, bool) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, ErrNotFound)
		return 0, false
	}
	return id, true
}

func parseSnowflakeID(value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, errInvalidID
	}
	return parsed, nil
}

func parseOptionalSnowflakeID(value string) (*snowflake.ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	parsed, err := parseSnowflakeID(trimmed)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseSnowflakeIDs(values []string) ([]snowflake.ID, error) {
	ids := make([]snowflake.ID, 0, len(values))
	for _, v := range values {
		id, err := parseSnowflakeID(v)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalBool(value string) (*bool, error) {
	if value = strings.TrimSpace(value); value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// parseEndOfDay accepts RFC 3339 or a bare date; a bare date means the last instant of
// that day in UTC, so a task due "today" is not yet overdue and a period ending on a
// date still covers that whole day.
func parseEndOfDay(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return &parsed, nil
	}
	day, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, errors.New("invalid_time")
	}
	end := day.Add(24*time.Hour - time.Nanosecond)
	return &end, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
