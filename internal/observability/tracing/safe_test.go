package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsBlockedKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/accounts"),
		attribute.String("http.request.header.authorization", "Bearer x"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTrimsDetail(t *testing.T) {
	err := SafeError(errors.New("credit deduct failed: duplicate key value (tenant_id)=(42)"))
	assert.EqualError(t, err, "credit deduct failed")
	assert.Nil(t, SafeError(nil))
}
