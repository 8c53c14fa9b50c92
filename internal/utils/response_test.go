package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorResponse_OmitsField(t *testing.T) {
	raw, err := json.Marshal(ErrorResponse("Order not found", "order not found"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"field"`)
	assert.Contains(t, string(raw), `"success":false`)
}

func TestValidationErrorResponse(t *testing.T) {
	resp := ValidationErrorResponse("items[0].quantity", "items[0].quantity: must be at least 1")
	assert.False(t, resp.Success)
	assert.Equal(t, "Validation failed", resp.Message)
	assert.Equal(t, "items[0].quantity", resp.Field)
	assert.False(t, resp.Timestamp.IsZero())
}
