package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkOrderCursor(t *testing.T) {
	at := time.Date(2025, 11, 7, 10, 0, 0, 123, time.UTC)
	encoded := EncodeWorkOrderCursor(&audit.Cursor{ProcessedAt: at, ID: "0b0e8a9c-1f7e-4d55-9a55-0d7a4e0f6a11"})

	cursor, err := DecodeWorkOrderCursor(encoded)
	require.NoError(t, err)
	assert.True(t, at.Equal(cursor.ProcessedAt))
	assert.Equal(t, "0b0e8a9c-1f7e-4d55-9a55-0d7a4e0f6a11", cursor.ID)
}

func TestDecodeWorkOrderCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{name: "not base64", cursor: "!!!"},
		{name: "no separator", cursor: base64.RawURLEncoding.EncodeToString([]byte("12345"))},
		{name: "no id", cursor: base64.RawURLEncoding.EncodeToString([]byte("12345|"))},
		{name: "bad timestamp", cursor: base64.RawURLEncoding.EncodeToString([]byte("soon|abc"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWorkOrderCursor(tt.cursor)
			assert.Error(t, err)
		})
	}

	cursor, err := DecodeWorkOrderCursor("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}
