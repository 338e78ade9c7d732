package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/audit"
)

func DecodeWorkOrderCursor(cursorStr string) (*audit.Cursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	processedAt, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var nanos int64
	if _, err := fmt.Sscanf(processedAt, "%d", &nanos); err != nil {
		return nil, fmt.Errorf("invalid processedAt in cursor: %w", err)
	}

	return &audit.Cursor{
		ProcessedAt: time.Unix(0, nanos),
		ID:          id,
	}, nil
}

func EncodeWorkOrderCursor(cursor *audit.Cursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.ProcessedAt.UnixNano(), cursor.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(cs))
}
