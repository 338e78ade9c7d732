package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/workorder-watcher/internal/api/dto"
	"github.com/cuongbtq/workorder-watcher/internal/audit"
	"github.com/cuongbtq/workorder-watcher/internal/status"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GetStatus handles GET /api/v1/status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	snap := h.tracker.Snapshot()

	resp := dto.StatusResponse{
		InFlight:      snap.InFlight,
		Processed:     snap.Processed,
		Aborted:       snap.Aborted,
		Failed:        snap.Failed,
		StartedAt:     snap.StartedAt.Format(time.RFC3339),
		LastWorkOrder: snap.LastWorkOrder,
	}

	if h.localCounter != nil {
		id, seq, ok, err := h.localCounter.Read()
		if err != nil {
			h.logger.Error("Failed to read local counter", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to read local counter",
			})
			return
		}
		if ok {
			resp.LocalCounter = &dto.LocalCounterDTO{WorkOrder: id, Sequence: seq}
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ListWorkOrders handles GET /api/v1/work-orders
// Pages through stored work orders, or the recent in-memory outcomes when no database is configured
func (h *StatusHandler) ListWorkOrders(c *gin.Context) {
	// 1. Parse query parameters
	var req dto.ListWorkOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	// 2. Validate parameters
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	if h.storage == nil {
		h.listRecent(c, req)
		return
	}

	// 3. Decode cursor for pagination
	cursor, err := DecodeWorkOrderCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	// 4. Query stored work orders
	rows, err := h.storage.ListRecent(c.Request.Context(), audit.Filter{
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list work orders", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list work orders",
		})
		return
	}

	// 5. Prepare response with next cursor if more results exist
	hasMore := len(rows) > req.PageSize
	if hasMore {
		rows = rows[:req.PageSize]
	}

	items := make([]dto.WorkOrderDTO, len(rows))
	for i, row := range rows {
		items[i] = dto.WorkOrderDTO{
			TaskID:           row.ID,
			WorkOrder:        row.WorkOrder,
			Date:             row.WorkDate,
			Path:             row.SourcePath,
			Outcome:          status.OutcomePublished,
			Partner:          row.Partner,
			Device:           row.Device,
			SerialNumber:     row.SerialNumber,
			FaultDescription: row.FaultDescription,
			WorkDescription:  row.WorkDescription,
			ProcessedAt:      row.ProcessedAt.Format(time.RFC3339),
		}
	}

	var nextCursor string
	if hasMore {
		last := rows[len(rows)-1]
		nextCursor = EncodeWorkOrderCursor(&audit.Cursor{
			ProcessedAt: last.ProcessedAt,
			ID:          last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListWorkOrdersResponse{
		WorkOrders: items,
		NextCursor: nextCursor,
		Source:     "database",
	})
}

func (h *StatusHandler) listRecent(c *gin.Context, req dto.ListWorkOrdersRequest) {
	if req.Cursor != "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "cursor requires the database to be enabled",
		})
		return
	}

	records := h.tracker.Recent(req.PageSize)
	items := make([]dto.WorkOrderDTO, len(records))
	for i, rec := range records {
		items[i] = dto.WorkOrderDTO{
			TaskID:      rec.TaskID,
			WorkOrder:   rec.WorkOrder,
			Date:        rec.Date,
			Path:        rec.Path,
			Outcome:     rec.Outcome,
			Reason:      rec.Reason,
			ProcessedAt: rec.At.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, dto.ListWorkOrdersResponse{
		WorkOrders: items,
		Source:     "memory",
	})
}
