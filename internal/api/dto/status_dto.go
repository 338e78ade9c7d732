package dto

import "github.com/cuongbtq/workorder-watcher/internal/status"

type StatusResponse struct {
	LocalCounter  *LocalCounterDTO `json:"local_counter"`
	InFlight      int              `json:"in_flight"`
	Processed     int              `json:"processed"`
	Aborted       int              `json:"aborted"`
	Failed        int              `json:"failed"`
	StartedAt     string           `json:"started_at"`
	LastWorkOrder *status.Record   `json:"last_work_order,omitempty"`
}

type LocalCounterDTO struct {
	WorkOrder string `json:"work_order"`
	Sequence  int    `json:"sequence"`
}

type ListWorkOrdersRequest struct {
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListWorkOrdersResponse struct {
	WorkOrders []WorkOrderDTO `json:"work_orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
	Source     string         `json:"source"`
}

type WorkOrderDTO struct {
	TaskID           string `json:"task_id"`
	WorkOrder        string `json:"work_order"`
	Date             string `json:"date"`
	Path             string `json:"path"`
	Outcome          string `json:"outcome"`
	Reason           string `json:"reason,omitempty"`
	Partner          string `json:"partner,omitempty"`
	Device           string `json:"device,omitempty"`
	SerialNumber     string `json:"serial_number,omitempty"`
	FaultDescription string `json:"fault_description,omitempty"`
	WorkDescription  string `json:"work_description,omitempty"`
	ProcessedAt      string `json:"processed_at"`
}
