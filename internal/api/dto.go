package api

import (
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/document"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/index"
	"github.com/t-wilkinson/zortex.nvim-sub001/internal/models"
)

// DocumentListResponse wraps paginated document listings.
type DocumentListResponse struct {
	Documents []models.DocumentSummary `json:"documents" validate:"required"`
	Total     int                      `json:"total" example:"42" validate:"required"`
}

// TaskListResponse wraps the tasks of one document.
type TaskListResponse struct {
	Path  string            `json:"path" example:"projects.zortex" validate:"required"`
	Tasks []models.TaskView `json:"tasks" validate:"required"`
}

// VaultTaskListResponse wraps indexed tasks across the vault.
type VaultTaskListResponse struct {
	Tasks []index.TaskRow `json:"tasks" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}

// OpenBufferRequest is the request body for opening a buffer. Without
// lines the file is read from the vault.
type OpenBufferRequest struct {
	Path  string   `json:"path" example:"projects.zortex" validate:"required"`
	Lines []string `json:"lines,omitempty"`
}

// BufferListResponse wraps the open buffers.
type BufferListResponse struct {
	Buffers []models.BufferView `json:"buffers" validate:"required"`
}

// EditsResponse reports the buffer after a batch and any skipped edits.
type EditsResponse struct {
	Buffer models.BufferView `json:"buffer" validate:"required"`
	Errors string            `json:"errors,omitempty"`
}

// EditRequest is one element of the edits array.
type EditRequest = document.Edit
