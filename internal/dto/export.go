package dto

import "github.com/noah-isme/opsgrid-api/internal/models"

// CreateExportRequest captures POST /plans/:id/exports payload.
type CreateExportRequest struct {
	Format models.ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportJobResponse exposes job progress metadata.
type ExportJobResponse struct {
	ID        string              `json:"id"`
	PlanID    string              `json:"planId"`
	Format    models.ExportFormat `json:"format"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}

// NewExportJobResponse maps a persisted job into its API shape.
func NewExportJobResponse(job *models.ExportJob) *ExportJobResponse {
	return &ExportJobResponse{
		ID:        job.ID,
		PlanID:    job.PlanID,
		Format:    job.Format,
		Status:    job.Status,
		Progress:  job.Progress,
		ResultURL: job.ResultURL,
		Error:     job.ErrorMessage,
	}
}
