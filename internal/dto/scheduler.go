package dto

import "github.com/noah-isme/opsgrid-api/internal/scheduler"

// TaskInput is one unit of work in a scheduling request.
type TaskInput struct {
	ID                  string `json:"id" validate:"max=128"`
	Name                string `json:"name" validate:"max=256"`
	ResourceName        string `json:"resourceName" validate:"max=256"`
	RequiredOccurrences int    `json:"requiredOccurrences"`
}

// SiteInput is one location available to the scheduler.
type SiteInput struct {
	ID   string `json:"id" validate:"max=128"`
	Name string `json:"name" validate:"max=256"`
}

// ScheduleRequest is the POST /schedule payload.
// Only size limits are checked by tags; semantic rules belong to the scheduler.
type ScheduleRequest struct {
	Tasks     []TaskInput `json:"tasks" validate:"dive"`
	Sites     []SiteInput `json:"sites" validate:"dive"`
	TimeSlots []string    `json:"timeSlots" validate:"dive,max=64"`
	Days      []string    `json:"days" validate:"dive,max=64"`
}

// ToRequest converts the payload into the scheduler's input type.
func (r ScheduleRequest) ToRequest() scheduler.Request {
	req := scheduler.Request{
		Tasks:     make([]scheduler.Task, len(r.Tasks)),
		Sites:     make([]scheduler.Site, len(r.Sites)),
		TimeSlots: append([]string(nil), r.TimeSlots...),
		Days:      append([]string(nil), r.Days...),
	}
	for i, t := range r.Tasks {
		req.Tasks[i] = scheduler.Task{
			ID:                  t.ID,
			Name:                t.Name,
			ResourceName:        t.ResourceName,
			RequiredOccurrences: t.RequiredOccurrences,
		}
	}
	for i, s := range r.Sites {
		req.Sites[i] = scheduler.Site{ID: s.ID, Name: s.Name}
	}
	return req
}

// ScheduleResponse wraps a scheduler result with the request digest used for caching.
type ScheduleResponse struct {
	Digest      string                  `json:"digest"`
	Schedule    []scheduler.Entry       `json:"schedule"`
	Diagnostics scheduler.Diagnostics   `json:"diagnostics"`
	Fulfillment []scheduler.Fulfillment `json:"fulfillment"`
	Stats       scheduler.Stats         `json:"stats"`
	Outcome     scheduler.Outcome       `json:"outcome"`
}

// NewScheduleResponse copies a result into the response shape.
func NewScheduleResponse(digest string, result *scheduler.Result) *ScheduleResponse {
	return &ScheduleResponse{
		Digest:      digest,
		Schedule:    result.Schedule,
		Diagnostics: result.Diagnostics,
		Fulfillment: result.Fulfillment,
		Stats:       result.Stats,
		Outcome:     result.Outcome,
	}
}

// ValidateResponse reports boundary validation and the capacity bound.
type ValidateResponse struct {
	Valid          bool   `json:"valid"`
	Field          string `json:"field,omitempty"`
	Reason         string `json:"reason,omitempty"`
	TotalRequired  int    `json:"totalRequired"`
	TotalAvailable int    `json:"totalAvailable"`
	CapacityOK     bool   `json:"capacityOk"`
	Message        string `json:"message,omitempty"`
}
