package scheduler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput marks structurally invalid requests. Callers match it with errors.Is.
var ErrInvalidInput = errors.New("invalid scheduling input")

// InvalidInputError describes which field failed boundary validation.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &InvalidInputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the boundary contract. It never inspects feasibility.
func Validate(req Request) error {
	if len(req.Tasks) == 0 {
		return invalid("tasks", "at least one task is required")
	}
	if len(req.Sites) == 0 {
		return invalid("sites", "at least one site is required")
	}
	if len(req.TimeSlots) == 0 {
		return invalid("timeSlots", "at least one time slot is required")
	}
	if len(req.Days) == 0 {
		return invalid("days", "at least one day is required")
	}

	taskIDs := make(map[string]struct{}, len(req.Tasks))
	for i, task := range req.Tasks {
		if strings.TrimSpace(task.ID) == "" {
			return invalid(fmt.Sprintf("tasks[%d].id", i), "must not be blank")
		}
		if strings.TrimSpace(task.ResourceName) == "" {
			return invalid(fmt.Sprintf("tasks[%d].resourceName", i), "must not be blank")
		}
		if task.RequiredOccurrences < 1 {
			return invalid(fmt.Sprintf("tasks[%d].requiredOccurrences", i), "must be >= 1, got %d", task.RequiredOccurrences)
		}
		if _, dup := taskIDs[task.ID]; dup {
			return invalid(fmt.Sprintf("tasks[%d].id", i), "duplicate task id %q", task.ID)
		}
		taskIDs[task.ID] = struct{}{}
	}

	siteIDs := make(map[string]struct{}, len(req.Sites))
	for i, site := range req.Sites {
		if strings.TrimSpace(site.ID) == "" {
			return invalid(fmt.Sprintf("sites[%d].id", i), "must not be blank")
		}
		if _, dup := siteIDs[site.ID]; dup {
			return invalid(fmt.Sprintf("sites[%d].id", i), "duplicate site id %q", site.ID)
		}
		siteIDs[site.ID] = struct{}{}
	}

	if err := uniqueLabels("timeSlots", req.TimeSlots); err != nil {
		return err
	}
	return uniqueLabels("days", req.Days)
}

func uniqueLabels(field string, labels []string) error {
	seen := make(map[string]struct{}, len(labels))
	for i, label := range labels {
		if strings.TrimSpace(label) == "" {
			return invalid(fmt.Sprintf("%s[%d]", field, i), "must not be blank")
		}
		if _, dup := seen[label]; dup {
			return invalid(fmt.Sprintf("%s[%d]", field, i), "duplicate label %q", label)
		}
		seen[label] = struct{}{}
	}
	return nil
}
