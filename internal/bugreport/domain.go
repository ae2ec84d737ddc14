package bugreport

import (
	"time"

	"github.com/sentry-admin/console/internal/shared"
)

// Priority ranks a bug report.
type Priority string

const (
	PriorityLow      Priority = "LOW"
	PriorityMedium   Priority = "MEDIUM"
	PriorityHigh     Priority = "HIGH"
	PriorityCritical Priority = "CRITICAL"
)

// Priorities lists every Priority in ascending order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Label returns the display text of p.
func (p Priority) Label() string { return shared.Humanize(string(p)) }

// Status is the lifecycle state of a bug report.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusClosed     Status = "CLOSED"
)

// Statuses lists every Status in lifecycle order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusResolved, StatusClosed}

// Label returns the display text of s.
func (s Status) Label() string { return shared.Humanize(string(s)) }

// Report is a bug filed by an operator. Description holds HTML.
type Report struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Priority    Priority  `json:"priority"`
	Status      Status    `json:"status"`
	AssigneeID  *int64    `json:"assigneeId,omitempty"`
	ReporterID  int64     `json:"reporterId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput is the body of a create call.
type CreateInput struct {
	Title       string   `json:"title" validate:"required,max=200"`
	Description string   `json:"description" validate:"required"`
	Priority    Priority `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	AssigneeID  *int64   `json:"assigneeId,omitempty" validate:"omitempty,gt=0"`
}

// UpdateInput patches a report; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string   `json:"description,omitempty"`
	Priority    *Priority `json:"priority,omitempty" validate:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
	Status      *Status   `json:"status,omitempty" validate:"omitempty,oneof=OPEN IN_PROGRESS RESOLVED CLOSED"`
	AssigneeID  *int64    `json:"assigneeId,omitempty" validate:"omitempty,gt=0"`
}

// ListParams filters and pages a listing.
type ListParams struct {
	Page       int
	Limit      int
	Status     Status
	Priority   Priority
	ReporterID int64
	AssigneeID int64
}
