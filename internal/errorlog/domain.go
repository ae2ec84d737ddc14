package errorlog

import (
	"encoding/json"
	"time"

	"github.com/sentry-admin/console/internal/shared"
)

// Status is the triage state of an error record.
type Status string

const (
	StatusUnresolved Status = "UNRESOLVED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
)

// Statuses lists every Status in display order.
var Statuses = []Status{StatusUnresolved, StatusInProgress, StatusResolved}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns the display text of s.
func (s Status) Label() string { return shared.Humanize(string(s)) }

// Category classifies where an error originated.
type Category string

const (
	CategoryAPI      Category = "API_ERROR"
	CategoryFrontend Category = "FRONTEND_ERROR"
	CategoryOther    Category = "OTHER"
)

// Categories lists every Category in display order.
var Categories = []Category{CategoryAPI, CategoryFrontend, CategoryOther}

// Label returns the display text of c.
func (c Category) Label() string {
	switch c {
	case CategoryAPI:
		return "API Error"
	case CategoryFrontend:
		return "Frontend Error"
	case CategoryOther:
		return "Other Error"
	}
	return shared.Humanize(string(c))
}

// Project names the reporting system.
type Project string

const (
	ProjectTest   Project = "TEST"
	ProjectTenant Project = "TENANT"
	ProjectDevice Project = "DEVICE"
)

// Projects lists every Project in display order.
var Projects = []Project{ProjectTest, ProjectTenant, ProjectDevice}

// Label returns the display text of p.
func (p Project) Label() string { return shared.Humanize(string(p)) + " System" }

// Environment names the deployment the error was reported from.
type Environment string

const (
	EnvProduction  Environment = "PRODUCTION"
	EnvDevelopment Environment = "DEVELOPMENT"
	EnvTest        Environment = "TEST"
)

// Environments lists every Environment in display order.
var Environments = []Environment{EnvProduction, EnvDevelopment, EnvTest}

// Label returns the display text of e.
func (e Environment) Label() string { return shared.Humanize(string(e)) }

// Record is one captured application error. Status is the only field the
// console changes.
type Record struct {
	ID           int64           `json:"id"`
	Type         string          `json:"type"`
	Message      string          `json:"message"`
	CreatedAt    time.Time       `json:"createdAt"`
	Category     Category        `json:"category"`
	Status       Status          `json:"status,omitempty"`
	Project      Project         `json:"project,omitempty"`
	Environment  Environment     `json:"environment,omitempty"`
	URL          string          `json:"url,omitempty"`
	Method       string          `json:"method,omitempty"`
	StatusCode   int             `json:"statusCode,omitempty"`
	Stack        string          `json:"stack,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	ResponseData json.RawMessage `json:"responseData,omitempty"`
}

// IsAPIError reports whether the record carries request details.
func (r Record) IsAPIError() bool {
	return r.Category == CategoryAPI || r.URL != ""
}

// Filter narrows an error listing. Zero fields are omitted from the query.
type Filter struct {
	Status      Status
	CreatedAt   string
	Project     Project
	Environment Environment
	Page        int
	PageSize    int
}

// Counters summarises a page of records by category.
type Counters struct {
	Total    int
	API      int
	Frontend int
	Other    int
}

// Count tallies records by category. Total is taken from the pagination
// total when known.
func Count(records []Record, total int) Counters {
	c := Counters{Total: total}
	if c.Total < len(records) {
		c.Total = len(records)
	}
	for _, r := range records {
		switch r.Category {
		case CategoryAPI:
			c.API++
		case CategoryFrontend:
			c.Frontend++
		default:
			c.Other++
		}
	}
	return c
}
