package models

import "time"

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const (
	AlertOpen     = "open"
	AlertResolved = "resolved"
)

// QualityAlert is one distinct anomaly, identified by its title.
type QualityAlert struct {
	ID         int64      `db:"id" json:"id"`
	Title      string     `db:"title" json:"title"`
	Severity   Severity   `db:"severity" json:"severity"`
	Body       string     `db:"body" json:"body"`
	Status     string     `db:"status" json:"status"`
	RaisedAt   time.Time  `db:"raised_at" json:"raised_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
}
