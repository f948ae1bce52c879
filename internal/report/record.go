// Package report loads shared report snapshots, validates link access and
// decodes the stored header and row payloads into typed rows.
package report

import "time"

// Type is the report type tag stored with a snapshot.
type Type string

const (
	TypeCompliance         Type = "compliance"
	TypeSummary            Type = "summary"
	TypeDepartment         Type = "department"
	TypeTitleDetail        Type = "title_detail"
	TypeDetail             Type = "detail"
	TypeSummaryWithDetails Type = "summary_with_details"
)

// Layout is the table rendering selected by a Type.
type Layout int

const (
	LayoutFlat Layout = iota
	LayoutGrouped
	LayoutDetailed
)

func (l Layout) String() string {
	switch l {
	case LayoutGrouped:
		return "grouped"
	case LayoutDetailed:
		return "detailed"
	default:
		return "flat"
	}
}

// Layout maps the tag to its table layout. Unrecognized tags are flat.
func (t Type) Layout() Layout {
	switch t {
	case TypeDepartment, TypeTitleDetail:
		return LayoutGrouped
	case TypeDetail:
		return LayoutDetailed
	default:
		return LayoutFlat
	}
}

// GroupField returns the row field that partitions a grouped report and the
// label printed in each group's header band.
func (t Type) GroupField() (field, label string, ok bool) {
	switch t {
	case TypeDepartment:
		return "department", "Khoa/Phòng", true
	case TypeTitleDetail:
		return "title", "Chức danh", true
	default:
		return "", "", false
	}
}

// HasDrilldown reports whether rows of this type carry a certificate list
// that can be opened from the flat table.
func (t Type) HasDrilldown() bool {
	return t == TypeSummaryWithDetails
}

// Record is a stored shared report. Headers and Data hold the JSON encoded
// column mapping and row array exactly as the report generator wrote them.
type Record struct {
	ID        string
	Title     string
	Type      Type
	Headers   string
	Data      string
	CreatedAt time.Time
	ExpiresAt time.Time
	CreatedBy string
	Token     string
}

// Expired is true once now is past the expiration timestamp.
func (r *Record) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Report is a record that passed access checks, with its decoded rows and
// the assistant credential fetched alongside it. An empty APIKey means the
// assistant is unavailable for this view.
type Report struct {
	Record  Record
	Dataset *Dataset
	APIKey  string
}
