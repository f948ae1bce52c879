package report

import (
	"fmt"
	"math"
	"strconv"
)

// Certificate is one credential and its credit value.
type Certificate struct {
	Name    string  `json:"name"`
	Credits float64 `json:"credits"`
}

// Row is one decoded report row. The concrete type is fixed by the report's
// Type: ComplianceRow, SummaryRow, DetailedRow, DrilldownRow or GenericRow.
// Every variant keeps the raw object for column lookups.
type Row interface {
	Fields() map[string]any
	Value(key string) (any, bool)
	isRow()
}

type fieldSet struct {
	fields map[string]any
}

func (f fieldSet) Fields() map[string]any { return f.fields }

func (f fieldSet) Value(key string) (any, bool) {
	v, ok := f.fields[key]
	return v, ok
}

func (fieldSet) isRow() {}

// ComplianceRow is a person checked against a credit requirement.
type ComplianceRow struct {
	fieldSet
	ID           string
	Name         string
	Title        string
	TotalCredits float64
	Requirement  float64
	Status       string
}

// SummaryRow carries a person's credit total with the department and title
// used by the grouped layouts.
type SummaryRow struct {
	fieldSet
	ID           string
	Name         string
	Title        string
	Department   string
	TotalCredits float64
	DepartmentID string
	TitleID      string
}

// DetailedRow lists every certificate of a person.
type DetailedRow struct {
	fieldSet
	ID           string
	Name         string
	Certificates []Certificate
	TotalCredits float64
}

// DrilldownRow is a summary line whose certificates open in a detail view.
type DrilldownRow struct {
	fieldSet
	ID           string
	Name         string
	TotalCredits float64
	Certificates []Certificate
}

// GenericRow is a row of an unrecognized report type.
type GenericRow struct {
	fieldSet
}

// NewRow builds the row variant for t from a decoded JSON object.
func NewRow(t Type, fields map[string]any) (Row, error) {
	fs := fieldSet{fields: fields}
	switch t {
	case TypeCompliance:
		return &ComplianceRow{
			fieldSet:     fs,
			ID:           text(fields, "id"),
			Name:         text(fields, "name"),
			Title:        text(fields, "title"),
			TotalCredits: number(fields, "totalCredits"),
			Requirement:  number(fields, "requirement"),
			Status:       text(fields, "status"),
		}, nil
	case TypeSummary, TypeDepartment, TypeTitleDetail:
		return &SummaryRow{
			fieldSet:     fs,
			ID:           text(fields, "id"),
			Name:         text(fields, "name"),
			Title:        text(fields, "title"),
			Department:   text(fields, "department"),
			TotalCredits: number(fields, "totalCredits"),
			DepartmentID: text(fields, "departmentId"),
			TitleID:      text(fields, "titleId"),
		}, nil
	case TypeDetail:
		certs, err := certificates(fields)
		if err != nil {
			return nil, err
		}
		return &DetailedRow{
			fieldSet:     fs,
			ID:           text(fields, "id"),
			Name:         text(fields, "name"),
			Certificates: certs,
			TotalCredits: number(fields, "totalCredits"),
		}, nil
	case TypeSummaryWithDetails:
		certs, err := certificates(fields)
		if err != nil {
			return nil, err
		}
		return &DrilldownRow{
			fieldSet:     fs,
			ID:           text(fields, "id"),
			Name:         text(fields, "name"),
			TotalCredits: number(fields, "totalCredits"),
			Certificates: certs,
		}, nil
	default:
		return &GenericRow{fieldSet: fs}, nil
	}
}

// TotalCredits returns the credit total of any row variant.
func TotalCredits(r Row) float64 {
	switch row := r.(type) {
	case *ComplianceRow:
		return row.TotalCredits
	case *SummaryRow:
		return row.TotalCredits
	case *DetailedRow:
		return row.TotalCredits
	case *DrilldownRow:
		return row.TotalCredits
	default:
		return number(r.Fields(), "totalCredits")
	}
}

// FormatNumber prints a credit value in its shortest form (12, 12.5).
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "N/A"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func text(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return FormatNumber(v)
	default:
		return ""
	}
}

func number(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// certificates reads the nested certificate list. A missing or null list
// is empty; any other non-array value is a format error.
func certificates(m map[string]any) ([]Certificate, error) {
	raw, ok := m["certificates"]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: certificates is %T, not a list", ErrMalformed, raw)
	}
	certs := make([]Certificate, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: certificate %d is %T, not an object", ErrMalformed, i, item)
		}
		certs = append(certs, Certificate{
			Name:    text(obj, "name"),
			Credits: number(obj, "credits"),
		})
	}
	return certs, nil
}
