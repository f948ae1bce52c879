package render

import (
	"errors"

	"reportview/internal/report"
)

var (
	ErrNoDrilldown = errors.New("render: report type has no drilldown")
	ErrRowNotFound = errors.New("render: row index out of range")
)

// Detail is the content of the drilldown dialog for one person.
type Detail struct {
	Position     int                  `json:"position"`
	Name         string               `json:"name"`
	TotalCredits float64              `json:"totalCredits"`
	Certificates []report.Certificate `json:"certificates"`
}

// Drilldown returns the certificate list of the row at position.
func Drilldown(ds *report.Dataset, position int) (*Detail, error) {
	if !ds.Type.HasDrilldown() {
		return nil, ErrNoDrilldown
	}
	if position < 0 || position >= len(ds.Rows) {
		return nil, ErrRowNotFound
	}
	row, ok := ds.Rows[position].(*report.DrilldownRow)
	if !ok {
		return nil, ErrNoDrilldown
	}
	certs := row.Certificates
	if certs == nil {
		certs = []report.Certificate{}
	}
	return &Detail{
		Position:     position,
		Name:         row.Name,
		TotalCredits: row.TotalCredits,
		Certificates: certs,
	}, nil
}

// Drilldowns returns the detail of every row, in order, for pages that
// embed all dialogs up front.
func Drilldowns(ds *report.Dataset) []Detail {
	if !ds.Type.HasDrilldown() {
		return nil
	}
	out := make([]Detail, 0, len(ds.Rows))
	for i := range ds.Rows {
		if d, err := Drilldown(ds, i); err == nil {
			out = append(out, *d)
		}
	}
	return out
}
