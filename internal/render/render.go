// Package render turns a decoded report dataset into the table model the
// report page template draws: a flat table, department or title groups, or
// a per-person certificate breakdown.
package render

import (
	"fmt"

	"reportview/internal/report"
)

const (
	EmptyMessage  = "Không có dữ liệu trong báo cáo."
	NoDataMessage = "Không có dữ liệu."
	NotApplicable = "N/A"
	Compliant     = "Đã đạt"
)

// View is the rendered form of a dataset. Exactly one of Flat, Grouped and
// Detailed is set, unless Empty is true, in which case none is.
type View struct {
	Layout   report.Layout
	Empty    bool
	Flat     *FlatTable
	Grouped  *GroupedTable
	Detailed *DetailedTable
}

// Build selects the layout for ds.Type and builds it.
func Build(ds *report.Dataset) (*View, error) {
	layout := ds.Type.Layout()
	v := &View{Layout: layout}
	if len(ds.Rows) == 0 {
		v.Empty = true
		return v, nil
	}

	switch layout {
	case report.LayoutGrouped:
		g, err := Grouped(ds)
		if err != nil {
			return nil, err
		}
		v.Grouped = g
	case report.LayoutDetailed:
		d, err := Detailed(ds)
		if err != nil {
			return nil, err
		}
		v.Detailed = d
	case report.LayoutFlat:
		v.Flat = Flat(ds)
	default:
		return nil, fmt.Errorf("render: unhandled layout %v", layout)
	}
	return v, nil
}
