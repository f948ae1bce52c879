package render

import (
	"reportview/internal/report"
)

type CellKind int

const (
	CellText CellKind = iota
	CellBadge
	CellAction
	CellNA
)

// Cell is one rendered value of a flat table.
type Cell struct {
	Kind      CellKind
	Text      string
	Compliant bool
}

type FlatRow struct {
	Index    int // 1-based, shown in the STT column
	Position int // 0-based position in the dataset, used by drilldown links
	Cells    []Cell
}

type FlatTable struct {
	Columns   []report.Column
	Rows      []FlatRow
	Drilldown bool
}

// Flat renders one row per record with columns in header order.
func Flat(ds *report.Dataset) *FlatTable {
	t := &FlatTable{
		Columns:   ds.Columns,
		Rows:      make([]FlatRow, 0, len(ds.Rows)),
		Drilldown: ds.Type.HasDrilldown(),
	}
	for i, row := range ds.Rows {
		fr := FlatRow{Index: i + 1, Position: i, Cells: make([]Cell, 0, len(ds.Columns))}
		for _, col := range ds.Columns {
			fr.Cells = append(fr.Cells, cellFor(ds.Type, row, col.Key))
		}
		t.Rows = append(t.Rows, fr)
	}
	return t
}

func cellFor(t report.Type, row report.Row, key string) Cell {
	if key == "actions" && t.HasDrilldown() {
		return Cell{Kind: CellAction, Text: "Xem"}
	}
	v, ok := row.Value(key)
	if key == "status" && ok {
		s := primitive(v)
		return Cell{Kind: CellBadge, Text: s, Compliant: s == Compliant}
	}
	if !ok {
		return Cell{Kind: CellNA, Text: NotApplicable}
	}
	switch val := v.(type) {
	case string:
		return Cell{Kind: CellText, Text: val}
	case float64:
		return Cell{Kind: CellText, Text: report.FormatNumber(val)}
	default:
		return Cell{Kind: CellNA, Text: NotApplicable}
	}
}

func primitive(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return report.FormatNumber(val)
	default:
		return NotApplicable
	}
}
