package render

import (
	"fmt"

	"reportview/internal/report"
)

// Person is one block of the detailed layout.
type Person struct {
	Index        int
	Name         string
	Total        float64
	Certificates []report.Certificate
}

// Line is one table row of a person block. The first line of each person
// carries the index, name and total cells spanning RowSpan lines.
type Line struct {
	First       bool
	RowSpan     int
	Person      *Person
	HasCert     bool
	Certificate report.Certificate
}

type DetailedTable struct {
	People []Person
}

// Detailed builds the per-person certificate breakdown.
func Detailed(ds *report.Dataset) (*DetailedTable, error) {
	t := &DetailedTable{People: make([]Person, 0, len(ds.Rows))}
	for i, row := range ds.Rows {
		dr, ok := row.(*report.DetailedRow)
		if !ok {
			return nil, fmt.Errorf("render: detailed report holds %T", row)
		}
		t.People = append(t.People, Person{
			Index:        i + 1,
			Name:         dr.Name,
			Total:        dr.TotalCredits,
			Certificates: dr.Certificates,
		})
	}
	return t, nil
}

// Lines flattens the people into table rows. A person without certificates
// still gets one line, with empty certificate cells.
func (t *DetailedTable) Lines() []Line {
	var lines []Line
	for i := range t.People {
		p := &t.People[i]
		span := max(1, len(p.Certificates))
		if len(p.Certificates) == 0 {
			lines = append(lines, Line{First: true, RowSpan: span, Person: p})
			continue
		}
		for j, c := range p.Certificates {
			lines = append(lines, Line{First: j == 0, RowSpan: span, Person: p, HasCert: true, Certificate: c})
		}
	}
	return lines
}
