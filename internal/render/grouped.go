package render

import (
	"fmt"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"reportview/internal/report"
)

type GroupRow struct {
	Index   int
	Name    string
	Credits float64
}

// Group is one department or title band with its footer total.
type Group struct {
	Name  string
	Rows  []GroupRow
	Total float64
}

type GroupedTable struct {
	Label  string // "Khoa/Phòng" or "Chức danh"
	Groups []Group
}

// NoData is true when every row lacked a group name.
func (g *GroupedTable) NoData() bool {
	return len(g.Groups) == 0
}

// collate.Collator is not safe for concurrent use.
var (
	collatorMu sync.Mutex
	collator   = collate.New(language.Vietnamese)
)

// Grouped partitions rows by the type's group field. Rows without a group
// name are skipped. Groups are ordered by Vietnamese collation; rows keep
// their dataset order inside a group.
func Grouped(ds *report.Dataset) (*GroupedTable, error) {
	field, label, ok := ds.Type.GroupField()
	if !ok {
		return nil, fmt.Errorf("render: report type %q is not grouped", ds.Type)
	}

	index := map[string]int{}
	var groups []Group
	for _, row := range ds.Rows {
		sr, ok := row.(*report.SummaryRow)
		if !ok {
			return nil, fmt.Errorf("render: grouped report holds %T", row)
		}
		name := sr.Department
		if field == "title" {
			name = sr.Title
		}
		if name == "" {
			continue
		}

		i, seen := index[name]
		if !seen {
			i = len(groups)
			index[name] = i
			groups = append(groups, Group{Name: name})
		}
		g := &groups[i]
		g.Rows = append(g.Rows, GroupRow{Index: len(g.Rows) + 1, Name: sr.Name, Credits: sr.TotalCredits})
		g.Total += sr.TotalCredits
	}

	SortGroups(groups)
	return &GroupedTable{Label: label, Groups: groups}, nil
}

// SortGroups orders groups by name using Vietnamese collation.
func SortGroups(groups []Group) {
	collatorMu.Lock()
	defer collatorMu.Unlock()
	collator.Sort(groupSorter(groups))
}

type groupSorter []Group

func (s groupSorter) Len() int { return len(s) }
func (s groupSorter) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s groupSorter) Bytes(i int) []byte { return []byte(s[i].Name) }
