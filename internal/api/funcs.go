package api

import (
	"html/template"
	"math"
	"time"

	"github.com/dustin/go-humanize"

	"reportview/internal/render"
	"reportview/internal/report"
)

const dateLayout = "02/01/2006 15:04:05"

var relativeMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "%d giây %s", DivBy: time.Second},
	{D: time.Hour, Format: "%d phút %s", DivBy: time.Minute},
	{D: humanize.Day, Format: "%d giờ %s", DivBy: time.Hour},
	{D: humanize.Month, Format: "%d ngày %s", DivBy: humanize.Day},
	{D: humanize.Year, Format: "%d tháng %s", DivBy: humanize.Month},
	{D: math.MaxInt64, Format: "%d năm %s", DivBy: humanize.Year},
}

func templateFuncs(loc *time.Location) template.FuncMap {
	return template.FuncMap{
		"datetime":  func(t time.Time) string { return formatDateTime(t, loc) },
		"number":    report.FormatNumber,
		"count":     formatCount,
		"cellClass": cellClass,
		"add1":      func(i int) int { return i + 1 },
	}
}

// formatDateTime renders t in loc as dd/MM/yyyy HH:mm:ss.
func formatDateTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(dateLayout)
}

// relativeTo describes t from now, e.g. "3 ngày nữa" or "2 giờ trước".
func relativeTo(t, now time.Time) string {
	return humanize.CustomRelTime(t, now, "trước", "nữa", relativeMagnitudes)
}

// formatCount groups thousands with dots.
func formatCount(n int) string {
	return humanize.FormatInteger("#.###,", n)
}

func cellClass(c render.Cell) string {
	switch c.Kind {
	case render.CellBadge:
		if c.Compliant {
			return "badge badge-ok"
		}
		return "badge badge-warn"
	case render.CellAction:
		return "action"
	case render.CellNA:
		return "na"
	default:
		return "text"
	}
}
