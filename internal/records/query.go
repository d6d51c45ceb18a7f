package records

import (
	"slices"
	"strings"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 500
)

// Filter selects and pages records. Zero values mean no filter, page 1 and
// the default page size.
type Filter struct {
	Status   string
	Q        string
	Page     int
	PageSize int
}

// Normalize clamps Page and PageSize into range.
func (f Filter) Normalize() Filter {
	f.Status = strings.TrimSpace(f.Status)
	f.Q = strings.TrimSpace(f.Q)
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}
	f.PageSize = min(f.PageSize, MaxPageSize)
	return f
}

// Page is one page of a query result.
type Page struct {
	Data     []Record `json:"data"`
	Total    int      `json:"total" doc:"Matching records across all pages"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

// Query filters records, orders them newest first and returns the requested
// page. Status matches case-insensitively; Q is a case-insensitive substring
// of the name or the status. Records with unparseable timestamps sort after
// all others, by descending ID.
func Query(records []Record, f Filter) Page {
	f = f.Normalize()

	type keyed struct {
		rec Record
		at  time.Time
		ok  bool
	}
	var matched []keyed
	for _, rec := range records {
		if f.Status != "" && !strings.EqualFold(rec.Status, f.Status) {
			continue
		}
		if f.Q != "" && !containsFold(rec.MatchName, f.Q) && !containsFold(rec.Status, f.Q) {
			continue
		}
		at, err := ParseTimestamp(rec.Timestamp)
		matched = append(matched, keyed{rec: rec, at: at, ok: err == nil})
	}

	slices.SortStableFunc(matched, func(a, b keyed) int {
		switch {
		case !a.ok && !b.ok:
			return b.rec.ID - a.rec.ID
		case !a.ok:
			return 1
		case !b.ok:
			return -1
		}
		return b.at.Compare(a.at)
	})

	total := len(matched)
	start := min((f.Page-1)*f.PageSize, total)
	end := min(start+f.PageSize, total)

	data := make([]Record, 0, end-start)
	for _, k := range matched[start:end] {
		data = append(data, k.rec)
	}
	return Page{Data: data, Total: total, Page: f.Page, PageSize: f.PageSize}
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
