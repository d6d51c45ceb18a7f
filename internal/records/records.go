// Package records keeps the recognition log: an append-only CSV of one row
// per recognized face, plus the queries and attendance statistics served
// over the API.
//
// Rows have no header and exactly five columns:
//
//	timestamp,label,confidence,threshold,status
package records

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Record statuses.
const (
	StatusMatch   = "MATCH"
	StatusUnknown = "UNKNOWN"
	StatusError   = "ERROR"
	StatusNoFace  = "NO_FACE"
)

// TimestampLayout is used for rows written by Log.
const TimestampLayout = "2006-01-02 15:04:05"

const columns = 5

// Record is one row as stored. Numeric columns are kept verbatim.
type Record struct {
	ID         int    `json:"id" doc:"1-based row number among valid rows"`
	Timestamp  string `json:"timestamp" example:"2025-03-01 08:15:02"`
	MatchName  string `json:"match_name" doc:"Resolved label, empty for unknown faces"`
	Similarity string `json:"similarity" example:"0.731204"`
	Threshold  string `json:"threshold" example:"0.480000"`
	Status     string `json:"status" example:"MATCH"`
}

// Entry is a row to append.
type Entry struct {
	Time       time.Time
	Label      string
	Confidence float64
	Threshold  float64
	Status     string
}

func (e Entry) row() []string {
	return []string{
		e.Time.Format(TimestampLayout),
		e.Label,
		strconv.FormatFloat(e.Confidence, 'f', 6, 64),
		strconv.FormatFloat(e.Threshold, 'f', 6, 64),
		e.Status,
	}
}

// Log appends entries to a CSV file. Safe for concurrent use.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog returns a log writing to path. Nothing is created until the first
// Append.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the CSV location.
func (l *Log) Path() string {
	return l.path
}

// Append writes one row, creating the file and its directory as needed.
func (l *Log) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create records directory: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open records: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(e.row()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write record: %w", err)
	}
	return f.Close()
}

// Load reads every valid row of the CSV at path. Rows without exactly five
// columns are skipped and do not consume an ID. A missing file yields no
// records and no error.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses records from r.
func Read(r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var out []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse records: %w", err)
		}
		if len(row) != columns {
			continue
		}
		out = append(out, Record{
			ID:         len(out) + 1,
			Timestamp:  strings.TrimSpace(row[0]),
			MatchName:  strings.TrimSpace(row[1]),
			Similarity: strings.TrimSpace(row[2]),
			Threshold:  strings.TrimSpace(row[3]),
			Status:     strings.TrimSpace(row[4]),
		})
	}
}

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006-01-02",
	"2006/01/02",
}

var errBadTimestamp = errors.New("records: unrecognised timestamp")

// ParseTimestamp accepts the layouts the log has used over time. A trailing
// fractional second is dropped if the full value does not parse.
func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, errBadTimestamp
	}
	if t, ok := parseLayouts(ts); ok {
		return t, nil
	}
	if i := strings.Index(ts, "."); i != -1 {
		if t, ok := parseLayouts(ts[:i]); ok {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", errBadTimestamp, ts)
}

func parseLayouts(ts string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
