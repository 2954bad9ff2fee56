package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/your-org/facetrack/internal/models"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates an export format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", s)
	}
}

// MIMEType returns the content type for an export format.
func (f Format) MIMEType() string {
	if f == FormatJSON {
		return "application/json"
	}
	return "text/csv"
}

// FileName returns the download file name for an export produced on the
// given day, e.g. detection-logs-2026-08-23.csv.
func FileName(f Format, day time.Time) string {
	return fmt.Sprintf("detection-logs-%s.%s", day.Format("2006-01-02"), f)
}

type exportRecord struct {
	Timestamp  string `json:"timestamp"`
	Name       string `json:"name"`
	PersonID   string `json:"personId"`
	Confidence int    `json:"confidence"`
	Type       string `json:"type"`
	Location   string `json:"location"`
}

// Export serializes the events in their given order (the history store hands
// them over newest-first and export does not re-sort).
func Export(events []models.DetectionEvent, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		return exportJSON(events)
	case FormatCSV:
		return exportCSV(events), nil
	default:
		return nil, fmt.Errorf("unsupported export format %q", f)
	}
}

func exportJSON(events []models.DetectionEvent) ([]byte, error) {
	records := make([]exportRecord, 0, len(events))
	for _, ev := range events {
		records = append(records, exportRecord{
			Timestamp:  ev.CapturedAt.Format(time.RFC3339),
			Name:       ev.DisplayName,
			PersonID:   personID(ev),
			Confidence: ev.Confidence,
			Type:       string(ev.Movement),
			Location:   ev.SourceLabel,
		})
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}

// exportCSV wraps name and location in double quotes to protect embedded
// separators. Embedded quotes inside those fields are not escaped; this
// matches the dashboard's long-standing download format.
func exportCSV(events []models.DetectionEvent) []byte {
	var b strings.Builder
	b.WriteString("Timestamp,Name,Person ID,Confidence,Type,Location\n")
	for _, ev := range events {
		fmt.Fprintf(&b, "%s,\"%s\",%s,%d,%s,\"%s\"\n",
			ev.CapturedAt.Format(time.RFC3339),
			ev.DisplayName,
			personID(ev),
			ev.Confidence,
			ev.Movement,
			ev.SourceLabel,
		)
	}
	return []byte(b.String())
}

func personID(ev models.DetectionEvent) string {
	if ev.IdentityID == "" {
		return "unknown"
	}
	return ev.IdentityID
}
