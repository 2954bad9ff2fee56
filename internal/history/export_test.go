package history

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facetrack/internal/models"
)

func exportFixture() []models.DetectionEvent {
	at := time.Date(2026, 8, 23, 9, 15, 0, 0, time.UTC)
	return []models.DetectionEvent{
		{
			ID:          "ev-2",
			IdentityID:  "emp-42",
			DisplayName: "Jordan Reyes",
			Confidence:  91,
			CapturedAt:  at.Add(time.Minute),
			Movement:    models.MovementExit,
			SourceLabel: "Main Entrance",
		},
		{
			ID:          "ev-1",
			DisplayName: models.UnknownPersonName,
			Confidence:  64,
			CapturedAt:  at,
			Movement:    models.MovementEntry,
			SourceLabel: "Main Entrance",
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestFileNameAndMIMEType(t *testing.T) {
	day := time.Date(2026, 8, 23, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "detection-logs-2026-08-23.csv", FileName(FormatCSV, day))
	assert.Equal(t, "detection-logs-2026-08-23.json", FileName(FormatJSON, day))
	assert.Equal(t, "text/csv", FormatCSV.MIMEType())
	assert.Equal(t, "application/json", FormatJSON.MIMEType())
}

func TestExportCSV(t *testing.T) {
	data, err := Export(exportFixture(), FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 3)

	assert.Equal(t, "Timestamp,Name,Person ID,Confidence,Type,Location", lines[0])
	assert.Equal(t, `2026-08-23T09:16:00Z,"Jordan Reyes",emp-42,91,exit,"Main Entrance"`, lines[1])
	assert.Equal(t, `2026-08-23T09:15:00Z,"Unknown Person",unknown,64,entry,"Main Entrance"`, lines[2])
}

func TestExportCSVDoesNotEscapeEmbeddedQuotes(t *testing.T) {
	events := exportFixture()[:1]
	events[0].DisplayName = `Jordan "JR" Reyes`

	data, err := Export(events, FormatCSV)
	require.NoError(t, err)

	assert.Contains(t, string(data), `"Jordan "JR" Reyes"`)
	assert.NotContains(t, string(data), `""JR""`)
}

func TestExportJSON(t *testing.T) {
	data, err := Export(exportFixture(), FormatJSON)
	require.NoError(t, err)

	// Pretty-printed with two-space indentation.
	assert.True(t, strings.HasPrefix(string(data), "[\n  {"))

	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 2)

	assert.Equal(t, "Jordan Reyes", records[0]["name"])
	assert.Equal(t, "emp-42", records[0]["personId"])
	assert.Equal(t, float64(91), records[0]["confidence"])
	assert.Equal(t, "exit", records[0]["type"])
	assert.Equal(t, "Main Entrance", records[0]["location"])
	assert.Equal(t, "2026-08-23T09:16:00Z", records[0]["timestamp"])

	assert.Equal(t, "unknown", records[1]["personId"])
	assert.Equal(t, "Unknown Person", records[1]["name"])
}

func TestExportPreservesEventOrder(t *testing.T) {
	data, err := Export(exportFixture(), FormatJSON)
	require.NoError(t, err)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(data, &records))
	assert.Equal(t, "2026-08-23T09:16:00Z", records[0]["timestamp"], "newest-first order kept")
}

func TestExportEmpty(t *testing.T) {
	csvData, err := Export(nil, FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, "Timestamp,Name,Person ID,Confidence,Type,Location\n", string(csvData))

	jsonData, err := Export(nil, FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(jsonData))
}
