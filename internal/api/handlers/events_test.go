package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/facetrack/internal/history"
	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/pkg/dto"
)

func seededHistory() *history.Store {
	s := history.NewStore(100)
	base := time.Date(2026, 8, 23, 9, 0, 0, 0, time.UTC)

	s.Append(models.DetectionEvent{
		ID:          "u1",
		DisplayName: models.UnknownPersonName,
		Confidence:  64,
		CapturedAt:  base,
		Movement:    models.MovementEntry,
		SourceLabel: "Main Entrance",
	})
	s.Append(models.DetectionEvent{
		ID:          "k1",
		IdentityID:  "emp-42",
		DisplayName: "Jordan Reyes",
		Confidence:  91,
		CapturedAt:  base.Add(time.Minute),
		Movement:    models.MovementEntry,
		SourceLabel: "Main Entrance",
	})
	s.Append(models.DetectionEvent{
		ID:          "k2",
		IdentityID:  "emp-42",
		DisplayName: "Jordan Reyes",
		Confidence:  88,
		CapturedAt:  base.Add(2 * time.Minute),
		Movement:    models.MovementExit,
		SourceLabel: "Main Entrance",
	})
	return s
}

func eventsRouter(hist *history.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewEventHandler(hist, nil)
	r.GET("/events", h.List)
	r.GET("/events/stats", h.Stats)
	r.GET("/events/sessions", h.Sessions)
	r.GET("/events/export", h.Export)
	return r
}

func doGet(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestEventListNewestFirst(t *testing.T) {
	r := eventsRouter(seededHistory())

	w := doGet(t, r, "/events")
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.EventListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Total)
	assert.Equal(t, "k2", resp.Events[0].ID)
	assert.Equal(t, "u1", resp.Events[2].ID)
	assert.Equal(t, "/v1/events/k2/snapshot", resp.Events[0].SnapshotURL)
}

func TestEventListFilters(t *testing.T) {
	r := eventsRouter(seededHistory())

	w := doGet(t, r, "/events?known=true")
	var resp dto.EventListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Total)

	w = doGet(t, r, "/events?movement=exit")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "k2", resp.Events[0].ID)

	w = doGet(t, r, "/events?since=2026-08-23T09:01:30Z")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, "k2", resp.Events[0].ID)

	w = doGet(t, r, "/events?since=bogus")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventStats(t *testing.T) {
	r := eventsRouter(seededHistory())

	w := doGet(t, r, "/events/stats?as_of=2026-08-23T00:00:00Z")
	require.Equal(t, http.StatusOK, w.Code)

	var st history.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 2, st.Known)
	assert.Equal(t, 1, st.Unknown)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, 1, st.Exits)

	w = doGet(t, r, "/events/stats?as_of=nope")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEventSessions(t *testing.T) {
	r := eventsRouter(seededHistory())

	w := doGet(t, r, "/events/sessions")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Sessions []dto.SessionResponse `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Sessions, 1)
	assert.Equal(t, "emp-42", resp.Sessions[0].IdentityID)
	assert.False(t, resp.Sessions[0].Inside, "the latest movement was an exit")
}

func TestEventExportCSV(t *testing.T) {
	r := eventsRouter(seededHistory())

	w := doGet(t, r, "/events/export")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "detection-logs-")
	assert.Contains(t, w.Body.String(), "Timestamp,Name,Person ID,Confidence,Type,Location")
}

func TestEventExportJSON(t *testing.T) {
	r := eventsRouter(seededHistory())

	w := doGet(t, r, "/events/export?format=json")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Contains(t, w.Header().Get("Content-Disposition"), ".json")

	var records []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	assert.Len(t, records, 3)
}

func TestEventExportUnsupportedFormat(t *testing.T) {
	r := eventsRouter(seededHistory())
	w := doGet(t, r, "/events/export?format=xlsx")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
