package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facetrack/internal/history"
	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/storage"
	"github.com/your-org/facetrack/pkg/dto"
)

type EventHandler struct {
	history *history.Store
	minio   *storage.MinIOStore
}

func NewEventHandler(hist *history.Store, minio *storage.MinIOStore) *EventHandler {
	return &EventHandler{history: hist, minio: minio}
}

// List returns history events newest-first, optionally filtered by since,
// movement, and known/unknown.
func (h *EventHandler) List(c *gin.Context) {
	var since *time.Time
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since timestamp"})
			return
		}
		since = &t
	}

	movement := c.Query("movement")
	known := c.Query("known")

	events := h.history.Query(func(ev models.DetectionEvent) bool {
		if since != nil && ev.CapturedAt.Before(*since) {
			return false
		}
		if movement != "" && string(ev.Movement) != movement {
			return false
		}
		if known == "true" && !ev.Known() {
			return false
		}
		if known == "false" && ev.Known() {
			return false
		}
		return true
	})

	resp := dto.EventListResponse{
		Events: make([]dto.EventResponse, 0, len(events)),
		Total:  len(events),
	}
	for _, ev := range events {
		resp.Events = append(resp.Events, toEventResponse(ev))
	}
	c.JSON(http.StatusOK, resp)
}

// Stats summarizes events since as_of (default: start of the current day in
// the server's local time zone).
func (h *EventHandler) Stats(c *gin.Context) {
	asOf := startOfDay(time.Now())
	if s := c.Query("as_of"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of timestamp"})
			return
		}
		asOf = t
	}

	c.JSON(http.StatusOK, h.history.Stats(asOf))
}

// Sessions returns the derived entry/exit state per known identity.
func (h *EventHandler) Sessions(c *gin.Context) {
	sessions := h.history.Sessions()

	resp := make([]dto.SessionResponse, 0, len(sessions))
	for _, st := range sessions {
		r := dto.SessionResponse{
			IdentityID: st.IdentityID,
			Inside:     st.Inside(),
		}
		if st.LastEntry != nil {
			r.LastEntry = st.LastEntry.CapturedAt.Format(time.RFC3339)
		}
		if st.LastExit != nil {
			r.LastExit = st.LastExit.CapturedAt.Format(time.RFC3339)
		}
		resp = append(resp, r)
	}
	sort.Slice(resp, func(i, j int) bool { return resp[i].IdentityID < resp[j].IdentityID })

	c.JSON(http.StatusOK, gin.H{"sessions": resp})
}

// Export streams the full history as a CSV or JSON download.
func (h *EventHandler) Export(c *gin.Context) {
	format, err := history.ParseFormat(c.DefaultQuery("format", "csv"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := history.Export(h.history.Events(), format)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	filename := history.FileName(format, time.Now())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, format.MIMEType(), data)
}

// Snapshot serves the stored face crop for an event.
func (h *EventHandler) Snapshot(c *gin.Context) {
	id := c.Param("id")
	data, err := h.minio.GetObject(c.Request.Context(), "snapshots/"+id+".jpg")
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func toEventResponse(ev models.DetectionEvent) dto.EventResponse {
	return dto.EventResponse{
		ID:          ev.ID,
		IdentityID:  ev.IdentityID,
		DisplayName: ev.DisplayName,
		Confidence:  ev.Confidence,
		CapturedAt:  ev.CapturedAt.Format(time.RFC3339),
		Movement:    string(ev.Movement),
		Location:    ev.SourceLabel,
		Box:         ev.Box,
		SnapshotURL: "/v1/events/" + ev.ID + "/snapshot",
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
