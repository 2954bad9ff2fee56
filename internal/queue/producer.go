package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/facetrack/internal/models"
	"github.com/your-org/facetrack/internal/observability"
)

const (
	AttendanceStreamName  = "ATTENDANCE"
	AttendanceSubjectBase = "attendance"
)

// Producer publishes attendance records to the backend over NATS JetStream.
// Delivery is fire-and-forget: the engine loop never waits on it and a
// failed publish is only logged.
type Producer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewProducer(natsURL string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js}, nil
}

// EnsureStreams creates the ATTENDANCE stream if it doesn't exist. Retries
// up to 30 times (1s apart) to handle NATS startup delay.
func (p *Producer) EnsureStreams(ctx context.Context) error {
	cfg := jetstream.StreamConfig{
		Name:        AttendanceStreamName,
		Subjects:    []string{AttendanceSubjectBase + ".>"},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Description: "Classified entry/exit movements for the attendance backend",
	}

	const maxAttempts = 30
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := p.js.CreateOrUpdateStream(opCtx, cfg)
		cancel()
		if err == nil {
			slog.Info("ensured NATS stream", "name", cfg.Name)
			return nil
		}
		if attempt == maxAttempts {
			return fmt.Errorf("create stream %s: %w (after %d attempts)", cfg.Name, err, maxAttempts)
		}
		slog.Warn("ensure NATS stream (retrying...)", "name", cfg.Name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(1 * time.Second):
		}
	}
	return nil
}

// NotifyAttendance dispatches the record in the background. It must never
// block the caller and must not touch tracker or history state.
func (p *Producer) NotifyAttendance(rec models.AttendanceRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := p.publishAttendance(ctx, rec); err != nil {
			slog.Warn("attendance notification failed", "employee_id", rec.EmployeeID, "error", err)
			observability.AttendanceNotifications.WithLabelValues("error").Inc()
			return
		}
		observability.AttendanceNotifications.WithLabelValues("ok").Inc()
	}()
}

func (p *Producer) publishAttendance(ctx context.Context, rec models.AttendanceRecord) error {
	payload, err := json.Marshal(struct {
		EmployeeID string `json:"employee_id"`
		Name       string `json:"name"`
		Timestamp  string `json:"timestamp"`
		Movement   string `json:"movement"`
	}{
		EmployeeID: rec.EmployeeID,
		Name:       rec.Name,
		Timestamp:  rec.Timestamp.Format(time.RFC3339),
		Movement:   string(rec.Movement),
	})
	if err != nil {
		return fmt.Errorf("marshal attendance record: %w", err)
	}

	subject := fmt.Sprintf("%s.%s", AttendanceSubjectBase, rec.EmployeeID)
	if _, err := p.js.Publish(ctx, subject, payload); err != nil {
		return fmt.Errorf("publish attendance: %w", err)
	}
	return nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
