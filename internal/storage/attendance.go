package storage

import (
	"context"
	"log/slog"
	"time"

	"github.com/your-org/facetrack/internal/models"
)

// AttendanceLogger mirrors classified movements into the attendance_log
// table. Like the NATS publisher it is fire-and-forget: the engine loop is
// never blocked and a failed insert is only logged.
type AttendanceLogger struct {
	db *PostgresStore
}

func NewAttendanceLogger(db *PostgresStore) *AttendanceLogger {
	return &AttendanceLogger{db: db}
}

func (l *AttendanceLogger) NotifyAttendance(rec models.AttendanceRecord) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := l.db.InsertAttendance(ctx, rec); err != nil {
			slog.Warn("attendance log insert failed", "employee_id", rec.EmployeeID, "error", err)
		}
	}()
}
