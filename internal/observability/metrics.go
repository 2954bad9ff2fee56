package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facetrack",
		Name:      "frames_processed_total",
		Help:      "Total number of frames pulled from the camera source",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facetrack",
		Name:      "faces_detected_total",
		Help:      "Total number of face regions produced by the detector",
	})

	FacesRecognized = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "facetrack",
		Name:      "faces_recognized_total",
		Help:      "Total number of detections resolved to an enrolled identity",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facetrack",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	HistorySize = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facetrack",
		Name:      "history_size",
		Help:      "Number of detection events currently held in the history store",
	})

	ModelLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facetrack",
		Name:      "model_loads_total",
		Help:      "Model load attempts by outcome",
	}, []string{"outcome"}) // cached, builtin, custom, fallback, failed

	AttendanceNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "facetrack",
		Name:      "attendance_notifications_total",
		Help:      "Attendance notifications by outcome",
	}, []string{"outcome"}) // ok, error

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "facetrack",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "facetrack",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
