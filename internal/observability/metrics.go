package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "frames_processed_total",
		Help:      "Total number of frames pulled and analysed",
	}, []string{"session_id"})

	FacesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "faces_detected_total",
		Help:      "Extraction outcomes per frame (single, none, multiple, error)",
	}, []string{"session_id", "outcome"})

	ChallengesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "challenges_total",
		Help:      "Liveness challenges by kind and result (issued, expired)",
	}, []string{"kind", "result"})

	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "confirmations_total",
		Help:      "Attendance write attempts by result (recorded, already_marked, failed)",
	}, []string{"result"})

	DescriptorAnomalies = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "rollcall",
		Name:      "descriptor_anomalies_total",
		Help:      "Enrollment records skipped because of a descriptor length mismatch",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rollcall",
		Name:      "inference_duration_seconds",
		Help:      "Duration of ML inference stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	SessionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "rollcall",
		Name:      "session_state",
		Help:      "Current session state (0 stopped, 1 starting, 2 running, 3 paused)",
	}, []string{"session_id"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "rollcall",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "rollcall",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
