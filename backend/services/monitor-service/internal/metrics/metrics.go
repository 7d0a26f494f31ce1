package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FramesReceived counts every frame handed over by the transport.
	FramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_frames_received_total",
			Help: "Total number of telemetry frames received from the broker",
		},
	)

	// FramesDiscarded counts frames dropped before persistence, by reason.
	FramesDiscarded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_frames_discarded_total",
			Help: "Total number of frames discarded without side effects",
		},
		[]string{"reason"},
	)

	// ReadingsPersisted counts committed reading rows.
	ReadingsPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_readings_persisted_total",
			Help: "Total number of reading rows written",
		},
	)

	// AlarmsRaised counts created alarm events.
	AlarmsRaised = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitor_alarms_raised_total",
			Help: "Total number of alarm events raised",
		},
		[]string{"parameter", "severity"},
	)

	// ObserverConnections tracks live WebSocket observers.
	ObserverConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "monitor_observer_connections",
			Help: "Number of currently connected WebSocket observers",
		},
	)

	// BroadcastDrops counts observer connections dropped on send failure.
	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_broadcast_drops_total",
			Help: "Total number of observer connections dropped during fan-out",
		},
	)

	// NotificationFailures counts failed out-of-band notifications.
	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_notification_failures_total",
			Help: "Total number of email notifications that failed to send",
		},
	)

	// OfflineTransitions counts stations demoted by the offline sweep.
	OfflineTransitions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monitor_offline_transitions_total",
			Help: "Total number of stations marked offline by the sweep",
		},
	)

	// QueueDepth tracks the frame dispatcher backlog.
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "monitor_frame_queue_depth",
			Help: "Current number of frames waiting in the processing queue",
		},
	)
)
