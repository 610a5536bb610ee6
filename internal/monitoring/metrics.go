package monitoring

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var HandshakeAttempts = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "actelemetry_handshake_attempts_total",
	Help: "Handshake packets sent to the game.",
})

var UpdatesReceived = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "actelemetry_updates_received_total",
	Help: "Telemetry updates decoded from the game and queued for logging.",
})

var ReceiveTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "actelemetry_receive_timeouts_total",
	Help: "Reads from the game that timed out without a complete record.",
})

// UpdatesHandled is partitioned by what the lap logger decided to do with each update.
var UpdatesHandled = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "actelemetry_updates_handled_total",
		Help: "Telemetry updates handled by the lap logger.",
	},
	[]string{"decision"},
)

var LapsCompleted = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "actelemetry_laps_completed_total",
	Help: "Lap boundaries seen since the logger started.",
})

var initOnce sync.Once

func InitMonitoring() {
	initOnce.Do(func() {
		logrus.Infof("initialising Prometheus Monitoring")
		prometheus.MustRegister(HandshakeAttempts, UpdatesReceived, ReceiveTimeouts, UpdatesHandled, LapsCompleted)
	})
}
