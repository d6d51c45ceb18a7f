package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// One series per state; the current state is 1, the rest 0.
	sessionStateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "camrelay",
		Subsystem: "capture",
		Name:      "session_state",
		Help:      "Current capture session state (1 for the active state)",
	}, []string{"state"})

	reconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camrelay",
		Subsystem: "capture",
		Name:      "reconnects_total",
		Help:      "Reconnects forced by the capture loop, by reason",
	}, []string{"reason"})

	readFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camrelay",
		Subsystem: "capture",
		Name:      "read_failures_total",
		Help:      "Failed or empty frame reads",
	})

	frozenFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camrelay",
		Subsystem: "capture",
		Name:      "frozen_frames_total",
		Help:      "Frames identical to the previous frame",
	})

	framesPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camrelay",
		Subsystem: "capture",
		Name:      "frames_published_total",
		Help:      "Frames encoded and published to consumers",
	})

	encodeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "camrelay",
		Subsystem: "capture",
		Name:      "encode_failures_total",
		Help:      "Frames dropped because JPEG encoding failed",
	})

	probeAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "camrelay",
		Subsystem: "capture",
		Name:      "probe_attempts_total",
		Help:      "Candidate probes, by result",
	}, []string{"result"})
)

func recordState(s State) {
	for st := StateDisconnected; st <= StateDegraded; st++ {
		v := 0.0
		if st == s {
			v = 1
		}
		sessionStateGauge.WithLabelValues(st.String()).Set(v)
	}
}
