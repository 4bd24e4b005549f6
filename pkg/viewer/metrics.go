package viewer

import "github.com/prometheus/client_golang/prometheus"

type metrics struct {
	framesPainted prometheus.Counter
	framesDropped prometheus.Counter
	inputSent     prometheus.Counter
	captureFlips  prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		framesPainted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudview_frames_painted_total",
			Help: "Frames painted on the presentation surface.",
		}),
		framesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudview_frames_dropped_total",
			Help: "Frames released without a paint.",
		}),
		inputSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudview_input_commands_total",
			Help: "Input commands sent to the remote side.",
		}),
		captureFlips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cloudview_capture_transitions_total",
			Help: "Fullscreen and pointer lock state transitions.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.framesPainted, m.framesDropped, m.inputSent, m.captureFlips)
	}
	return m
}
