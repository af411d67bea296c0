package base

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"io"
)

// transport wide counters, exported in the Prometheus text format by WriteMetrics
var (
	connectionsOpened = metrics.NewCounter(`rkv_transport_connections_opened_total`)
	connectionErrors  = metrics.NewCounter(`rkv_transport_connection_errors_total`)
	protocolErrors    = metrics.NewCounter(`rkv_transport_protocol_errors_total`)
	repliesRead       = metrics.NewCounter(`rkv_transport_replies_total`)
	pushFramesRead    = metrics.NewCounter(`rkv_transport_push_frames_total`)
	replyDuration     = metrics.NewHistogram(`rkv_transport_reply_duration_seconds`)
)

// countCommand increments the per command counter
func countCommand(id string) {
	metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_transport_commands_total{command=%q}`, id)).Inc()
}

// WriteMetrics writes all transport metrics in the Prometheus text format
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
