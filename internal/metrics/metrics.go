package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ConnectedPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "skirmish_connected_peers",
			Help: "Peers currently connected to this host",
		},
	)
	MessagesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skirmish_messages_received_total",
			Help: "Messages received, by protocol type",
		},
		[]string{"type"},
	)
	MessagesSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skirmish_messages_sent_total",
			Help: "Messages sent, by protocol type",
		},
		[]string{"type"},
	)
	StateSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skirmish_state_syncs_total",
			Help: "State propagations, by kind: delta, delta_binary or snapshot",
		},
		[]string{"kind"},
	)
	ReconnectOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skirmish_reconnect_outcomes_total",
			Help: "Reconnection attempts seen by the host, by outcome",
		},
		[]string{"outcome"},
	)
	DummyConversions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skirmish_dummy_conversions_total",
			Help: "Players converted to stand-ins after the disconnect grace ran out",
		},
	)
	DroppedPeers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "skirmish_dropped_peers_total",
			Help: "Peers dropped because their send buffer stayed full",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ConnectedPeers,
		MessagesReceived,
		MessagesSent,
		StateSyncs,
		ReconnectOutcomes,
		DummyConversions,
		DroppedPeers,
	)
}
