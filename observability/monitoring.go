package observability

import (
	"sync/atomic"
	"time"
)

// RelayStats is a point-in-time snapshot of the relay counters, logged
// periodically by the telemetry worker.
type RelayStats struct {
	MessagesRelayed     uint64 `json:"messages_relayed"`
	BroadcastsDelivered uint64 `json:"broadcasts_delivered"`
	BroadcastsDropped   uint64 `json:"broadcasts_dropped"`
	SendsRejected       uint64 `json:"sends_rejected"`
	Joins               uint64 `json:"joins"`
	Disconnects         uint64 `json:"disconnects"`
}

// Monitor aggregates relay telemetry with lock-free atomic counters.
// Safe for concurrent use from the hub, the workers, and the transport.
type Monitor struct {
	messagesRelayed     atomic.Uint64
	broadcastsDelivered atomic.Uint64
	broadcastsDropped   atomic.Uint64
	sendsRejected       atomic.Uint64
	joins               atomic.Uint64
	disconnects         atomic.Uint64
	started             time.Time
}

func NewMonitor() *Monitor {
	return &Monitor{started: time.Now()}
}

func (m *Monitor) IncrMessagesRelayed()     { m.messagesRelayed.Add(1) }
func (m *Monitor) IncrBroadcastsDelivered() { m.broadcastsDelivered.Add(1) }
func (m *Monitor) IncrBroadcastsDropped()   { m.broadcastsDropped.Add(1) }
func (m *Monitor) IncrSendsRejected()       { m.sendsRejected.Add(1) }
func (m *Monitor) IncrJoins()               { m.joins.Add(1) }
func (m *Monitor) IncrDisconnects()         { m.disconnects.Add(1) }

func (m *Monitor) Uptime() time.Duration {
	return time.Since(m.started)
}

func (m *Monitor) Snapshot() RelayStats {
	return RelayStats{
		MessagesRelayed:     m.messagesRelayed.Load(),
		BroadcastsDelivered: m.broadcastsDelivered.Load(),
		BroadcastsDropped:   m.broadcastsDropped.Load(),
		SendsRejected:       m.sendsRejected.Load(),
		Joins:               m.joins.Load(),
		Disconnects:         m.disconnects.Load(),
	}
}
