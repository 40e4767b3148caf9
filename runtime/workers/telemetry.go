package workers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-relay/observability"
)

// WatchedChannel reports the fill level of one internal channel, to detect
// backpressure before messages start being rejected.
type WatchedChannel struct {
	Name     string
	Length   func() int
	Capacity int
}

// TelemetryWorker periodically logs the relay counters, the watched channel
// watermarks, and the process self-stats (RSS, CPU).
type TelemetryWorker struct {
	log            *slog.Logger
	monitor        *observability.Monitor
	metricInterval time.Duration
	channels       []WatchedChannel
}

func NewTelemetryWorker(log *slog.Logger, monitor *observability.Monitor,
	metricInterval time.Duration, channels ...WatchedChannel) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		monitor:        monitor,
		metricInterval: metricInterval,
		channels:       channels,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *TelemetryWorker) report(p *process.Process) {
	stats := w.monitor.Snapshot()
	w.log.Info("telemetry: relay counters",
		"messages_relayed", stats.MessagesRelayed,
		"broadcasts_delivered", stats.BroadcastsDelivered,
		"broadcasts_dropped", stats.BroadcastsDropped,
		"sends_rejected", stats.SendsRejected,
		"joins", stats.Joins,
		"disconnects", stats.Disconnects,
		"uptime", w.monitor.Uptime().Round(time.Second),
	)

	for _, ch := range w.channels {
		length := ch.Length()
		w.log.Debug(fmt.Sprintf("Channel %s usage: %d / %d", ch.Name, length, ch.Capacity))
		if ch.Capacity > 0 && length >= ch.Capacity*8/10 {
			w.log.Warn("Channel nearing capacity", "name", ch.Name, "length", length, "capacity", ch.Capacity)
		}
	}

	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "err", err)
		return
	}
	w.log.Info("telemetry: process", "ram_bytes", rss, "cpu_percent", cpu)
}

// selfStats retrieves memory and CPU usage for the current process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpu, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpu, nil
}
