package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"support-chat/observability"
)

// ReporterWorker logs a stats snapshot plus process memory on a fixed
// interval. Purely informational; failures to read process metrics are
// logged and skipped.
type ReporterWorker struct {
	stats    *observability.Stats
	log      *slog.Logger
	interval time.Duration
}

func NewReporterWorker(stats *observability.Stats, log *slog.Logger, interval time.Duration) *ReporterWorker {
	return &ReporterWorker{stats: stats, log: log, interval: interval}
}

func (w *ReporterWorker) Run(ctx context.Context) error {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping reporter worker")
			return nil
		case <-ticker.C:
			snapshot := w.stats.Snapshot()
			var rssMb uint64
			if mem, err := proc.MemoryInfo(); err == nil {
				rssMb = mem.RSS / 1024 / 1024
			} else {
				w.log.Debug("Process memory unavailable", "error", err)
			}
			w.log.Info("Runtime stats",
				"connections_opened", snapshot.ConnectionsOpened,
				"connections_closed", snapshot.ConnectionsClosed,
				"frames_dropped", snapshot.FramesDropped,
				"envelopes_published", snapshot.EnvelopesPublished,
				"deliveries_dropped", snapshot.DeliveriesDropped,
				"log_append_failures", snapshot.LogAppendFailures,
				"index_failures", snapshot.IndexFailures,
				"rss_mb", rssMb)
		}
	}
}
