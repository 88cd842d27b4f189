package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"chat-core/observability"
)

// HealthWorker periodically logs self process stats (CPU, RSS, OS status)
// together with the pipeline counters.
type HealthWorker struct {
	log            *slog.Logger
	stats          *observability.Manager
	metricInterval time.Duration
}

func NewHealthWorker(log *slog.Logger, stats *observability.Manager, metricInterval time.Duration) *HealthWorker {
	return &HealthWorker{log: log, stats: stats, metricInterval: metricInterval}
}

func (w *HealthWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			memInfo, err := p.MemoryInfo()
			if err != nil {
				w.log.Error("Failed to collect memory stats", "err", err)
				continue
			}
			cpuPercent, err := p.CPUPercent()
			if err != nil {
				w.log.Error("Failed to collect cpu stats", "err", err)
				continue
			}
			status, err := p.Status()
			if err != nil {
				w.log.Error("Failed to collect process status", "err", err)
				continue
			}
			w.log.Info("Health report",
				"cpu_percent", cpuPercent,
				"rss_bytes", memInfo.RSS,
				"status", status,
				"pipeline", w.stats.Snapshot())
		}
	}
}
