package gesture

import (
	"context"
	"log/slog"
	"time"
)

// Run calls l.Tick every period until ctx is done.
func (l *Latch) Run(ctx context.Context, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	slog.Debug("Gesture tick started", "period", period, "threshold", l.threshold,
		"first", l.first, "second", l.second)
	for {
		select {
		case <-ctx.Done():
			slog.Info("Ending gesture tick go-routine...")
			return
		case <-ticker.C:
			l.Tick()
		}
	}
}
