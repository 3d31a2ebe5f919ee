package notification

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reporter produces the daily incomplete-prescriptions report at a fixed
// local wall-clock time.
type Reporter struct {
	registry *Registry
	hour     int
	minute   int
	loc      *time.Location
	logger   *zap.Logger
	now      func() time.Time
}

// NewReporter creates a reporter firing daily at the given local time.
func NewReporter(registry *Registry, hour, minute int, loc *time.Location, logger *zap.Logger) *Reporter {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reporter{
		registry: registry,
		hour:     hour,
		minute:   minute,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

// Run blocks, emitting a report every day at the configured time, until the
// context is cancelled.
func (r *Reporter) Run(ctx context.Context) {
	for {
		next := r.nextRun(r.now())
		r.logger.Info("daily report scheduled", zap.Time("next_run", next))

		timer := time.NewTimer(next.Sub(r.now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.Report()
		}
	}
}

// Report logs the current snapshot of the incomplete registry and returns it.
// An empty snapshot is a valid, reportable outcome.
func (r *Reporter) Report() []Entry {
	snapshot := r.registry.Snapshot()

	r.logger.Info("daily incomplete prescriptions report",
		zap.Int("count", len(snapshot)),
		zap.Int64s("incomplete_group_ids", groupIDs(snapshot)),
	)
	return snapshot
}

// nextRun returns the next configured wall-clock occurrence strictly after t.
func (r *Reporter) nextRun(t time.Time) time.Time {
	local := t.In(r.loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), r.hour, r.minute, 0, 0, r.loc)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func groupIDs(entries []Entry) []int64 {
	ids := make([]int64, len(entries))
	for i, entry := range entries {
		ids[i] = entry.GroupID
	}
	return ids
}
