package events

import (
	"context"
	"log/slog"
)

// LogSink drains an InMemory publisher into the log.
type LogSink struct {
	Pub *InMemory
	Log *slog.Logger
}

func (s *LogSink) Run(ctx context.Context) {
	logger := s.Log
	if logger == nil {
		logger = slog.Default()
	}
	records := s.Pub.RecordSyncedEvents()
	runs := s.Pub.RunFinishedEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-records:
			logger.Debug("record synced", "run_id", evt.RunID, "record_id", evt.RecordID,
				"external_id", evt.ExternalID, "action", evt.Action, "photos", evt.Photos)
		case evt := <-runs:
			logger.Info("sync run finished", "run_id", evt.RunID, "post_type", evt.PostType,
				"imported", evt.Imported, "updated", evt.Updated, "errors", evt.ErrorCount, "elapsed", evt.Elapsed)
		}
	}
}
