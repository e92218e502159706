package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/gatewarden/internal/events"
)

// StartFindingIntake listens for scanner-reported findings on the event bus
// and ingests them. It blocks until ctx is cancelled. Payloads are
// FindingInput JSON published to the finding intake topic.
func (s *GateServer) StartFindingIntake(ctx context.Context, sub events.Subscriber, logger *slog.Logger) error {
	ch, cancel, err := sub.Subscribe(events.TopicFindingReported)
	if err != nil {
		return fmt.Errorf("finding intake: subscribe: %w", err)
	}
	defer cancel()

	logger.Info("finding intake started", "topic", events.TopicFindingReported)

	for {
		select {
		case <-ctx.Done():
			logger.Info("finding intake stopping")
			return nil
		case raw, ok := <-ch:
			if !ok {
				logger.Info("finding intake channel closed")
				return nil
			}

			var in FindingInput
			if err := json.Unmarshal(raw, &in); err != nil {
				logger.Warn("finding intake: bad payload", "err", err)
				continue
			}

			finding, err := s.IngestFinding(ctx, in)
			if err != nil {
				logger.Warn("finding intake: ingest failed", "project_id", in.ProjectID, "err", err)
				continue
			}
			logger.Info("finding ingested from bus",
				"finding_id", finding.FindingID,
				"project_id", finding.ProjectID,
				"severity", finding.Severity,
			)
		}
	}
}
