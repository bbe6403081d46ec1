package activity

import (
	"context"
	"encoding/json"
	"io"
)

const (
	subjectRefreshStarted   = "assetdex.activity.refresh.started"
	subjectRefreshFinished  = "assetdex.activity.refresh.finished"
	subjectRefreshRequested = "assetdex.activity.refresh.requested"
)

func (a *Aggregator) publish(ctx context.Context, subject string, payload map[string]any) {
	if err := a.events.Publish(ctx, subject, payload); err != nil {
		a.logger.Printf("WARN publish %s: %v", subject, err)
	}
}

type refreshRequest struct {
	AssetTypes []string `json:"assetTypes"`
	Days       int      `json:"days"`
}

// SubscribeRefreshRequests lets other services trigger a refresh over
// the bus. Returns an error when no broker is configured.
func (a *Aggregator) SubscribeRefreshRequests(ctx context.Context) (io.Closer, error) {
	return a.events.Subscribe(ctx, subjectRefreshRequested, "activity-refresh", func(ctx context.Context, data []byte) error {
		var req refreshRequest
		if err := json.Unmarshal(data, &req); err != nil {
			return err
		}
		// Refresh reports failures in its result; the message is
		// consumed either way so a bad request is not redelivered.
		a.Refresh(ctx, req.AssetTypes, req.Days)
		return nil
	})
}
