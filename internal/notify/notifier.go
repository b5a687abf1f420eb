package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ryanbastic/go-sheetstore/internal/metrics"
	"github.com/ryanbastic/go-sheetstore/internal/sheet"
)

// MethodExportCreated is the JSON-RPC method sent after an export is recorded.
const MethodExportCreated = "export.created"

// ExportCreatedParams is the notification payload. It carries no owner
// secret.
type ExportCreatedParams struct {
	ExportID   string    `json:"export_id"`
	SheetID    string    `json:"sheet_id"`
	SnapshotID string    `json:"snapshot_id"`
	OwnerID    string    `json:"external_user_id"`
	Provider   string    `json:"provider"`
	UID        *string   `json:"uid"`
	URL        *string   `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}

// Notifier fans one event out to every configured endpoint. Deliveries run
// in the background and never fail the request that produced the event.
type Notifier struct {
	endpoints []string
	client    *RPCClient
	logger    *slog.Logger
	wg        sync.WaitGroup
}

func NewNotifier(endpoints []string, client *RPCClient, logger *slog.Logger) *Notifier {
	return &Notifier{endpoints: endpoints, client: client, logger: logger}
}

// ExportCreated sends an export.created notification to every endpoint.
func (n *Notifier) ExportCreated(sheetID, ownerID string, e sheet.Export) {
	if len(n.endpoints) == 0 {
		return
	}
	params := ExportCreatedParams{
		ExportID:   e.ID.String(),
		SheetID:    sheetID,
		SnapshotID: e.SnapshotID.String(),
		OwnerID:    ownerID,
		Provider:   e.Provider,
		UID:        e.UID,
		URL:        e.URL,
		CreatedAt:  e.CreatedAt,
	}
	for _, endpoint := range n.endpoints {
		n.wg.Add(1)
		go func(endpoint string) {
			defer n.wg.Done()
			resp, err := n.client.Call(context.Background(), endpoint, MethodExportCreated, params)
			switch {
			case err != nil:
				n.logger.Error("notification failed", "endpoint", endpoint, "export_id", params.ExportID, "error", err)
			case resp.Error != nil:
				err = resp.Error
				n.logger.Error("notification rejected", "endpoint", endpoint, "export_id", params.ExportID, "error", err)
			}
			metrics.ObserveNotification(err == nil)
		}(endpoint)
	}
}

// Wait blocks until in-flight deliveries finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
