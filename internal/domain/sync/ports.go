package sync

import "context"

// TableClient is the narrow interface the sync core consumes to talk to the
// remote table store. The implementation owns authentication, token refresh
// and retry of transient failures.
type TableClient interface {
	FindRecord(ctx context.Context, table TableRef, field, value string) (*Record, error)
	ListRecords(ctx context.Context, table TableRef) ([]Record, error)
	CreateRecord(ctx context.Context, table TableRef, fields map[string]any) (string, error)
	UpdateRecord(ctx context.Context, table TableRef, recordID string, fields map[string]any) error
	CreateLink(ctx context.Context, source TableRef, sourceID string, target TableRef, targetID, linkField string) error
}
