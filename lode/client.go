package lode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/justapithecus/lode/lode"

	"github.com/pithecene-io/mural/metrics"
)

// LodeClient is the Lode-backed Client. It also writes the end-of-session
// metrics record and sidecar files.
type LodeClient struct {
	dataset lode.Dataset
	config  Config

	storeFactory lode.StoreFactory
	storeOnce    sync.Once
	store        lode.Store
	storeErr     error
}

// NewLodeClient creates a client with filesystem storage under root.
func NewLodeClient(cfg Config, root string) (*LodeClient, error) {
	return NewLodeClientWithFactory(cfg, lode.NewFSFactory(root))
}

// NewLodeClientWithFactory creates a client with a custom store factory.
// Use lode.NewMemoryFactory() for testing.
func NewLodeClientWithFactory(cfg Config, factory lode.StoreFactory) (*LodeClient, error) {
	ds, err := newDataset(cfg.Dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, cfg.Dataset)
	}
	return newClient(ds, cfg, factory), nil
}

func newClient(ds lode.Dataset, cfg Config, factory lode.StoreFactory) *LodeClient {
	return &LodeClient{dataset: ds, config: cfg, storeFactory: factory}
}

func newDataset(id string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(id),
		factory,
		lode.WithHiveLayout(hiveKeys...),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// WriteFrames implements Client.
func (c *LodeClient) WriteFrames(ctx context.Context, frames []FrameRecord) error {
	if len(frames) == 0 {
		return nil
	}
	records := make([]any, 0, len(frames))
	for _, f := range frames {
		records = append(records, toFrameRecordMap(f, c.config))
	}
	if _, err := c.dataset.Write(ctx, records, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindFrame))
	}
	return nil
}

// WriteMetrics writes the end-of-session metrics record.
func (c *LodeClient) WriteMetrics(ctx context.Context, snap metrics.Snapshot, completedAt time.Time) error {
	record := toMetricsRecordMap(snap, c.config, completedAt)
	if _, err := c.dataset.Write(ctx, []any{record}, lode.Metadata{}); err != nil {
		return WrapWriteError(err, c.partitionPath(RecordKindMetrics))
	}
	return nil
}

// Close implements Client. Datasets hold no open resources.
func (c *LodeClient) Close() error {
	return nil
}

func (c *LodeClient) partitionPath(kind string) string {
	return fmt.Sprintf("%s/session=%s/role=%s/day=%s/record_kind=%s",
		c.config.Dataset, c.config.SessionID, c.config.Role, c.config.Day, kind)
}

var _ Client = (*LodeClient)(nil)
