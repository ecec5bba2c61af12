package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/mural/adapter"
	"github.com/pithecene-io/mural/adapter/redis"
	"github.com/pithecene-io/mural/adapter/webhook"
	"github.com/pithecene-io/mural/cli/config"
	"github.com/pithecene-io/mural/comm"
	"github.com/pithecene-io/mural/compositor"
	"github.com/pithecene-io/mural/log"
	"github.com/pithecene-io/mural/lode"
	"github.com/pithecene-io/mural/metrics"
	"github.com/pithecene-io/mural/policy"
	"github.com/pithecene-io/mural/relay"
	"github.com/pithecene-io/mural/topology"
	"github.com/pithecene-io/mural/types"
)

// Exit codes for serve and view.
const (
	exitSuccess      = 0
	exitSessionError = 1
	exitConfigError  = 2
)

// logOutput receives session logs.
var logOutput io.Writer = os.Stderr

// finishTimeout bounds the telemetry flush and the session notification.
const finishTimeout = 30 * time.Second

// session holds the ambient services of one serve or view process:
// logging, metrics, telemetry archive and completion notification.
type session struct {
	cfg       *config.Config
	meta      types.ProcessMeta
	plan      topology.Plan
	logger    *log.Logger
	collector *metrics.Collector

	client      *lode.LodeClient
	telemetry   policy.Policy
	storagePath string
	notifier    adapter.Adapter

	started time.Time
	seq     atomic.Int64
}

// newSession sets up the services cfg asks for. Logs go to w.
func newSession(ctx context.Context, cfg *config.Config, plan topology.Plan, w io.Writer) (*session, error) {
	s := &session{
		cfg:  cfg,
		plan: plan,
		meta: types.ProcessMeta{
			SessionID: cfg.Session,
			Role:      plan.Role,
			Rank:      plan.Rank,
		},
		started: time.Now(),
	}
	s.logger = log.NewLoggerAtLevel(&s.meta, w, cfg.LogLevel)
	s.collector = metrics.NewCollector(string(plan.Role), plan.Codec, plan.String(), cfg.Session)

	if err := s.openStorage(ctx); err != nil {
		return nil, cli.Exit(fmt.Sprintf("failed to initialize storage: %v", err), exitConfigError)
	}
	notifier, err := buildAdapter(cfg.Adapter)
	if err != nil {
		s.closeStorage()
		return nil, cli.Exit(fmt.Sprintf("failed to initialize adapter: %v", err), exitConfigError)
	}
	s.notifier = notifier
	return s, nil
}

// openStorage builds the Lode client when a storage path is configured.
// Without one, telemetry is not archived.
func (s *session) openStorage(ctx context.Context) error {
	st := s.cfg.Storage
	if st.Path == "" {
		if st.Backend != "" {
			return errors.New("--storage-path is required with --storage-backend")
		}
		return nil
	}

	lcfg := lode.Config{
		Dataset:   st.Dataset,
		SessionID: s.meta.SessionID,
		Role:      string(s.meta.Role),
		Day:       lode.DeriveDay(s.started),
	}

	var err error
	switch st.Backend {
	case "fs", "":
		s.client, err = lode.NewLodeClient(lcfg, st.Path)
		s.storagePath = st.Path
	case "s3":
		bucket, prefix := lode.ParseS3Path(st.Path)
		s.client, err = lode.NewLodeS3Client(ctx, lcfg, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       st.Region,
			Endpoint:     st.Endpoint,
			UsePathStyle: st.S3PathStyle,
		})
		s.storagePath = "s3://" + st.Path
	default:
		return fmt.Errorf("unknown storage-backend: %s (must be fs or s3)", st.Backend)
	}
	if err != nil {
		return err
	}
	s.telemetry, err = policy.New(st.Policy, lode.NewInstrumentedClient(s.client, s.collector), policy.BufferedConfig{
		MaxBufferFrames: st.BatchSize,
		FlushInterval:   st.FlushInterval.Duration,
		Logger:          s.logger.Named("telemetry"),
	})
	if err != nil {
		_ = s.client.Close()
		s.client = nil
	}
	return err
}

func (s *session) closeStorage() {
	if s.client != nil {
		_ = s.client.Close()
	}
}

// buildAdapter creates the configured notification backend, or nil.
func buildAdapter(cfg config.AdapterConfig) (adapter.Adapter, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "redis":
		retries := redis.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return redis.New(redis.Config{
			URL:     cfg.URL,
			Channel: cfg.Channel,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	case "webhook":
		retries := webhook.DefaultRetries
		if cfg.Retries != nil {
			retries = *cfg.Retries
		}
		return webhook.New(webhook.Config{
			URL:     cfg.URL,
			Headers: cfg.Headers,
			Secret:  cfg.Secret,
			Timeout: cfg.Timeout.Duration,
			Retries: retries,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", cfg.Type)
	}
}

// recordFrame hands one frame to the telemetry policy. Storage failures
// are logged, counted and never stop the session.
func (s *session) recordFrame(ctx context.Context, rank int, stats relay.FrameStats, elapsed time.Duration) {
	if s.telemetry == nil {
		return
	}
	rec := lode.NewFrameRecordFromHeader(s.seq.Add(1), rank, stats.Header, time.Now())
	if stats.RawBytes > 0 {
		rec.RawBytes = int64(stats.RawBytes)
	}
	rec.WireBytes = int64(stats.WireBytes)
	rec.Codec = stats.Codec
	rec.Degraded = stats.Degraded
	rec.DurationMs = float64(elapsed.Microseconds()) / 1000
	if err := s.telemetry.Record(ctx, rec); err != nil {
		s.logger.Warn("frame telemetry write failed", map[string]any{"error": err.Error()})
	}
}

// snapshot writes img as a PNG sidecar named after frame.
func (s *session) snapshot(ctx context.Context, frame int, img types.RawImage) {
	if s.client == nil {
		return
	}
	name := fmt.Sprintf("frame-%06d.png", frame)
	if err := lode.PutFrameImage(ctx, s.client, name, img); err != nil {
		s.logger.Warn("frame snapshot failed", map[string]any{"file": name, "error": err.Error()})
	}
}

// finish flushes telemetry, writes the metrics record, publishes the
// completion event and releases every service. runErr is the session's
// result; finish returns the CLI error for it.
func (s *session) finish(runErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
	defer cancel()

	ended := time.Now()
	outcome := outcomeFor(runErr)

	if s.telemetry != nil {
		if err := s.telemetry.Flush(ctx); err != nil {
			s.logger.Warn("frame telemetry flush failed", map[string]any{"error": err.Error()})
		}
	}
	// Taken after the flush so the final batch is counted.
	snap := s.collector.Snapshot()

	var stored policy.Stats
	if s.telemetry != nil {
		if err := s.client.WriteMetrics(ctx, snap, ended); err != nil {
			s.logger.Warn("metrics write failed", map[string]any{"error": err.Error()})
		}
		stored = s.telemetry.Stats()
		if err := s.telemetry.Close(); err != nil {
			s.logger.Warn("storage close failed", map[string]any{"error": err.Error()})
		}
	}

	if s.notifier != nil {
		ev := adapter.NewSessionCompletedEvent(s.meta, snap, outcome, runErr, s.started, ended)
		ev.StoragePath = s.storagePath
		if err := s.notifier.Publish(ctx, ev); err != nil {
			s.logger.Warn("session notification failed", map[string]any{"error": err.Error()})
		}
		_ = s.notifier.Close()
	}

	fields := map[string]any{
		"outcome":         outcome,
		"frames_sent":     snap.FramesSent,
		"frames_received": snap.FramesReceived,
		"frames_degraded": snap.FramesDegraded,
		"composites":      snap.Composites,
		"frames_stored":   stored.FramesPersisted,
		"frames_lost":     stored.FramesDropped,
		"duration_ms":     ended.Sub(s.started).Milliseconds(),
	}
	if runErr != nil && outcome != adapter.OutcomeCanceled {
		fields["error"] = runErr.Error()
		s.logger.Error("session failed", fields)
	} else {
		s.logger.Info("session complete", fields)
	}
	_ = s.logger.Sync()

	return exitFor(runErr)
}

// outcomeFor classifies a session result for the completion event.
func outcomeFor(err error) string {
	switch {
	case err == nil:
		return adapter.OutcomeOK
	case errors.Is(err, context.Canceled):
		return adapter.OutcomeCanceled
	case errors.Is(err, compositor.ErrInconsistentTopology),
		errors.Is(err, compositor.ErrFragment),
		errors.Is(err, compositor.ErrGeometry):
		return adapter.OutcomeCollective
	case errors.Is(err, relay.ErrVersion),
		errors.Is(err, relay.ErrCodecMismatch),
		errors.Is(err, topology.ErrMissingDependency):
		return adapter.OutcomeConfig
	default:
		return adapter.OutcomeTransport
	}
}

// exitFor maps a session result to the CLI's exit status. An interrupted
// session exits cleanly.
func exitFor(err error) error {
	switch outcomeFor(err) {
	case adapter.OutcomeOK, adapter.OutcomeCanceled:
		return nil
	case adapter.OutcomeConfig:
		return cli.Exit(fmt.Sprintf("session failed: %v", err), exitConfigError)
	default:
		return cli.Exit(fmt.Sprintf("session failed: %v", err), exitSessionError)
	}
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// sleepFrame waits d or until ctx ends.
func sleepFrame(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// peerClosed reports whether err is the relay peer hanging up.
func peerClosed(err error) bool {
	return errors.Is(err, comm.ErrClosed)
}

// isStderrTTY returns true if stderr is a TTY.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
