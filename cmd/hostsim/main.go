// Command hostsim drives the SDK the way a host application embedding it
// would: load configuration, wire observability, point an orchestrator
// at a control plane, and exercise the host-facing calls from spec.md §6
// (run_task, add_user_event, is_ready, internet_switched_on)
// against whatever deployment the control plane hands back.
//
// Grounded on the teacher's cmd/job-queue-system/main.go for the overall
// shape of a long-lived process main: load config, build a logger,
// start the metrics/health server, wire the domain objects, then block
// on an OS signal for graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgecore/core-runtime/internal/asset"
	"github.com/edgecore/core-runtime/internal/commandcenter"
	"github.com/edgecore/core-runtime/internal/config"
	"github.com/edgecore/core-runtime/internal/controlplane"
	"github.com/edgecore/core-runtime/internal/ledger"
	"github.com/edgecore/core-runtime/internal/loader"
	"github.com/edgecore/core-runtime/internal/obs"
	"github.com/edgecore/core-runtime/internal/orchestrator"
	"github.com/edgecore/core-runtime/internal/retention"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// echoRunner is a placeholder ScriptRunner: the interpreter that would
// actually execute a script's functions is out of scope for this SDK
// (spec.md §1). It lets hostsim exercise CommandCenter.RunTask's status
// plumbing without depending on any particular interpreter.
type echoRunner struct{}

func (echoRunner) RunTask(function string, inputs map[string]any) (map[string]any, error) {
	return map[string]any{"function": function, "echoed": inputs}, nil
}

// loggingEventSink forwards host-supplied user events into the
// operational logger, the role spec.md §6's add_user_event plays for a
// device's own telemetry pipeline.
type loggingEventSink struct{ log *zap.Logger }

func (s loggingEventSink) AddUserEvent(payload map[string]any, eventType string) {
	s.log.Info("user_event", zap.String("type", eventType), zap.Any("payload", payload))
}

func main() {
	configPath := flag.String("config", "hostsim.yaml", "path to device configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hostsim: load config:", err)
		os.Exit(1)
	}

	log, err := obs.NewLogger(cfg.Observability.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hostsim: build logger:", err)
		os.Exit(1)
	}
	defer log.Sync()

	opLog, err := obs.NewOperationalLogger(cfg.Observability.LogLevel, "session.json", 50, 5, 30)
	if err != nil {
		log.Fatal("build operational logger", zap.Error(err))
	}
	defer opLog.Sync()

	tp, err := obs.MaybeInitTracing(cfg)
	if err != nil {
		log.Warn("tracing disabled", zap.Error(err))
	}
	if tp != nil {
		defer obs.TracerShutdown(context.Background(), tp)
	}

	// StartHTTPServer already exposes /metrics alongside /healthz and
	// /readyz, so this is the only listener hostsim needs on
	// cfg.Observability.MetricsPort.
	var readyFn func(context.Context) error
	healthSrv := obs.StartHTTPServer(cfg, func(ctx context.Context) error { return readyFn(ctx) })
	defer healthSrv.Close()

	assetLedger, cleanup := buildLedger(cfg, log)
	if cleanup != nil {
		defer cleanup()
	}

	downloader := buildDownloader(cfg, log)

	cp, err := controlplane.New(cfg.ControlPlane.BaseURL, []byte(controlplane.DefaultManifestSchema),
		controlplane.WithLogger(log),
		controlplane.WithRateLimit(rate.Limit(cfg.ControlPlane.RateLimitPerSec), 1),
		controlplane.WithHTTPClient(&http.Client{Timeout: cfg.ControlPlane.Timeout}),
	)
	if err != nil {
		log.Fatal("build control plane client", zap.Error(err))
	}

	ld := &loader.Loader{Downloader: downloader, Ledger: assetLedger, MaxRetries: cfg.Download.MaxRetries, Log: log}
	orch := orchestrator.New(cp, ld, log, cfg.Scheduler.TickInterval)
	readyFn = func(ctx context.Context) error {
		if ok, status := orch.IsReady(); !ok {
			return fmt.Errorf("not ready: %s", status.Message)
		}
		return nil
	}

	if cfg.Retention.Enabled {
		rules := make([]retention.Rule, len(cfg.Retention.Patterns))
		for i, p := range cfg.Retention.Patterns {
			rules[i] = retention.Rule{Root: cfg.Download.CacheDir, Glob: p, MaxAge: time.Duration(cfg.Retention.MaxAgeDays) * 24 * time.Hour}
		}
		sweeper := retention.New(rules, log)
		c := cron.New()
		if _, err := sweeper.Run(context.Background(), c, cfg.Retention.CronSchedule); err != nil {
			log.Warn("retention sweep not scheduled", zap.Error(err))
		} else {
			defer c.Stop()
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go orch.Run(ctx)
	if cfg.Device.Online {
		orch.InternetSwitchedOn()
	}

	// Wait for the first deployment to come up ready, binding a script
	// runner and event sink so host calls have somewhere to go, then
	// exercise them once as a smoke check before settling into the
	// normal signal-driven shutdown wait.
	go func() {
		for {
			if active := orch.Active(); active != nil && active.IsReady() {
				active.SetScriptRunner(echoRunner{})
				active.SetUserEventSink(loggingEventSink{log: opLog})
				if out, status := orch.RunTask("on_start", map[string]any{"source": "hostsim"}); status.Ok() {
					log.Info("run_task smoke check passed", zap.Any("outputs", out))
				}
				orch.AddUserEvent(map[string]any{"event": "hostsim_ready"}, "lifecycle")
				return
			}
			time.Sleep(cfg.Scheduler.TickInterval)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("hostsim: shutting down")
}

func buildLedger(cfg *config.Config, log *zap.Logger) (asset.Ledger, func()) {
	if cfg.Ledger.Backend == "redis" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Ledger.RedisAddr})
		return ledger.NewRedisLedger(client, cfg.Ledger.Namespace, cfg.Ledger.TTL), func() { client.Close() }
	}
	log.Info("asset ledger: using in-process memory backend")
	return ledger.NewMemoryLedger(), nil
}

func buildDownloader(cfg *config.Config, log *zap.Logger) asset.Downloader {
	script, err := asset.NewLocalDiskDownloader(cfg.Download.CacheDir, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		log.Fatal("build local-disk downloader", zap.Error(err))
	}
	blob, err := asset.NewS3Downloader(cfg.Download.CacheDir, cfg.Download.S3Bucket, cfg.Download.S3Region, cfg.Download.S3Endpoint)
	if err != nil {
		log.Fatal("build S3 downloader", zap.Error(err))
	}
	return &asset.DispatchDownloader{Script: script, Blob: blob}
}
