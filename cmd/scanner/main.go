package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/rollcall/internal/attendance"
	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/ingest"
	"github.com/your-org/rollcall/internal/observability"
	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/internal/scanner"
	"github.com/your-org/rollcall/internal/session"
	"github.com/your-org/rollcall/internal/storage"
	"github.com/your-org/rollcall/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	replayDir := flag.String("replay", "", "read JPEG frames from a directory instead of the camera")
	replayLoop := flag.Bool("loop", false, "restart the replay directory when it runs out")
	metricsAddr := flag.String("metrics-addr", ":8082", "metrics listen address")
	flag.Parse()

	// .env file is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting rollcall scanner", "session_id", cfg.Session.ID, "source", cfg.Session.SourceURL)

	loc, err := cfg.Attendance.Location()
	if err != nil {
		slog.Error("resolve attendance timezone", "error", err)
		os.Exit(1)
	}

	// Initialize ONNX Runtime
	destroyRuntime, err := vision.InitRuntime(cfg.Vision.ONNXLib)
	if err != nil {
		slog.Error("init onnx runtime", "error", err)
		os.Exit(1)
	}
	defer destroyRuntime()

	extractor, err := vision.NewExtractor(cfg.Vision)
	if err != nil {
		slog.Error("init vision extractor", "error", err)
		os.Exit(1)
	}
	defer extractor.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var gateOpts []attendance.Option
	if cfg.MinIO.Enabled() {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		if err := minioStore.EnsureBucket(ctx); err != nil {
			slog.Warn("ensure minio bucket", "error", err)
		}
		gateOpts = append(gateOpts, attendance.WithSnapshots(minioStore))
	} else {
		slog.Info("snapshot storage disabled")
	}
	gate := attendance.NewGate(db, loc, gateOpts...)

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	var source session.FrameSource
	if *replayDir != "" {
		source = ingest.NewDirSource(*replayDir, *replayLoop)
	} else {
		source = ingest.NewFFmpegSource(cfg.Session.SourceURL, cfg.Session.FPS, cfg.Session.FrameWidth)
	}

	sess, err := session.New(session.Deps{
		Source:    source,
		Extractor: extractor,
		Templates: storage.NewTemplateCache(db, cfg.Session.TemplateRefresh),
		Recorder:  &scanner.AnnouncingRecorder{Recorder: gate, Publisher: producer},
		Notifier:  producer,
	}, session.ConfigFrom(cfg))
	if err != nil {
		slog.Error("create session", "error", err)
		os.Exit(1)
	}

	// Control commands arrive on NATS callback goroutines
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create control consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	cmds := make(chan queue.ControlCommand, 8)
	sub, err := consumer.SubscribeControl(func(cmd queue.ControlCommand) {
		select {
		case cmds <- cmd:
		default:
			slog.Warn("control command dropped", "action", cmd.Action)
		}
	})
	if err != nil {
		slog.Error("subscribe control", "error", err)
		os.Exit(1)
	}
	defer func() { _ = sub.Unsubscribe() }()

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprintf(w, `{"status":"ok","session":%q}`, sess.State())
		})
		slog.Info("scanner metrics listening", "addr", *metricsAddr)
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	supervised := make(chan struct{})
	go func() {
		scanner.Supervise(ctx, sess, cfg.Session.Autostart, cmds)
		close(supervised)
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down scanner...")
	cancel()
	select {
	case <-supervised:
	case <-time.After(5 * time.Second):
		slog.Warn("session did not stop in time")
	}
	slog.Info("scanner stopped")
}
