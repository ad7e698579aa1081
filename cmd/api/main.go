package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/rollcall/internal/api"
	"github.com/your-org/rollcall/internal/api/handlers"
	"github.com/your-org/rollcall/internal/api/ws"
	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/observability"
	"github.com/your-org/rollcall/internal/queue"
	"github.com/your-org/rollcall/internal/storage"
	"github.com/your-org/rollcall/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	// .env file is optional
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting rollcall API service", "port", cfg.Server.Port)

	loc, err := cfg.Attendance.Location()
	if err != nil {
		slog.Error("resolve attendance timezone", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to Postgres
	db, err := storage.NewPostgresStore(ctx, cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	checks := map[string]handlers.Check{"postgres": db.Ping}

	routerCfg := api.RouterConfig{
		APIKey:     cfg.Server.APIKey,
		Attendance: db,
		Subjects:   db,
		Location:   loc,
		Checks:     checks,
	}

	// Connect to MinIO
	if cfg.MinIO.Enabled() {
		minioStore, err := storage.NewMinIOStore(cfg.MinIO)
		if err != nil {
			slog.Error("connect to minio", "error", err)
			os.Exit(1)
		}
		routerCfg.Snapshots = minioStore
		checks["minio"] = minioStore.Ping
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(ctx); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}
	routerCfg.Control = producer
	checks["nats"] = func(context.Context) error { return producer.Ping() }

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run(ctx)
	routerCfg.Hub = hub

	// Relay session updates to WebSocket clients
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create update consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	err = consumer.ConsumeUpdates(ctx, "api-updates", func(ctx context.Context, msg jetstream.Msg) error {
		if queue.IsAttendance(msg.Subject()) {
			var ev models.AttendanceEvent
			if err := json.Unmarshal(msg.Data(), &ev); err != nil {
				slog.Error("unmarshal attendance event", "error", err)
				return nil // Don't retry on unmarshal errors
			}
			resp := dto.NewAttendanceResponse(&ev)
			hub.Broadcast(&dto.WSMessage{Type: dto.WSTypeAttendance, SessionID: ev.SessionID, Attendance: &resp})
			return nil
		}

		var st models.Status
		if err := json.Unmarshal(msg.Data(), &st); err != nil {
			slog.Error("unmarshal session status", "error", err)
			return nil
		}
		hub.Broadcast(&dto.WSMessage{Type: dto.WSTypeStatus, SessionID: st.SessionID, Status: &st})
		return nil
	})
	if err != nil {
		slog.Warn("start update consumer", "error", err)
	}

	router := api.NewRouter(routerCfg)

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
