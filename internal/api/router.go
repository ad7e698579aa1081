package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/rollcall/internal/api/handlers"
	"github.com/your-org/rollcall/internal/api/ws"
	"github.com/your-org/rollcall/internal/auth"
)

type RouterConfig struct {
	APIKey     string
	Attendance handlers.AttendanceReader
	Subjects   handlers.SubjectLister
	Snapshots  handlers.SnapshotReader // optional
	Control    handlers.ControlPublisher
	Hub        *ws.Hub
	Location   *time.Location
	Checks     map[string]handlers.Check
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.Checks)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket status stream
	v1.GET("/ws", cfg.Hub.HandleWS)

	attH := handlers.NewAttendanceHandler(cfg.Attendance, cfg.Snapshots, cfg.Location)
	v1.GET("/attendance", attH.List)
	v1.GET("/attendance/:id", attH.Get)
	v1.GET("/attendance/:id/snapshot", attH.Snapshot)

	v1.GET("/subjects", handlers.NewSubjectHandler(cfg.Subjects).List)

	sessH := handlers.NewSessionHandler(cfg.Control)
	v1.POST("/session/start", sessH.Start)
	v1.POST("/session/stop", sessH.Stop)

	return r
}
