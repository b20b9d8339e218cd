package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/config"
	"github.com/dmehra2102/prod-golang-projects/carequeue/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/carequeue/pkg/metrics"
)

type RouterDeps struct {
	Cfg        *config.Config
	JWTManager *auth.JWTManager
	Collector  *metrics.Collector
	Queue      *QueueHandler
	Intake     *IntakeHandler
	WS         *WSHandler
	Log        *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(deps.Log))
	r.Use(Instrument(deps.Collector))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": deps.Cfg.App.Version})
	})
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	r.GET("/ws", deps.WS.Serve)

	api := r.Group("/api/v1")
	api.Use(AuthMiddleware(deps.JWTManager))
	{
		q := api.Group("/queue")
		q.POST("/doctor", RequireRole(domain.RoleDoctor), deps.Queue.DoctorQueue)
		q.POST("/patient-status", deps.Queue.PatientStatus)
		q.POST("/book", deps.Queue.Book)
		q.POST("/emergency", deps.Queue.BookEmergency)
		q.POST("/complete", RequireRole(domain.RoleDoctor), deps.Queue.Complete)
		q.POST("/cancel", deps.Queue.Cancel)
		q.POST("/priority", RequireRole(domain.RoleDoctor), deps.Queue.Reprioritize)
		q.POST("/stats", RequireRole(domain.RoleDoctor), deps.Queue.Stats)

		api.POST("/intake", deps.Intake.Submit)
		api.GET("/intake/:patientId", deps.Intake.Profile)
	}

	return r
}
