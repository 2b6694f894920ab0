package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/customeros/mailsorter/api/handlers"
	"github.com/customeros/mailsorter/api/middleware"
	"github.com/customeros/mailsorter/interfaces"
	"github.com/customeros/mailsorter/internal/tracing"
)

const AppSource = "mailsorter"

type Dependencies struct {
	Pipeline interfaces.PipelineService
	Gateway  interfaces.MailGateway
	Records  interfaces.EmailRecordRepository
}

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, deps Dependencies, apikey string) {
	if deps.Pipeline == nil || deps.Gateway == nil || deps.Records == nil {
		panic("api dependencies cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))

	r.GET("/health", handlers.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/v1")
	api.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.HeaderAPIKey,
		ValidAPIKey: apikey,
	}))
	api.Use(middleware.UserIdMiddleware())
	api.Use(middleware.CustomContextMiddleware(AppSource))
	api.Use(middleware.TracingMiddleware())
	{
		api.POST("/pipeline/run", handlers.RunPipeline(deps.Pipeline))
		api.GET("/labels", handlers.ListLabels(deps.Gateway))
		api.GET("/emails/stats", handlers.EmailStats(deps.Records))
	}
}
