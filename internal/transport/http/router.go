package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/location-service/internal/config"
	"github.com/richardliu001/location-service/internal/service"
	"go.uber.org/zap"
)

// Services bundles what the handlers call into.
type Services struct {
	Sites        *service.SiteService
	Counterparts *service.CounterpartService
	Distances    *service.DistanceService
}

func NewRouter(svc Services, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	RegisterHandlers(r, svc)
	return r
}

func RegisterHandlers(r *gin.Engine, svc Services) {
	v1 := r.Group("/v1")
	{
		v1.POST("/sites", registerSiteHandler(svc.Sites))
		v1.GET("/sites", listSitesHandler(svc.Sites))
		v1.GET("/sites/:id", getSiteHandler(svc.Sites))
		v1.PATCH("/sites/:id", updateSiteHandler(svc.Sites))
		v1.POST("/sites/:id/deactivate", deactivateSiteHandler(svc.Sites))
		v1.GET("/sites/:id/distances", siteDistancesHandler(svc.Distances))

		v1.POST("/counterparts", registerCounterpartHandler(svc.Counterparts))
		v1.GET("/counterparts", listCounterpartsHandler(svc.Counterparts))
		v1.GET("/counterparts/:id", getCounterpartHandler(svc.Counterparts))
		v1.PATCH("/counterparts/:id", updateCounterpartHandler(svc.Counterparts))
		v1.POST("/counterparts/:id/deactivate", deactivateCounterpartHandler(svc.Counterparts))

		v1.GET("/distances/sites/:id/counterparts/:counterpartId", pairDistanceHandler(svc.Distances))
		v1.POST("/admin/distances/recalculate", recalculateHandler(svc.Distances))
	}
}
