package app

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zuulview/zuulview/internal/controllers"
	"github.com/zuulview/zuulview/internal/middleware"
	"github.com/zuulview/zuulview/internal/ratelimit"
)

func SetupMappings(app *Application) {
	bucket := ratelimit.Bucket{
		RequestsPerMinute: app.Config.RateLimit.API.RequestsPerMinute,
		BurstSize:         app.Config.RateLimit.API.BurstSize,
	}

	api := app.Engine.Group("/api", middleware.RateLimitAPI(app.RateLimiter, bucket))
	{
		tenant := api.Group("/tenant/:tenant")
		tenant.GET("/build/:uuid", controllers.NewGetBuildController(app.BuildInfo).Handle)
		tenant.GET("/build/:uuid/output", controllers.NewGetOutputController(app.BuildInfo).Handle)
		tenant.GET("/build/:uuid/manifest", controllers.NewGetManifestController(app.BuildInfo).Handle)
		tenant.GET("/buildset/:uuid", controllers.NewGetBuildsetController(app.BuildInfo).Handle)
	}

	app.Engine.GET("/healthz", controllers.NewHealthController(app.Store).Handle)
	app.Engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
