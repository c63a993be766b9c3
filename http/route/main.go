package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/lamvt/vaultstream/http/controller"
	middlewares "github.com/lamvt/vaultstream/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.Default()
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}

	r.Use(middles.CORSMiddleware)
	r.GET("/health", ctrl.HealthCheck)

	// Playback goes through the origin allow-list inside the handler instead
	// of the JWT middleware, so <video>/<audio> tags can hit it directly.
	r.GET("/stream", ctrl.StreamObject)

	uploadRoutes := r.Group("/")
	{
		uploadRoutes.Use(middles.AuthMiddleware)
		uploadRoutes.POST("/chunks", ctrl.IngestChunk)
		uploadRoutes.GET("/objects", ctrl.ListObjects)
	}

	return r
}
