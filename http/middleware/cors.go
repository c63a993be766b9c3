package middlewares

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lamvt/vaultstream/config"
)

func CORSMiddleware(cfg *config.EnvConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Range", "X-Requested-With", "Accept"},
		ExposeHeaders:    []string{"Content-Range", "Accept-Ranges", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}

	if cfg.CORS.AllowDomains == "" {
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	} else {
		for _, domain := range strings.Split(cfg.CORS.AllowDomains, ",") {
			if domain = strings.TrimSpace(domain); domain != "" {
				corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, domain)
			}
		}
	}

	return cors.New(corsConfig)
}
