package handlers

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSMiddleware lets the configured origins call the API with credentials.
// A "*" entry allows every origin. Expo dev clients use the exp:// scheme.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		CustomSchemas:    []string{"exp://"},
		MaxAge:           12 * time.Hour,
	}

	for _, origin := range allowedOrigins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
		}
	}
	if !cfg.AllowAllOrigins {
		if len(allowedOrigins) == 0 {
			// cors.New panics on an empty allow list; same-origin only.
			return func(c *gin.Context) { c.Next() }
		}
		cfg.AllowOrigins = allowedOrigins
	}

	return cors.New(cfg)
}
