package web

import (
	"log/slog"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"namiokai/db/db"
)

func CorsConfig() cors.Config {
	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConf.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsConf.AllowCredentials = true
	corsConf.MaxAge = 1 * 3600 // 1 hours
	return corsConf
}

func limiterMiddleWare() gin.HandlerFunc {
	rate := limiter.Rate{
		Period: 1 * time.Hour,
		Limit:  1000, // 1000 requests per hour,
	}
	store := memory.NewStore()
	instance := limiter.New(store, rate)
	middleware := mgin.NewMiddleware(instance)

	return middleware
}

// UserDataLoaderInjectionMiddleware gives every request its own batching user loader.
func UserDataLoaderInjectionMiddleware(wrapper db.UserDBWrapper) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(string(db.DataLoaderKeyUsers), db.NewUserDataLoader(wrapper))
		c.Next()
	}
}

func userLoader(c *gin.Context) *db.UserDataLoader {
	v, _ := c.Get(string(db.DataLoaderKeyUsers))
	loader, _ := v.(*db.UserDataLoader)
	return loader
}

// requestLogger logs one line per request through slog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		switch {
		case status >= 500:
			slog.Error("request", attrs...)
		case status >= 400:
			slog.Warn("request", attrs...)
		default:
			slog.Debug("request", attrs...)
		}
	}
}

func setupMiddlewares(r *gin.Engine, isDev bool, users db.UserDBWrapper) {
	r.Use(limiterMiddleWare())
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.Use(cors.New(CorsConfig()))
	// websocket upgrades need the raw writer; prometheus compresses itself
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/ws/", "/metrics"})))
	r.Use(secure.New(secure.Config{
		IsDevelopment:        isDev,
		STSSeconds:           31536000, // 1 year
		STSIncludeSubdomains: true,
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		ReferrerPolicy:       "strict-origin-when-cross-origin",
	}))
	r.Use(UserDataLoaderInjectionMiddleware(users))
}
