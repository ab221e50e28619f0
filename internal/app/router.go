package app

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"sphincs.io/sphincs/internal/api/handlers"
	"sphincs.io/sphincs/internal/api/middleware"
	"sphincs.io/sphincs/internal/api/openapi"
	"sphincs.io/sphincs/internal/config"
	"sphincs.io/sphincs/internal/metrics"
)

// Public routes that do NOT require JWT authentication.
var publicPrefixes = []string{
	openapi.BasePath + "/health/",
}

// Dev origins of the mobile companion when none are configured.
var defaultAllowedOrigins = []string{
	"http://localhost:8100",
	"http://127.0.0.1:8100",
}

// JWTConfig derives token settings from the security section.
func JWTConfig(sec config.SecurityConfig) middleware.JWTConfig {
	return middleware.JWTConfig{
		SigningKey: []byte(sec.JWTSecret),
		Issuer:     sec.JWTIssuer,
		ExpiresIn:  sec.TokenTTL,
	}
}

func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Metrics(), middleware.ErrorHandler())
	router.Use(cors.New(buildCORSConfig(cfg)))

	public := append([]string{}, publicPrefixes...)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(metrics.Handler()))
		public = append(public, cfg.Metrics.Path)
	}

	router.Use(jwtSkipPublic(jwtCfg, public))
	router.Use(middleware.MustOpenAPIValidator(openapi.BasePath))

	handlers.RegisterRoutes(router.Group(openapi.BasePath), server, middleware.RequireRole(middleware.RoleManager))
	return router
}

// jwtSkipPublic returns middleware that applies JWT auth only on non-public routes.
func jwtSkipPublic(jwtCfg middleware.JWTConfig, public []string) gin.HandlerFunc {
	jwtMw := middleware.JWTAuth(jwtCfg)
	return func(c *gin.Context) {
		for _, prefix := range public {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}
		jwtMw(c)
	}
}

// buildCORSConfig drops wildcard origins unless explicitly unsafe; a
// wildcard never travels with credentials.
func buildCORSConfig(cfg *config.Config) cors.Config {
	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: cfg.Server.AllowCredentials,
	}

	if cfg.Server.UnsafeAllowAllOrigins {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
		return corsCfg
	}

	origins := make([]string, 0, len(cfg.Server.AllowedOrigins))
	for _, origin := range cfg.Server.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "" || origin == "*" {
			continue
		}
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		origins = append(origins, defaultAllowedOrigins...)
	}
	corsCfg.AllowOrigins = origins
	return corsCfg
}
