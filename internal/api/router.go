package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"carwash-bay-backend/config"
	"carwash-bay-backend/internal/mw"
	"carwash-bay-backend/internal/station"
	"carwash-bay-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, svc *station.Service, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, svc, webpushOptions, cfg.Station.HistoryLimit)

	limit := cfg.Server.RateLimitPerSec
	if limit <= 0 {
		limit = 10
	}
	// The burst scales with the configured rate; a fixed bucket would
	// throttle bursts well below a high configured limit.
	burst := max(5, int(limit))
	rateLimiter := mw.RateLimiter(rate.Limit(limit), burst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Live bay status is never cached.
		api.GET("/bays", handler.GetBays)
		api.GET("/bays/:bay_id", handler.GetBay)
		api.POST("/bays/:bay_id/wash", handler.PostWash)
		api.POST("/bays/:bay_id/advance", handler.PostAdvance)

		api.GET("/bays/:bay_id/cycles", caching, handler.GetCycles)
		api.GET("/revenue", caching, handler.GetRevenue)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
