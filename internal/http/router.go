package api

import (
	"context"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"

	"detailhub/internal/config"
	h "detailhub/internal/http/handlers"
	"detailhub/internal/http/middleware"
	"detailhub/internal/utils"
)

func NewRouter(env config.Env, a *h.API) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS(env.CORSAllowedOrigins))

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.LogWarn(context.Background(), "http", "trusted_proxies", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	api := r.Group("/api")
	{
		api.GET("/health", a.Health)
		api.GET("/db-check", a.DBCheck)

		// Processor callbacks authenticate by signature.
		api.POST("/webhooks/stripe", a.StripeWebhook)

		internal := api.Group("/internal", middleware.CronSecret(env.CronSecretHash))
		internal.POST("/auto-release", a.AutoRelease)

		authed := api.Group("", middleware.Auth(env.JWTSecret))

		admin := authed.Group("/admin", middleware.AdminSecret(env.AdminSecretHash))
		admin.POST("/bookings/:id/refund", a.Refund)
		admin.POST("/bookings/:id/release-payout", a.ReleasePayout)
		admin.POST("/bookings/:id/resolve-dispute", a.ResolveDispute)

		user := authed.Group("", middleware.RequireActor())

		bookings := user.Group("/bookings")
		bookings.POST("", a.CreateBooking)
		bookings.GET("/:id", a.GetBooking)
		bookings.GET("/:id/events", a.GetBookingEvents)
		bookings.POST("/:id/assign", a.AssignProvider)
		bookings.POST("/:id/arrive", a.Arrive)
		bookings.POST("/:id/complete", a.Complete)
		bookings.POST("/:id/confirm", a.Confirm)
		bookings.POST("/:id/dispute", a.OpenDispute)
		bookings.POST("/:id/cancel", a.Cancel)

		providers := user.Group("/providers")
		providers.GET("/:id/earnings", a.ProviderEarnings)
		providers.GET("/:id/earnings/statement.pdf", a.ProviderStatement)
	}

	return r
}
