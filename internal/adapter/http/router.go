package http

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/javieralejandro89/beztshop-checkout/internal/adapter/http/middleware"
	"github.com/javieralejandro89/beztshop-checkout/internal/logging"
)

func NewRouter(h *CheckoutHandler, authz *middleware.Authz) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware())

	l := logging.New("http")
	r.Use(middleware.Logging(l))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	// Prometheus endpoint (scraped by Prometheus)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1", authz.Require("checkout"))
	{
		v1.POST("/checkout", h.Start)
		v1.GET("/checkout/:id", h.Get)
		v1.PUT("/checkout/:id/address", h.SetAddress)
		v1.PUT("/checkout/:id/notes", h.SetNotes)
		v1.PUT("/checkout/:id/shipping-method", h.SetShippingMethod)
		v1.POST("/checkout/:id/coupon", h.ApplyCoupon)
		v1.DELETE("/checkout/:id/coupon", h.RemoveCoupon)
		v1.PUT("/checkout/:id/items/:productId", h.SetQuantity)
		v1.POST("/checkout/:id/advance", h.Advance)
		v1.POST("/checkout/:id/back", h.Back)
		v1.POST("/checkout/:id/remediation", h.AcknowledgeRemediation)
		v1.POST("/checkout/:id/payment", h.SubmitPayment)
	}

	return r
}
