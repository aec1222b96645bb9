package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/ratelimit"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/health", handler.Health)
}

// RegisterReservations registers the public booking endpoints and the admin
// listing.  Booking applies its own per-client limit inside the service;
// availability is not limited.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string) {
	g := e.Group("/api/reservations")
	g.GET("/availability", h.Availability)
	g.POST("", h.Book)
	g.GET("", h.List, middleware.JWTAuth(jwtSecret), middleware.RequireRole(middleware.RoleAdmin))
}

// RegisterNewsletter registers the newsletter opt-in endpoint behind limiter.
func RegisterNewsletter(e *echo.Echo, h *handler.NewsletterHandler, limiter ratelimit.Limiter) {
	e.POST("/api/newsletter", h.Subscribe, middleware.RateLimit(limiter))
}
