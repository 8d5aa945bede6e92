package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/parking-lot-reservation/internal/config"
	"github.com/iliyamo/parking-lot-reservation/internal/handler"
	"github.com/iliyamo/parking-lot-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication routes and the protected /v1/me
// endpoint.  Unauthenticated operations live under /v1/auth; logout is also
// mounted outside the JWT middleware so a refresh token alone can end a
// session.  The rate limiter keys these routes by IP since no identity is
// established yet.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("ADMIN", "USER"))
	auth.Use(limit)
	auth.GET("/me", a.Me)

	e.POST("/v1/logout", a.Logout, limit)
}

// RegisterPublic registers the unauthenticated browse endpoints.  They are
// the only routes behind the Redis response cache: cached availability is a
// listing convenience, the booking path always hits the database.  The rate
// limiter runs before the cache so hits are limited too.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cacheCfg config.CacheConfig, rdb *redis.Client, limit echo.MiddlewareFunc) {
	g := e.Group("/v1", limit, middleware.NewRedisCache(cacheCfg, rdb))
	g.GET("/lots", p.ListLots)
	g.GET("/lots/:id", p.GetLot)
	g.GET("/lots/:id/spots", p.ListSpots)
	g.GET("/lots/:id/snapshot", p.Snapshot)
}

// RegisterBooking registers the user-facing booking endpoints.  Booking is a
// USER activity; ownership of a reservation is checked by the engine, not by
// role middleware.  The limiter runs after JWTAuth so user-keyed strategies
// see the authenticated identity.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("USER"))
	g.Use(limit)
	g.POST("/lots/:id/allocate", b.Allocate)
	g.POST("/reservations/:id/release", b.Release)
	g.GET("/my-reservations", b.ListMyReservations)
	g.GET("/my-summary", b.MySummary)
}

// RegisterAdmin registers the lot registry and reporting endpoints, all
// behind the ADMIN role.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole("ADMIN"))
	g.Use(limit)
	g.POST("/lots", a.CreateLot)
	g.PUT("/lots/:id", a.UpdateLot)
	g.DELETE("/lots/:id", a.DeleteLot)
	g.GET("/lots/:id/reservations", a.ListLotReservations)
	g.GET("/lots/:id/summary", a.LotSummary)
	g.GET("/dashboard", a.Dashboard)
}
