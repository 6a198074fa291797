package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skotchmaster/auth_service/internal/middleware"
	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/session"
)

type Deps struct {
	AuthHandler *AuthHTTP
	Sessions    *session.Manager
	Health      *Health
	Gatherer    prometheus.Gatherer
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = ErrorHandler(e)

	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"message": "Auth microservice is running"})
	})

	if d.Health != nil {
		e.GET("/health/live", d.Health.Live)
		e.GET("/health/ready", d.Health.Ready)
	}
	if d.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	e.POST("/register", d.AuthHandler.Register)
	e.POST("/login", d.AuthHandler.Login)

	private := e.Group("")
	private.Use(middleware.RequireAuth(d.Sessions))

	private.POST("/logout", d.AuthHandler.LogOut)
	private.GET("/shared-content", d.AuthHandler.SharedContent)
	private.GET("/admin-only", d.AuthHandler.AdminOnly, middleware.RequireRole(models.RoleAdmin))
}
