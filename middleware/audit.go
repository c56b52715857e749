package middleware

import (
	"expediente_flow_go/services"

	"github.com/labstack/echo/v4"
)

const ContextKeyActorContext = "actor_context"

// ActorContext is middleware that extracts user info for audit logging
func ActorContext() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			user := GetCurrentUser(c)

			ctx := services.ActorContext{
				IPAddress: c.RealIP(),
				UserAgent: c.Request().UserAgent(),
			}

			if user != nil {
				ctx.UserID = user.ID
				ctx.UserName = user.Name
				ctx.UserRole = user.Role
			}

			c.Set(ContextKeyActorContext, ctx)
			return next(c)
		}
	}
}

// GetActorContext retrieves the actor context from the request
func GetActorContext(c echo.Context) services.ActorContext {
	if ctx, ok := c.Get(ContextKeyActorContext).(services.ActorContext); ok {
		return ctx
	}
	return services.ActorContext{}
}
