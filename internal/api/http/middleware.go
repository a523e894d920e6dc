package http

import (
	"context"
	"errors"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront-session/internal/api/dto"
	"github.com/spec-kit/storefront-session/internal/observability"
	apperrors "github.com/spec-kit/storefront-session/pkg/util"
)

// RegisterMiddlewares attaches global middlewares such as error handling and logging.
func RegisterMiddlewares(app *fiber.App, logger *zap.Logger, metrics *observability.Metrics, timeout time.Duration) {
	app.Use(requestIDMiddleware())
	app.Use(observability.RequestLogger(logger, metrics))
	if timeout > 0 {
		app.Use(requestTimeoutMiddleware(timeout))
	}
	app.Use(errorHandlingMiddleware(logger))
}

func requestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(observability.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			c.Request().Header.Set(observability.RequestIDHeader, id)
		}
		c.Set(observability.RequestIDHeader, id)
		return c.Next()
	}
}

func requestTimeoutMiddleware(timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), timeout)
		defer cancel()
		c.SetUserContext(ctx)
		return c.Next()
	}
}

func errorHandlingMiddleware(logger *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = apperrors.NewUnknownError("internal error", nil)
			}
			if err != nil {
				authErr, status := classify(err)
				if status >= fiber.StatusInternalServerError {
					logger.Error("request failed", zap.Error(err))
				}
				c.Status(status)
				_ = c.JSON(dto.NewErrorBody(authErr, status, time.Now()))
				err = nil
			}
		}()
		return c.Next()
	}
}

// classify maps handler errors onto the wire error and its status. Fiber's own
// errors keep their status code.
func classify(err error) (*apperrors.AuthError, int) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := apperrors.KindUnknown
		switch fe.Code {
		case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
			kind = apperrors.KindValidation
		case fiber.StatusUnauthorized:
			kind = apperrors.KindAuthentication
		case fiber.StatusForbidden:
			kind = apperrors.KindAuthorization
		}
		return apperrors.NewAuthError(kind, fe.Message), fe.Code
	}
	authErr := apperrors.ToAuthError(err)
	return authErr, authErr.HTTPStatus()
}
