// Package echo connects a nestor application to the Echo web framework.
//
// ContextMiddleware gives every request its own context id and registers the
// echo.Context under nestor.RequestToken. Handle resolves a controller for the
// request and calls one of its methods.
//
// Example usage:
//
//	app, _ := nestor.New(ctx, AppModule)
//
//	e := echo.New()
//	e.Use(nestorecho.ContextMiddleware(app))
//
//	e.POST("/login", nestorecho.Handle(app, (*AuthController).Login))
//	e.GET("/users/:id", nestorecho.Handle(app, (*UserController).GetByID))
package echo

import (
	"errors"
	"net/http"

	"github.com/junioryono/nestor"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ErrNoContextID is returned when a request did not pass through ContextMiddleware.
var ErrNoContextID = errors.New("request has no nestor context id")

// Config holds the configuration for the context middleware.
type Config struct {
	// ErrorHandler is called when a middleware fails.
	// If nil, an echo.HTTPError with status 500 is returned.
	ErrorHandler func(echo.Context, error) error

	// CloseErrorHandler is called when releasing the request context fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	// Middlewares are functions that run once the context id is assigned.
	Middlewares []func(nestor.ContextID, echo.Context) error

	Logger *zap.Logger
}

// Option configures the context middleware.
type Option func(*Config)

// WithErrorHandler sets the error handler for middleware failures.
func WithErrorHandler(h func(echo.Context, error) error) Option {
	return func(c *Config) {
		c.ErrorHandler = h
	}
}

// WithCloseErrorHandler sets the error handler for context release failures.
func WithCloseErrorHandler(h func(error)) Option {
	return func(c *Config) {
		c.CloseErrorHandler = h
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithMiddleware adds a function that runs after the context id is assigned.
// Multiple middlewares are executed in the order they are added.
func WithMiddleware(mw func(nestor.ContextID, echo.Context) error) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

func defaultConfig() *Config {
	return &Config{
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
		},
		Logger: zap.NewNop(),
	}
}

// ContextMiddleware creates an Echo middleware that assigns a new context id
// to each request. The id is stored in the request context, the echo.Context
// is registered as nestor.RequestToken and the context is released when the
// request completes.
//
// Example:
//
//	e := echo.New()
//	e.Use(nestorecho.ContextMiddleware(app))
func ContextMiddleware(app *nestor.Application, opts ...Option) echo.MiddlewareFunc {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.CloseErrorHandler == nil {
		logger := cfg.Logger
		cfg.CloseErrorHandler = func(err error) {
			logger.Error("failed to release request context", zap.Error(err))
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id := nestor.NewContextID()
			c.SetRequest(c.Request().WithContext(nestor.WithContextIDValue(c.Request().Context(), id)))
			app.RegisterRequestByContextID(c, id)

			defer func() {
				if err := app.ReleaseContext(c.Request().Context(), id); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			cfg.Logger.Debug("request context assigned",
				zap.String("context_id", id.String()),
				zap.String("path", c.Path()),
			)

			for _, mw := range cfg.Middlewares {
				if err := mw(id, c); err != nil {
					return cfg.ErrorHandler(c, err)
				}
			}

			return next(c)
		}
	}
}

// ContextID returns the context id assigned by ContextMiddleware.
func ContextID(c echo.Context) (nestor.ContextID, error) {
	id, ok := nestor.ContextIDFromContext(c.Request().Context())
	if !ok {
		return nestor.ContextID{}, ErrNoContextID
	}
	return id, nil
}

// HandlerConfig holds configuration for the Handle wrapper.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(echo.Context, any) error

	// ContextErrorHandler is called when the request has no context id.
	ContextErrorHandler func(echo.Context, error) error

	// ResolutionErrorHandler is called when the controller cannot be resolved.
	ResolutionErrorHandler func(echo.Context, error) error

	Logger *zap.Logger
}

// HandlerOption configures the Handle wrapper.
type HandlerOption func(*HandlerConfig)

// WithPanicRecovery enables or disables panic recovery in the handler.
func WithPanicRecovery(enabled bool) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicRecovery = enabled
	}
}

// WithPanicHandler sets the handler for panics (requires WithPanicRecovery(true)).
func WithPanicHandler(h func(echo.Context, any) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithContextErrorHandler sets the error handler for requests without a context id.
func WithContextErrorHandler(h func(echo.Context, error) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.ContextErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for resolution failures.
func WithResolutionErrorHandler(h func(echo.Context, error) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.ResolutionErrorHandler = h
	}
}

// WithHandlerLogger sets the logger used by the default error handlers.
func WithHandlerLogger(logger *zap.Logger) HandlerOption {
	return func(c *HandlerConfig) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

func defaultHandlerConfig() *HandlerConfig {
	return &HandlerConfig{Logger: zap.NewNop()}
}

func (c *HandlerConfig) fillDefaults() {
	logger := c.Logger
	if c.PanicHandler == nil {
		c.PanicHandler = func(ctx echo.Context, v any) error {
			logger.Error("panic in handler", zap.Any("panic", v))
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
		}
	}
	if c.ContextErrorHandler == nil {
		c.ContextErrorHandler = func(ctx echo.Context, err error) error {
			logger.Error("failed to get context id from request", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
		}
	}
	if c.ResolutionErrorHandler == nil {
		c.ResolutionErrorHandler = func(ctx echo.Context, err error) error {
			logger.Error("failed to resolve controller", zap.Error(err))
			return echo.NewHTTPError(http.StatusInternalServerError, "Internal Server Error")
		}
	}
}

// Handle wraps a controller method. The controller T is resolved for the
// context id of the request.
//
// The method signature should be: func(T, echo.Context) error
//
// Example:
//
//	e.GET("/users/:id", nestorecho.Handle(app, (*UserController).GetByID))
func Handle[T any](r nestor.Resolver, method func(T, echo.Context) error, opts ...HandlerOption) echo.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.fillDefaults()

	return func(c echo.Context) (err error) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					err = cfg.PanicHandler(c, v)
				}
			}()
		}

		if _, idErr := ContextID(c); idErr != nil {
			return cfg.ContextErrorHandler(c, idErr)
		}

		controller, resolveErr := nestor.Resolve[T](c.Request().Context(), r)
		if resolveErr != nil {
			return cfg.ResolutionErrorHandler(c, resolveErr)
		}

		return method(controller, c)
	}
}
