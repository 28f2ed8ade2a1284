// Package fiber connects a nestor application to the Fiber web framework.
//
// ContextMiddleware gives every request its own context id and registers the
// *fiber.Ctx under nestor.RequestToken. Handle resolves a controller for the
// request and calls one of its methods.
//
// Example usage:
//
//	app, _ := nestor.New(ctx, AppModule)
//
//	f := fiber.New()
//	f.Use(nestorfiber.ContextMiddleware(app))
//
//	f.Post("/login", nestorfiber.Handle(app, (*AuthController).Login))
//	f.Get("/users/:id", nestorfiber.Handle(app, (*UserController).GetByID))
package fiber

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/junioryono/nestor"
	"go.uber.org/zap"
)

// contextIDKey is the key used to store the context id in fiber.Ctx.Locals
const contextIDKey = "nestor_context_id"

// ErrNoContextID is returned when a request did not pass through ContextMiddleware.
var ErrNoContextID = errors.New("request has no nestor context id")

// Config holds the configuration for the context middleware.
type Config struct {
	// ErrorHandler is called when a middleware fails.
	// If nil, a JSON 500 response is sent.
	ErrorHandler func(*fiber.Ctx, error) error

	// CloseErrorHandler is called when releasing the request context fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	// Middlewares are functions that run once the context id is assigned.
	// They can be used to initialize request state, set user data, etc.
	Middlewares []func(nestor.ContextID, *fiber.Ctx) error

	Logger *zap.Logger
}

// Option configures the context middleware.
type Option func(*Config)

// WithErrorHandler sets the error handler for middleware failures.
func WithErrorHandler(h func(*fiber.Ctx, error) error) Option {
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
func WithMiddleware(mw func(nestor.ContextID, *fiber.Ctx) error) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

func internalServerError(c *fiber.Ctx) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal Server Error",
	})
}

func defaultConfig() *Config {
	return &Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return internalServerError(c)
		},
		Logger: zap.NewNop(),
	}
}

// ContextMiddleware creates a Fiber middleware that assigns a new context id
// to each request. The id is stored in fiber.Ctx.Locals and in the user
// context, the *fiber.Ctx is registered as nestor.RequestToken and the context
// is released when the request completes.
//
// Example:
//
//	f := fiber.New()
//	f.Use(nestorfiber.ContextMiddleware(app))
func ContextMiddleware(app *nestor.Application, opts ...Option) fiber.Handler {
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

	return func(c *fiber.Ctx) error {
		id := nestor.NewContextID()
		c.SetUserContext(nestor.WithContextIDValue(c.UserContext(), id))
		c.Locals(contextIDKey, id)
		app.RegisterRequestByContextID(c, id)

		defer func() {
			if err := app.ReleaseContext(c.UserContext(), id); err != nil {
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

		return c.Next()
	}
}

// ContextID returns the context id assigned by ContextMiddleware.
func ContextID(c *fiber.Ctx) (nestor.ContextID, error) {
	id, ok := c.Locals(contextIDKey).(nestor.ContextID)
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
	PanicHandler func(*fiber.Ctx, any) error

	// ContextErrorHandler is called when the request has no context id.
	ContextErrorHandler func(*fiber.Ctx, error) error

	// ResolutionErrorHandler is called when the controller cannot be resolved.
	ResolutionErrorHandler func(*fiber.Ctx, error) error

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
func WithPanicHandler(h func(*fiber.Ctx, any) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithContextErrorHandler sets the error handler for requests without a context id.
func WithContextErrorHandler(h func(*fiber.Ctx, error) error) HandlerOption {
	return func(c *HandlerConfig) {
		c.ContextErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for resolution failures.
func WithResolutionErrorHandler(h func(*fiber.Ctx, error) error) HandlerOption {
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
		c.PanicHandler = func(ctx *fiber.Ctx, v any) error {
			logger.Error("panic in handler", zap.Any("panic", v))
			return internalServerError(ctx)
		}
	}
	if c.ContextErrorHandler == nil {
		c.ContextErrorHandler = func(ctx *fiber.Ctx, err error) error {
			logger.Error("failed to get context id from request", zap.Error(err))
			return internalServerError(ctx)
		}
	}
	if c.ResolutionErrorHandler == nil {
		c.ResolutionErrorHandler = func(ctx *fiber.Ctx, err error) error {
			logger.Error("failed to resolve controller", zap.Error(err))
			return internalServerError(ctx)
		}
	}
}

// Handle wraps a controller method. The controller T is resolved for the
// context id stored by ContextMiddleware.
//
// The method signature should be: func(T, *fiber.Ctx) error
//
// Example:
//
//	f.Get("/users/:id", nestorfiber.Handle(app, (*UserController).GetByID))
func Handle[T any](r nestor.Resolver, method func(T, *fiber.Ctx) error, opts ...HandlerOption) fiber.Handler {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.fillDefaults()

	return func(c *fiber.Ctx) (err error) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					err = cfg.PanicHandler(c, v)
				}
			}()
		}

		id, idErr := ContextID(c)
		if idErr != nil {
			return cfg.ContextErrorHandler(c, idErr)
		}

		controller, resolveErr := nestor.Resolve[T](c.UserContext(), r, nestor.WithContextID(id))
		if resolveErr != nil {
			return cfg.ResolutionErrorHandler(c, resolveErr)
		}

		return method(controller, c)
	}
}
