// Package gin connects a nestor application to the Gin web framework.
//
// ContextMiddleware gives every request its own context id and registers the
// *gin.Context under nestor.RequestToken. Handle resolves a controller for the
// request and calls one of its methods.
//
// Example usage:
//
//	app, _ := nestor.New(ctx, AppModule)
//
//	g := gin.New()
//	g.Use(nestorgin.ContextMiddleware(app))
//
//	g.POST("/login", nestorgin.Handle(app, (*AuthController).Login))
//	g.GET("/users/:id", nestorgin.Handle(app, (*UserController).GetByID))
package gin

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/junioryono/nestor"
	"go.uber.org/zap"
)

// ErrNoContextID is returned when a request did not pass through ContextMiddleware.
var ErrNoContextID = errors.New("request has no nestor context id")

// Config holds the configuration for the context middleware.
type Config struct {
	// ErrorHandler is called when a middleware fails.
	// If nil, a default handler returning 500 Internal Server Error is used.
	ErrorHandler func(*gin.Context, error)

	// CloseErrorHandler is called when releasing the request context fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	// Middlewares are functions that run once the context id is assigned.
	// They can be used to initialize request state, set user claims, etc.
	Middlewares []func(nestor.ContextID, *gin.Context) error

	Logger *zap.Logger
}

// Option configures the context middleware.
type Option func(*Config)

// WithErrorHandler sets the error handler for middleware failures.
func WithErrorHandler(h func(*gin.Context, error)) Option {
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
//
// Example:
//
//	nestorgin.ContextMiddleware(app,
//	    nestorgin.WithMiddleware(func(id nestor.ContextID, c *gin.Context) error {
//	        claims := nestor.MustResolve[*auth.Claims](c.Request.Context(), app)
//	        return claims.Parse(c.GetHeader("Authorization"))
//	    }),
//	)
func WithMiddleware(mw func(nestor.ContextID, *gin.Context) error) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

func defaultConfig() *Config {
	return &Config{
		ErrorHandler: func(c *gin.Context, err error) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "Internal Server Error",
			})
		},
		Logger: zap.NewNop(),
	}
}

// ContextMiddleware creates a gin.HandlerFunc that assigns a new context id to
// each request. The id is stored in the request context, the *gin.Context is
// registered as nestor.RequestToken and the context is released when the
// request completes.
//
// Example:
//
//	g := gin.New()
//	g.Use(nestorgin.ContextMiddleware(app))
func ContextMiddleware(app *nestor.Application, opts ...Option) gin.HandlerFunc {
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

	return func(c *gin.Context) {
		id := nestor.NewContextID()
		c.Request = c.Request.WithContext(nestor.WithContextIDValue(c.Request.Context(), id))
		app.RegisterRequestByContextID(c, id)

		defer func() {
			if err := app.ReleaseContext(c.Request.Context(), id); err != nil {
				cfg.CloseErrorHandler(err)
			}
		}()

		cfg.Logger.Debug("request context assigned",
			zap.String("context_id", id.String()),
			zap.String("path", c.FullPath()),
		)

		for _, mw := range cfg.Middlewares {
			if err := mw(id, c); err != nil {
				cfg.ErrorHandler(c, err)
				return
			}
		}

		c.Next()
	}
}

// ContextID returns the context id assigned by ContextMiddleware.
func ContextID(c *gin.Context) (nestor.ContextID, error) {
	id, ok := nestor.ContextIDFromContext(c.Request.Context())
	if !ok {
		return nestor.ContextID{}, ErrNoContextID
	}
	return id, nil
}

// HandlerConfig holds configuration for the Handle wrapper.
type HandlerConfig struct {
	// PanicRecovery enables panic recovery in the handler.
	// If true, panics are caught and handled by PanicHandler.
	PanicRecovery bool

	// PanicHandler is called when a panic occurs (if PanicRecovery is true).
	PanicHandler func(*gin.Context, any)

	// ContextErrorHandler is called when the request has no context id.
	ContextErrorHandler func(*gin.Context, error)

	// ResolutionErrorHandler is called when the controller cannot be resolved.
	ResolutionErrorHandler func(*gin.Context, error)

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
func WithPanicHandler(h func(*gin.Context, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithContextErrorHandler sets the error handler for requests without a context id.
func WithContextErrorHandler(h func(*gin.Context, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ContextErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for resolution failures.
func WithResolutionErrorHandler(h func(*gin.Context, error)) HandlerOption {
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
	abort := func(ctx *gin.Context) {
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "Internal Server Error",
		})
	}

	if c.PanicHandler == nil {
		c.PanicHandler = func(ctx *gin.Context, v any) {
			logger.Error("panic in handler", zap.Any("panic", v))
			abort(ctx)
		}
	}
	if c.ContextErrorHandler == nil {
		c.ContextErrorHandler = func(ctx *gin.Context, err error) {
			logger.Error("failed to get context id from request", zap.Error(err))
			abort(ctx)
		}
	}
	if c.ResolutionErrorHandler == nil {
		c.ResolutionErrorHandler = func(ctx *gin.Context, err error) {
			logger.Error("failed to resolve controller", zap.Error(err))
			abort(ctx)
		}
	}
}

// Handle wraps a controller method. The controller T is resolved for the
// context id of the request.
//
// The method signature should be: func(T, *gin.Context)
//
// Example:
//
//	g.GET("/users/:id", nestorgin.Handle(app, (*UserController).GetByID))
func Handle[T any](r nestor.Resolver, method func(T, *gin.Context), opts ...HandlerOption) gin.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.fillDefaults()

	return func(c *gin.Context) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(c, v)
				}
			}()
		}

		if _, err := ContextID(c); err != nil {
			cfg.ContextErrorHandler(c, err)
			return
		}

		controller, err := nestor.Resolve[T](c.Request.Context(), r)
		if err != nil {
			cfg.ResolutionErrorHandler(c, err)
			return
		}

		method(controller, c)
	}
}
