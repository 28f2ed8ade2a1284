// Package http connects a nestor application to plain net/http handlers.
//
// ContextMiddleware gives every request its own context id and registers the
// *http.Request under nestor.RequestToken. Handle resolves a controller for the
// request and calls one of its methods. Any router built on http.Handler works,
// including http.ServeMux.
//
// Example usage:
//
//	app, _ := nestor.New(ctx, AppModule)
//
//	mux := http.NewServeMux()
//	mux.HandleFunc("POST /login", nestorhttp.Handle(app, (*AuthController).Login))
//	mux.HandleFunc("GET /users/{id}", nestorhttp.Handle(app, (*UserController).GetByID))
//
//	http.ListenAndServe(":8080", nestorhttp.ContextMiddleware(app)(mux))
package http

import (
	"errors"
	"net/http"

	"github.com/junioryono/nestor"
	"go.uber.org/zap"
)

// ErrNoContextID is returned when a request did not pass through ContextMiddleware.
var ErrNoContextID = errors.New("request has no nestor context id")

// Config holds the configuration for the context middleware.
type Config struct {
	// ErrorHandler is called when a middleware fails.
	// If nil, a default handler returning 500 Internal Server Error is used.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// CloseErrorHandler is called when releasing the request context fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	Logger *zap.Logger

	// Middlewares are functions that run once the context id is assigned.
	Middlewares []func(nestor.ContextID, *http.Request) error
}

// Option configures the context middleware.
type Option func(*Config)

// WithErrorHandler sets the error handler for middleware failures.
func WithErrorHandler(h func(http.ResponseWriter, *http.Request, error)) Option {
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
// Middlewares run in the order they are added.
func WithMiddleware(mw func(nestor.ContextID, *http.Request) error) Option {
	return func(c *Config) {
		c.Middlewares = append(c.Middlewares, mw)
	}
}

func defaultConfig() *Config {
	return &Config{
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		Logger: zap.NewNop(),
	}
}

// ContextMiddleware wraps a handler so that each request gets a new context
// id, registered with its *http.Request as nestor.RequestToken. The context is
// released when the handler returns.
func ContextMiddleware(app *nestor.Application, opts ...Option) func(http.Handler) http.Handler {
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

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := nestor.NewContextID()
			r = r.WithContext(nestor.WithContextIDValue(r.Context(), id))
			app.RegisterRequestByContextID(r, id)

			defer func() {
				if err := app.ReleaseContext(r.Context(), id); err != nil {
					cfg.CloseErrorHandler(err)
				}
			}()

			cfg.Logger.Debug("request context assigned",
				zap.String("context_id", id.String()),
				zap.String("path", r.URL.Path),
			)

			for _, mw := range cfg.Middlewares {
				if err := mw(id, r); err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ContextID returns the context id assigned to r by ContextMiddleware.
func ContextID(r *http.Request) (nestor.ContextID, error) {
	id, ok := nestor.ContextIDFromContext(r.Context())
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
	PanicHandler func(http.ResponseWriter, *http.Request, any)

	// ContextErrorHandler is called when the request has no context id.
	ContextErrorHandler func(http.ResponseWriter, *http.Request, error)

	// ResolutionErrorHandler is called when the controller cannot be resolved.
	ResolutionErrorHandler func(http.ResponseWriter, *http.Request, error)

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

// WithPanicHandler sets the handler for panics.
func WithPanicHandler(h func(http.ResponseWriter, *http.Request, any)) HandlerOption {
	return func(c *HandlerConfig) {
		c.PanicHandler = h
	}
}

// WithContextErrorHandler sets the error handler for requests without a context id.
func WithContextErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
	return func(c *HandlerConfig) {
		c.ContextErrorHandler = h
	}
}

// WithResolutionErrorHandler sets the error handler for resolution failures.
func WithResolutionErrorHandler(h func(http.ResponseWriter, *http.Request, error)) HandlerOption {
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
		c.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
			logger.Error("panic in handler", zap.Any("panic", v))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
	if c.ContextErrorHandler == nil {
		c.ContextErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("failed to get context id from request", zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
	if c.ResolutionErrorHandler == nil {
		c.ResolutionErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("failed to resolve controller", zap.Error(err))
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

// Handle wraps a controller method. The controller T is resolved for the
// context id of the request.
//
// The method signature should be: func(T, http.ResponseWriter, *http.Request)
//
// Example:
//
//	mux.HandleFunc("GET /users/{id}", nestorhttp.Handle(app, (*UserController).GetByID))
func Handle[T any](r nestor.Resolver, method func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	cfg := defaultHandlerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	cfg.fillDefaults()

	return func(w http.ResponseWriter, req *http.Request) {
		if cfg.PanicRecovery {
			defer func() {
				if v := recover(); v != nil {
					cfg.PanicHandler(w, req, v)
				}
			}()
		}

		id, err := ContextID(req)
		if err != nil {
			cfg.ContextErrorHandler(w, req, err)
			return
		}

		controller, err := nestor.Resolve[T](req.Context(), r, nestor.WithContextID(id))
		if err != nil {
			cfg.ResolutionErrorHandler(w, req, err)
			return
		}

		method(controller, w, req)
	}
}

// Wrap is Handle for handlers written as plain functions.
//
// Example:
//
//	mux.HandleFunc("GET /health", nestorhttp.Wrap(app, func(h *Health, w http.ResponseWriter, r *http.Request) {
//	    h.Write(w)
//	}))
func Wrap[T any](r nestor.Resolver, fn func(T, http.ResponseWriter, *http.Request), opts ...HandlerOption) http.HandlerFunc {
	return Handle(r, fn, opts...)
}
