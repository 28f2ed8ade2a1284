// Package chi connects a nestor application to the Chi router.
//
// ContextMiddleware gives every request its own context id and registers the
// request under nestor.RequestToken, so request-scoped providers are
// constructed once per request. Handle resolves a controller for the request
// and calls one of its methods.
//
// Example usage:
//
//	app, _ := nestor.New(ctx, AppModule)
//
//	r := nestorchi.NewRouter(app, func(r chi.Router) {
//	    r.Post("/login", nestorchi.Handle(app, (*AuthController).Login))
//	    r.Get("/users/{id}", nestorchi.Handle(app, (*UserController).GetByID))
//	})
package chi

import (
	"errors"
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/junioryono/nestor"
	"go.uber.org/zap"
)

// ErrNoContextID is returned when a request did not pass through ContextMiddleware.
var ErrNoContextID = errors.New("request has no nestor context id")

// Guard decides whether a request may reach its handler. Providers registered
// under nestor.AppGuard that implement Guard are applied by GuardMiddleware.
type Guard interface {
	CanActivate(r *http.Request) (bool, error)
}

// Config holds the configuration for the context middleware.
type Config struct {
	// ErrorHandler is called when a middleware or a guard fails.
	// If nil, a default handler returning 500 Internal Server Error is used.
	ErrorHandler func(http.ResponseWriter, *http.Request, error)

	// CloseErrorHandler is called when releasing the request context fails.
	// If nil, errors are logged.
	CloseErrorHandler func(error)

	// Logger receives request level debug logs. Defaults to a no-op logger.
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

func newConfig(opts []Option) *Config {
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
	return cfg
}

// NewRouter returns a chi router that assigns request ids and nestor context
// ids, applies the application guards and mounts routes under the global
// prefix of the application.
func NewRouter(app *nestor.Application, routes func(r gochi.Router), opts ...Option) *gochi.Mux {
	r := gochi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(ContextMiddleware(app, opts...))
	r.Use(GuardMiddleware(app, opts...))

	if prefix := app.ApplicationConfig().GlobalPrefix(); prefix != "" {
		r.Route(prefix, routes)
	} else {
		r.Group(routes)
	}
	return r
}

// ContextMiddleware creates a Chi middleware that assigns a new context id to
// each request, registers the request as nestor.RequestToken for that id and
// stores the id in the request context. The context is released when the
// request completes.
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(nestorchi.ContextMiddleware(app))
func ContextMiddleware(app *nestor.Application, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts)

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
				zap.String("request_id", middleware.GetReqID(r.Context())),
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

// GuardMiddleware rejects requests that an application guard refuses with
// 403 Forbidden. Guard errors go to the error handler.
func GuardMiddleware(app *nestor.Application, opts ...Option) func(http.Handler) http.Handler {
	cfg := newConfig(opts)

	var guards []Guard
	for _, g := range app.ApplicationConfig().GlobalGuards() {
		if guard, ok := g.(Guard); ok {
			guards = append(guards, guard)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, guard := range guards {
				ok, err := guard.CanActivate(r)
				if err != nil {
					cfg.ErrorHandler(w, r, err)
					return
				}
				if !ok {
					cfg.Logger.Debug("request rejected by guard", zap.String("path", r.URL.Path))
					http.Error(w, "Forbidden", http.StatusForbidden)
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
// context id of the request, so request-scoped controllers are constructed
// once per request.
//
// The method signature should be: func(T, http.ResponseWriter, *http.Request)
//
// Example:
//
//	r.Get("/users/{id}", nestorchi.Handle(app, (*UserController).GetByID))
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

		if _, err := ContextID(req); err != nil {
			cfg.ContextErrorHandler(w, req, err)
			return
		}

		controller, err := nestor.Resolve[T](req.Context(), r)
		if err != nil {
			cfg.ResolutionErrorHandler(w, req, err)
			return
		}

		method(controller, w, req)
	}
}
