package echo

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/junioryono/nestor"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test types
type testService struct {
	ID     int64
	closed *atomic.Int64
}

func (s *testService) Close() error {
	s.closed.Add(1)
	return nil
}

type testController struct {
	Service *testService
	Request any
}

func newTestController(svc *testService, req any) *testController {
	return &testController{Service: svc, Request: req}
}

func (c *testController) GetPath(ctx echo.Context) error {
	ec, ok := c.Request.(echo.Context)
	if !ok {
		return ctx.NoContent(http.StatusInternalServerError)
	}
	return ctx.String(http.StatusOK, ec.Request().URL.Path)
}

func (c *testController) Panic(ctx echo.Context) error {
	panic("test panic")
}

type testApp struct {
	*nestor.Application
	calls  atomic.Int64
	closed atomic.Int64
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	ta := &testApp{}
	root := nestor.NewModule("AppModule",
		nestor.Providers(
			nestor.Class(func() *testService {
				return &testService{ID: ta.calls.Add(1), closed: &ta.closed}
			}, nestor.WithScope(nestor.Request)),
		),
		nestor.Controllers(
			nestor.Class(newTestController, nestor.InjectAt(1, nestor.RequestToken)),
		),
	)

	app, err := nestor.New(context.Background(), root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	ta.Application = app
	return ta
}

func serve(e *echo.Echo, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestContextMiddleware(t *testing.T) {
	t.Run("assigns a context id per request", func(t *testing.T) {
		app := newTestApp(t)

		var ids []nestor.ContextID
		e := echo.New()
		e.Use(ContextMiddleware(app.Application))
		e.GET("/test", func(c echo.Context) error {
			id, err := ContextID(c)
			assert.NoError(t, err)
			ids = append(ids, id)

			first, err := nestor.Resolve[*testService](c.Request().Context(), app)
			assert.NoError(t, err)
			second, err := nestor.Resolve[*testService](c.Request().Context(), app)
			assert.NoError(t, err)
			assert.Same(t, first, second)

			return c.NoContent(http.StatusOK)
		})

		assert.Equal(t, http.StatusOK, serve(e, "/test").Code)
		assert.Equal(t, http.StatusOK, serve(e, "/test").Code)

		require.Len(t, ids, 2)
		assert.NotEqual(t, ids[0], ids[1])
		assert.Equal(t, int64(2), app.calls.Load())
		assert.Equal(t, int64(2), app.closed.Load(), "request instances are disposed")
	})

	t.Run("runs middlewares in order", func(t *testing.T) {
		app := newTestApp(t)

		var order []int
		e := echo.New()
		e.Use(ContextMiddleware(app.Application,
			WithMiddleware(func(id nestor.ContextID, c echo.Context) error {
				assert.False(t, id.IsStatic())
				order = append(order, 1)
				return nil
			}),
			WithMiddleware(func(nestor.ContextID, echo.Context) error {
				order = append(order, 2)
				return nil
			}),
		))
		e.GET("/test", func(c echo.Context) error {
			order = append(order, 3)
			return c.NoContent(http.StatusOK)
		})

		serve(e, "/test")
		assert.Equal(t, []int{1, 2, 3}, order)
	})

	t.Run("calls error handler when middleware fails", func(t *testing.T) {
		app := newTestApp(t)

		var handled error
		e := echo.New()
		e.Use(ContextMiddleware(app.Application,
			WithMiddleware(func(nestor.ContextID, echo.Context) error {
				return errors.New("middleware error")
			}),
			WithErrorHandler(func(c echo.Context, err error) error {
				handled = err
				return c.NoContent(http.StatusBadRequest)
			}),
		))
		e.GET("/test", func(c echo.Context) error {
			t.Error("handler should not be called")
			return nil
		})

		assert.Equal(t, http.StatusBadRequest, serve(e, "/test").Code)
		assert.EqualError(t, handled, "middleware error")
	})
}

func TestHandle(t *testing.T) {
	t.Run("resolves the controller for the request", func(t *testing.T) {
		app := newTestApp(t)

		e := echo.New()
		e.Use(ContextMiddleware(app.Application))
		e.GET("/users/:id", Handle(app, (*testController).GetPath))

		rec := serve(e, "/users/42")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/users/42", rec.Body.String())
	})

	t.Run("calls context error handler without middleware", func(t *testing.T) {
		app := newTestApp(t)

		var handled error
		e := echo.New()
		e.GET("/test", Handle(app, (*testController).GetPath,
			WithContextErrorHandler(func(c echo.Context, err error) error {
				handled = err
				return c.NoContent(http.StatusBadRequest)
			}),
		))

		assert.Equal(t, http.StatusBadRequest, serve(e, "/test").Code)
		assert.ErrorIs(t, handled, ErrNoContextID)
	})

	t.Run("calls resolution error handler when controller is missing", func(t *testing.T) {
		app := newTestApp(t)

		var handled error
		e := echo.New()
		e.Use(ContextMiddleware(app.Application))
		e.GET("/test", Handle(app, func(*http.Server, echo.Context) error {
			t.Error("method should not be called")
			return nil
		}, WithResolutionErrorHandler(func(c echo.Context, err error) error {
			handled = err
			return c.NoContent(http.StatusNotFound)
		})))

		assert.Equal(t, http.StatusNotFound, serve(e, "/test").Code)

		var unknown nestor.UnknownElementError
		assert.True(t, errors.As(handled, &unknown))
	})

	t.Run("recovers from panic when enabled", func(t *testing.T) {
		app := newTestApp(t)

		var recovered any
		e := echo.New()
		e.Use(ContextMiddleware(app.Application))
		e.GET("/panic", Handle(app, (*testController).Panic,
			WithPanicRecovery(true),
			WithPanicHandler(func(c echo.Context, v any) error {
				recovered = v
				return c.NoContent(http.StatusInternalServerError)
			}),
		))

		assert.Equal(t, http.StatusInternalServerError, serve(e, "/panic").Code)
		assert.Equal(t, "test panic", recovered)
	})

	t.Run("does not recover from panic when disabled", func(t *testing.T) {
		app := newTestApp(t)

		e := echo.New()
		e.Use(ContextMiddleware(app.Application))
		e.GET("/panic", Handle(app, (*testController).Panic, WithPanicRecovery(false)))

		assert.Panics(t, func() { serve(e, "/panic") })
	})
}

func TestDefaultConfig(t *testing.T) {
	t.Run("default error handler returns HTTPError", func(t *testing.T) {
		cfg := defaultConfig()

		e := echo.New()
		e.GET("/test", func(c echo.Context) error {
			return cfg.ErrorHandler(c, errors.New("test error"))
		})

		assert.Equal(t, http.StatusInternalServerError, serve(e, "/test").Code)
	})
}

func TestDefaultHandlerConfig(t *testing.T) {
	t.Run("panic recovery disabled by default", func(t *testing.T) {
		cfg := defaultHandlerConfig()
		assert.False(t, cfg.PanicRecovery)
	})

	t.Run("default handlers return HTTPError", func(t *testing.T) {
		cfg := defaultHandlerConfig()
		cfg.fillDefaults()

		var httpErr *echo.HTTPError
		require.True(t, errors.As(cfg.PanicHandler(nil, "boom"), &httpErr))
		assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
		require.True(t, errors.As(cfg.ContextErrorHandler(nil, ErrNoContextID), &httpErr))
		assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
		require.True(t, errors.As(cfg.ResolutionErrorHandler(nil, errors.New("x")), &httpErr))
		assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
	})
}
