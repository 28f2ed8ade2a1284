package nestor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compilerConfig struct {
	URL  string
	Pool int
}

type compilerSecret struct {
	dsn string
}

func TestModuleCompiler_Token(t *testing.T) {
	t.Parallel()

	c := &moduleCompiler{}
	ctx := context.Background()
	def := NewModule("DatabaseModule")

	forRoot := func(cfg compilerConfig) *DynamicModule {
		return &DynamicModule{
			Module:    def,
			Providers: []any{Value("DB_CONFIG", cfg)},
			Exports:   []Token{"DB_CONFIG"},
		}
	}

	compile := func(t *testing.T, imp Import, scope ...*ModuleDef) *ModuleFactory {
		t.Helper()
		f, err := c.Compile(ctx, imp, scope)
		require.NoError(t, err)
		return f
	}

	t.Run("static module is stable", func(t *testing.T) {
		t.Parallel()

		a := compile(t, def)
		b := compile(t, def, NewModule("Parent"))
		assert.Equal(t, a.Token, b.Token)
		assert.Len(t, a.Token, 16)
		assert.Same(t, def, a.Type)
		assert.Nil(t, a.DynamicMetadata)
	})

	t.Run("structurally equal dynamic modules", func(t *testing.T) {
		t.Parallel()

		a := compile(t, forRoot(compilerConfig{URL: "postgres://", Pool: 4}))
		b := compile(t, forRoot(compilerConfig{URL: "postgres://", Pool: 4}))
		assert.Equal(t, a.Token, b.Token)
		assert.NotNil(t, a.DynamicMetadata)
	})

	t.Run("different dynamic modules", func(t *testing.T) {
		t.Parallel()

		a := compile(t, forRoot(compilerConfig{URL: "postgres://", Pool: 4}))
		b := compile(t, forRoot(compilerConfig{URL: "postgres://", Pool: 8}))
		static := compile(t, def)
		assert.NotEqual(t, a.Token, b.Token)
		assert.NotEqual(t, a.Token, static.Token)

		global := forRoot(compilerConfig{URL: "postgres://", Pool: 4})
		global.Global = true
		assert.NotEqual(t, a.Token, compile(t, global).Token)
	})

	t.Run("unexported fields distinguish dynamic modules", func(t *testing.T) {
		t.Parallel()

		secret := func(dsn string) *DynamicModule {
			return &DynamicModule{
				Module:    def,
				Providers: []any{Value("DB_SECRET", &compilerSecret{dsn: dsn})},
			}
		}
		a := compile(t, secret("a"))
		b := compile(t, secret("b"))
		again := compile(t, secret("a"))
		assert.NotEqual(t, a.Token, b.Token)
		assert.Equal(t, a.Token, again.Token)
	})

	t.Run("single scope depends on the import path", func(t *testing.T) {
		t.Parallel()

		scoped := NewModule("ScopedModule", SingleScope())
		parentA, parentB := NewModule("A"), NewModule("B")

		a := compile(t, scoped, parentA)
		again := compile(t, scoped, parentA)
		b := compile(t, scoped, parentB)
		assert.Equal(t, a.Token, again.Token)
		assert.NotEqual(t, a.Token, b.Token)
	})

	t.Run("forward and deferred imports unwrap", func(t *testing.T) {
		t.Parallel()

		direct := compile(t, def)
		forward := compile(t, ForwardRefModule(func() Import { return def }))
		deferred := compile(t, Deferred(func(context.Context) (Import, error) {
			return ForwardRefModule(func() Import { return def }), nil
		}))
		assert.Equal(t, direct.Token, forward.Token)
		assert.Equal(t, direct.Token, deferred.Token)
	})

	t.Run("invalid imports", func(t *testing.T) {
		t.Parallel()

		_, err := c.Compile(ctx, &DynamicModule{}, nil)
		assert.Error(t, err)

		_, err = c.Compile(ctx, ForwardRefModule(nil), nil)
		assert.Error(t, err)

		boom := errors.New("boom")
		_, err = c.Compile(ctx, Deferred(func(context.Context) (Import, error) { return nil, boom }), nil)
		assert.ErrorIs(t, err, boom)
	})
}

func TestDeferredModule_RunsOnce(t *testing.T) {
	t.Parallel()

	calls := 0
	d := Deferred(func(context.Context) (Import, error) {
		calls++
		return NewModule("Late"), nil
	})

	c := &moduleCompiler{}
	for range 3 {
		_, err := c.Compile(context.Background(), d, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

type closer struct {
	name string
	log  *[]string
	err  error
}

func (c *closer) Close() error {
	*c.log = append(*c.log, c.name)
	return c.err
}

type ctxCloser struct {
	got context.Context
}

func (c *ctxCloser) Close(ctx context.Context) error {
	c.got = ctx
	return nil
}

func TestLifecycleManager(t *testing.T) {
	t.Parallel()

	t.Run("tracks disposables once", func(t *testing.T) {
		t.Parallel()

		var log []string
		m := newLifecycleManager()
		a := &closer{name: "a", log: &log}
		m.track(a)
		m.track(a)
		m.track("not disposable")
		m.track(&closer{name: "b", log: &log})
		assert.Equal(t, 2, m.len())

		require.NoError(t, m.dispose(context.Background()))
		assert.Equal(t, []string{"b", "a"}, log)
		assert.Equal(t, 0, m.len())
	})

	t.Run("context disposables", func(t *testing.T) {
		t.Parallel()

		m := newLifecycleManager()
		c := &ctxCloser{}
		m.track(c)

		ctx := context.WithValue(context.Background(), contextIDKey{}, NewContextID())
		require.NoError(t, m.dispose(ctx))
		assert.Equal(t, ctx, c.got)
	})

	t.Run("collects every failure", func(t *testing.T) {
		t.Parallel()

		var log []string
		first, second := errors.New("first"), errors.New("second")
		m := newLifecycleManager()
		m.track(&closer{name: "a", log: &log, err: first})
		m.track(&closer{name: "b", log: &log, err: second})

		err := m.dispose(context.Background())
		var disposal DisposalError
		require.True(t, errors.As(err, &disposal))
		assert.Len(t, disposal.Errors, 2)
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
		assert.Contains(t, err.Error(), "2 errors")
	})
}

func TestContextID(t *testing.T) {
	t.Parallel()

	assert.True(t, StaticContext.IsStatic())
	assert.Equal(t, "static", StaticContext.String())

	id := NewContextID()
	assert.False(t, id.IsStatic())
	assert.NotEqual(t, id, NewContextID())

	_, ok := ContextIDFromContext(context.Background())
	assert.False(t, ok)

	got, ok := ContextIDFromContext(WithContextIDValue(context.Background(), id))
	require.True(t, ok)
	assert.Equal(t, id, got)

	o := newLookupOptions([]LookupOption{WithContextID(StaticContext)})
	assert.Equal(t, StaticContext, o.resolveContext(WithContextIDValue(context.Background(), id), NewContextID()))

	fallback := NewContextID()
	assert.Equal(t, id, newLookupOptions(nil).resolveContext(WithContextIDValue(context.Background(), id), fallback))
	assert.Equal(t, fallback, newLookupOptions(nil).resolveContext(context.Background(), fallback))
}

func TestApplication_ReleaseContextDropsState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	var log []string
	root := NewModule("AppModule",
		Providers(Class(func() *closer {
			return &closer{name: "session", log: &log}
		}, WithScope(Request))),
	)
	app, err := New(ctx, root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(ctx) })

	w, err := app.container.find(TokenOf[*closer](), nil)
	require.NoError(t, err)

	id := NewContextID()
	_, err = app.Resolve(ctx, TokenOf[*closer](), WithContextID(id))
	require.NoError(t, err)

	w.mu.Lock()
	_, held := w.values[id]
	w.mu.Unlock()
	assert.True(t, held, "instances are kept until the context is released")

	require.NoError(t, app.ReleaseContext(ctx, id))

	w.mu.Lock()
	_, held = w.values[id]
	w.mu.Unlock()
	assert.False(t, held)

	app.container.injector.scopedMu.Lock()
	_, tracked := app.container.injector.scoped[id.ID]
	app.container.injector.scopedMu.Unlock()
	assert.False(t, tracked)
	assert.Equal(t, []string{"session"}, log)
}
