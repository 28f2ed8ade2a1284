package digmodule_test

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/junioryono/nestor"
	"github.com/junioryono/nestor/digmodule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
)

type legacyDatabase struct {
	DSN string
}

type legacyCache interface {
	Name() string
}

type memoryCache struct{}

func (memoryCache) Name() string { return "memory" }

type repository struct {
	DB    *legacyDatabase
	Cache legacyCache
}

func newRepository(db *legacyDatabase, cache legacyCache) *repository {
	return &repository{DB: db, Cache: cache}
}

func newApp(t *testing.T, root nestor.Import) *nestor.Application {
	t.Helper()
	app, err := nestor.New(context.Background(), root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("provides values built by dig", func(t *testing.T) {
		t.Parallel()

		c := dig.New()
		calls := 0
		require.NoError(t, c.Provide(func() *legacyDatabase {
			calls++
			return &legacyDatabase{DSN: "postgres://legacy"}
		}))
		require.NoError(t, c.Provide(func() legacyCache { return memoryCache{} }))

		legacy := digmodule.New("LegacyModule", c,
			reflect.TypeFor[*legacyDatabase](),
			reflect.TypeFor[legacyCache](),
		)
		app := newApp(t, nestor.NewModule("AppModule",
			nestor.Imports(legacy),
			nestor.Providers(newRepository),
		))

		repo, err := nestor.Get[*repository](app)
		require.NoError(t, err)
		assert.Equal(t, "postgres://legacy", repo.DB.DSN)
		assert.Equal(t, "memory", repo.Cache.Name())

		var fromDig *legacyDatabase
		require.NoError(t, c.Invoke(func(db *legacyDatabase) { fromDig = db }))
		assert.Same(t, fromDig, repo.DB)
		assert.Equal(t, 1, calls)
	})

	t.Run("missing dig type fails the application", func(t *testing.T) {
		t.Parallel()

		legacy := digmodule.New("LegacyModule", dig.New(), reflect.TypeFor[*legacyDatabase]())
		_, err := nestor.New(context.Background(), nestor.NewModule("AppModule", nestor.Imports(legacy)))

		require.Error(t, err)
		assert.True(t, strings.Contains(err.Error(), "dig container"))

		var invocation nestor.ConstructorInvocationError
		assert.ErrorAs(t, err, &invocation)
	})
}

func TestExport(t *testing.T) {
	t.Parallel()

	t.Run("dig receives nestor instances", func(t *testing.T) {
		t.Parallel()

		app := newApp(t, nestor.NewModule("AppModule",
			nestor.Providers(
				nestor.Value(nestor.TokenOf[*legacyDatabase](), &legacyDatabase{DSN: "nestor"}),
				nestor.Value(nestor.TokenOf[legacyCache](), legacyCache(memoryCache{})),
				newRepository,
			),
		))

		c := dig.New()
		require.NoError(t, digmodule.Export(c, app,
			reflect.TypeFor[*repository](),
			reflect.TypeFor[legacyCache](),
		))

		expected, err := nestor.Get[*repository](app)
		require.NoError(t, err)

		require.NoError(t, c.Invoke(func(repo *repository, cache legacyCache) {
			assert.Same(t, expected, repo)
			assert.Equal(t, "memory", cache.Name())
		}))
	})

	t.Run("unknown types surface on invoke", func(t *testing.T) {
		t.Parallel()

		app := newApp(t, nestor.NewModule("AppModule"))

		c := dig.New()
		require.NoError(t, digmodule.Export(c, app, reflect.TypeFor[*repository]()))

		err := c.Invoke(func(*repository) {})
		require.Error(t, err)

		var unknown nestor.UnknownElementError
		assert.ErrorAs(t, dig.RootCause(err), &unknown)
	})

	t.Run("duplicate types are rejected by dig", func(t *testing.T) {
		t.Parallel()

		app := newApp(t, nestor.NewModule("AppModule"))

		c := dig.New()
		require.NoError(t, c.Provide(func() *repository { return &repository{} }))
		assert.Error(t, digmodule.Export(c, app, reflect.TypeFor[*repository]()))
	})
}
