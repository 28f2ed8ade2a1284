// Package benchmarks compares nestor with other DI libraries.
//
// Run benchmarks with: go test -bench=. -benchmem ./benchmarks/
package benchmarks

import (
	"context"
	"testing"

	"github.com/junioryono/nestor"
	"github.com/samber/do/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/dig"
)

// =============================================================================
// Shared Test Types
// =============================================================================

type Logger struct {
	Name string
}

func NewLogger() *Logger {
	return &Logger{Name: "logger"}
}

type Config struct {
	Value string
}

func NewConfig() *Config {
	return &Config{Value: "config"}
}

type Database struct {
	Logger *Logger
	Config *Config
}

func NewDatabase(logger *Logger, config *Config) *Database {
	return &Database{Logger: logger, Config: config}
}

type Cache struct {
	Logger   *Logger
	Config   *Config
	Database *Database
}

func NewCache(logger *Logger, config *Config, db *Database) *Cache {
	return &Cache{Logger: logger, Config: config, Database: db}
}

type Metrics struct {
	Value int
}

func NewMetrics() *Metrics {
	return &Metrics{Value: 5}
}

// UserService has five dependencies.
type UserService struct {
	Logger   *Logger
	Config   *Config
	Database *Database
	Cache    *Cache
	Metrics  *Metrics
}

func NewUserService(logger *Logger, config *Config, db *Database, cache *Cache, metrics *Metrics) *UserService {
	return &UserService{Logger: logger, Config: config, Database: db, Cache: cache, Metrics: metrics}
}

// =============================================================================
// Container Setup
// =============================================================================

// appModule splits the graph over three modules the way an application would.
func appModule() *nestor.ModuleDef {
	infra := nestor.NewModule("InfraModule",
		nestor.Providers(NewLogger, NewConfig, NewMetrics),
		nestor.Exports(
			nestor.TokenOf[*Logger](),
			nestor.TokenOf[*Config](),
			nestor.TokenOf[*Metrics](),
		),
		nestor.Global(),
	)
	storage := nestor.NewModule("StorageModule",
		nestor.Providers(NewDatabase, NewCache),
		nestor.Exports(nestor.TokenOf[*Database](), nestor.TokenOf[*Cache]()),
	)
	return nestor.NewModule("AppModule",
		nestor.Imports(infra, storage),
		nestor.Providers(NewUserService),
	)
}

func newApp(tb testing.TB) *nestor.Application {
	tb.Helper()

	app, err := nestor.New(context.Background(), appModule())
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func newDigContainer() *dig.Container {
	c := dig.New()
	_ = c.Provide(NewLogger)
	_ = c.Provide(NewConfig)
	_ = c.Provide(NewDatabase)
	_ = c.Provide(NewCache)
	_ = c.Provide(NewMetrics)
	_ = c.Provide(NewUserService)
	return c
}

func newDoInjector() *do.RootScope {
	injector := do.New()
	do.Provide(injector, func(i do.Injector) (*Logger, error) { return NewLogger(), nil })
	do.Provide(injector, func(i do.Injector) (*Config, error) { return NewConfig(), nil })
	do.Provide(injector, func(i do.Injector) (*Metrics, error) { return NewMetrics(), nil })
	do.Provide(injector, func(i do.Injector) (*Database, error) {
		return NewDatabase(do.MustInvoke[*Logger](i), do.MustInvoke[*Config](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*Cache, error) {
		return NewCache(do.MustInvoke[*Logger](i), do.MustInvoke[*Config](i), do.MustInvoke[*Database](i)), nil
	})
	do.Provide(injector, func(i do.Injector) (*UserService, error) {
		return NewUserService(
			do.MustInvoke[*Logger](i),
			do.MustInvoke[*Config](i),
			do.MustInvoke[*Database](i),
			do.MustInvoke[*Cache](i),
			do.MustInvoke[*Metrics](i),
		), nil
	})
	return injector
}

// TestEquivalentGraphs makes sure every container builds the same object graph.
func TestEquivalentGraphs(t *testing.T) {
	app := newApp(t)
	fromNestor := nestor.MustGet[*UserService](app)
	require.Same(t, fromNestor.Logger, fromNestor.Database.Logger)
	require.Same(t, fromNestor.Database, fromNestor.Cache.Database)

	var fromDig *UserService
	require.NoError(t, newDigContainer().Invoke(func(u *UserService) { fromDig = u }))
	require.Same(t, fromDig.Database, fromDig.Cache.Database)

	injector := newDoInjector()
	fromDo := do.MustInvoke[*UserService](injector)
	require.Same(t, fromDo.Database, fromDo.Cache.Database)
	injector.Shutdown()

	require.Equal(t, fromNestor.Config.Value, fromDig.Config.Value)
	require.Equal(t, fromNestor.Metrics.Value, fromDo.Metrics.Value)
}

// =============================================================================
// Build Benchmarks
// =============================================================================

func BenchmarkBuild_Nestor(b *testing.B) {
	ctx := context.Background()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		app, _ := nestor.New(ctx, appModule())
		_ = app.Close(ctx)
	}
}

func BenchmarkBuild_Dig(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		c := newDigContainer()
		_ = c.Invoke(func(*UserService) {})
	}
}

func BenchmarkBuild_Do(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		injector := newDoInjector()
		_ = do.MustInvoke[*UserService](injector)
		injector.Shutdown()
	}
}

// =============================================================================
// Static Resolution Benchmarks
// =============================================================================

func BenchmarkGet_Nestor(b *testing.B) {
	app := newApp(b)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = nestor.MustGet[*UserService](app)
	}
}

func BenchmarkGet_Nestor_Strict(b *testing.B) {
	app := newApp(b)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = nestor.MustGet[*UserService](app, nestor.Strict())
	}
}

func BenchmarkGet_Dig(b *testing.B) {
	c := newDigContainer()
	_ = c.Invoke(func(*UserService) {})

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = c.Invoke(func(*UserService) {})
	}
}

func BenchmarkGet_Do(b *testing.B) {
	injector := newDoInjector()
	defer injector.Shutdown()
	_ = do.MustInvoke[*UserService](injector)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = do.MustInvoke[*UserService](injector)
	}
}

// =============================================================================
// Transient Resolution Benchmarks (New Instance Each Time)
// =============================================================================

func BenchmarkResolve_Transient_Nestor(b *testing.B) {
	app := newApp(b)
	ref := nestor.MustGet[*nestor.ModuleRef](app)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = ref.Create(ctx, NewLogger)
	}
}

func BenchmarkResolve_Transient_Do(b *testing.B) {
	injector := do.New()
	defer injector.Shutdown()
	do.ProvideTransient(injector, func(i do.Injector) (*Logger, error) { return NewLogger(), nil })

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = do.MustInvoke[*Logger](injector)
	}
}

// Dig has no transient providers.

// =============================================================================
// Concurrent Resolution Benchmarks
// =============================================================================

func BenchmarkGet_Concurrent_Nestor(b *testing.B) {
	app := newApp(b)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = nestor.MustGet[*UserService](app)
		}
	})
}

func BenchmarkGet_Concurrent_Dig(b *testing.B) {
	c := newDigContainer()
	_ = c.Invoke(func(*UserService) {})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = c.Invoke(func(*UserService) {})
		}
	})
}

func BenchmarkGet_Concurrent_Do(b *testing.B) {
	injector := newDoInjector()
	defer injector.Shutdown()
	_ = do.MustInvoke[*UserService](injector)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = do.MustInvoke[*UserService](injector)
		}
	})
}

// =============================================================================
// Request Context Benchmarks
// =============================================================================

func requestApp(tb testing.TB) *nestor.Application {
	tb.Helper()

	root := nestor.NewModule("AppModule",
		nestor.Providers(
			NewLogger,
			nestor.Class(NewConfig, nestor.WithScope(nestor.Request)),
			NewDatabase,
		),
	)
	app, err := nestor.New(context.Background(), root)
	require.NoError(tb, err)
	tb.Cleanup(func() { _ = app.Close(context.Background()) })
	return app
}

func BenchmarkRequest_Resolve_Nestor(b *testing.B) {
	app := requestApp(b)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		id := nestor.NewContextID()
		ctx := nestor.WithContextIDValue(context.Background(), id)
		_ = nestor.MustResolve[*Database](ctx, app)
		_ = app.ReleaseContext(ctx, id)
	}
}

func BenchmarkRequest_Resolve_Concurrent_Nestor(b *testing.B) {
	app := requestApp(b)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			id := nestor.NewContextID()
			ctx := nestor.WithContextIDValue(context.Background(), id)
			_ = nestor.MustResolve[*Database](ctx, app)
			_ = app.ReleaseContext(ctx, id)
		}
	})
}
