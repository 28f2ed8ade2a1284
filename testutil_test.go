package nestor_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/junioryono/nestor"
)

// ============================================================================
// Shared Test Types
// ============================================================================

// TConfig is a plain configuration value.
type TConfig struct {
	DSN string
}

// TRepository depends on TConfig.
type TRepository struct {
	Config *TConfig
}

func NewTRepository(cfg *TConfig) *TRepository {
	return &TRepository{Config: cfg}
}

// TService depends on TRepository.
type TService struct {
	Repo *TRepository
}

func NewTService(repo *TRepository) *TService {
	return &TService{Repo: repo}
}

// TController depends on TService.
type TController struct {
	Service *TService
}

func NewTController(svc *TService) *TController {
	return &TController{Service: svc}
}

// TCounter counts constructions.
type TCounter struct {
	ID int64
}

// counterFactory returns a constructor numbering its instances.
func counterFactory(calls *atomic.Int64) func() *TCounter {
	return func() *TCounter {
		return &TCounter{ID: calls.Add(1)}
	}
}

// slowCounterFactory is counterFactory with a construction delay, which
// widens the window for concurrent callers.
func slowCounterFactory(calls *atomic.Int64, delay time.Duration) func() *TCounter {
	return func() *TCounter {
		time.Sleep(delay)
		return &TCounter{ID: calls.Add(1)}
	}
}

// TCounterConsumer holds a TCounter.
type TCounterConsumer struct {
	Counter *TCounter
}

func NewTCounterConsumer(c *TCounter) *TCounterConsumer {
	return &TCounterConsumer{Counter: c}
}

// TOtherConsumer also holds a TCounter.
type TOtherConsumer struct {
	Counter *TCounter
}

func NewTOtherConsumer(c *TCounter) *TOtherConsumer {
	return &TOtherConsumer{Counter: c}
}

// Circular types.
type (
	TCats struct {
		Dogs *TDogs
	}
	TDogs struct {
		Cats *TCats
	}
)

func NewTCats(d *TDogs) *TCats { return &TCats{Dogs: d} }
func NewTDogs(c *TCats) *TDogs { return &TDogs{Cats: c} }

// Field-injected circular types.
type (
	TLeft struct {
		Right *TRight `inject:"" forward:"true"`
	}
	TRight struct {
		Left *TLeft `inject:"" forward:"true"`
	}
)

func NewTLeft() *TLeft   { return &TLeft{} }
func NewTRight() *TRight { return &TRight{} }

// TFielded receives its dependencies through fields.
type TFielded struct {
	Repo    *TRepository `inject:""`
	Name    string       `inject:"APP_NAME"`
	Missing *TMissing    `inject:"" optional:"true"`
	Plain   *TRepository
}

func NewTFielded() *TFielded { return &TFielded{} }

// TMissing is never provided.
type TMissing struct{}

// TOptional has an optional dependency.
type TOptional struct {
	Missing *TMissing
	Config  *TConfig
}

func NewTOptional(m *TMissing, cfg *TConfig) *TOptional {
	return &TOptional{Missing: m, Config: cfg}
}

// TUndefined takes a parameter whose token cannot be determined.
type TUndefined struct{}

func NewTUndefined(any) *TUndefined { return &TUndefined{} }

// TRequestHandler holds the request of its context id.
type TRequestHandler struct {
	Request any
}

func NewTRequestHandler(req any) *TRequestHandler {
	return &TRequestHandler{Request: req}
}

var errBoom = errors.New("boom")

// TFailing fails to construct.
type TFailing struct{}

func NewTFailing() (*TFailing, error) { return nil, errBoom }

// TPanicking panics while constructing.
type TPanicking struct{}

func NewTPanicking() *TPanicking { panic("constructor exploded") }

// ctxKey is a context key used to check that constructors see the caller's context.
type ctxKey struct{}

// TContextual records a value read from its construction context.
type TContextual struct {
	Value any
}

func NewTContextual(ctx context.Context) *TContextual {
	return &TContextual{Value: ctx.Value(ctxKey{})}
}

// repositoryModule provides TConfig and TRepository and exports the repository.
func repositoryModule(dsn string) *nestor.ModuleDef {
	return nestor.NewModule("RepositoryModule",
		nestor.Providers(
			nestor.Value(nestor.TokenOf[*TConfig](), &TConfig{DSN: dsn}),
			NewTRepository,
		),
		nestor.Exports(nestor.TokenOf[*TRepository]()),
	)
}
