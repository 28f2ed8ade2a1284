package nestor

import (
	"context"
	"sync"
)

// Import is anything that can appear in a module's imports: a *ModuleDef, a
// *DynamicModule, a Deferred module or a ForwardRefModule.
type Import interface {
	importName() string
}

var (
	_ Import = (*ModuleDef)(nil)
	_ Import = (*DynamicModule)(nil)
	_ Import = (*deferredModule)(nil)
	_ Import = (*forwardModuleRef)(nil)
)

// ModuleDef is the static declaration of a module. Modules group providers and
// controllers and decide which of their providers are visible to importers.
type ModuleDef struct {
	name        string
	imports     []Import
	providers   []any
	controllers []any
	exports     []Token
	global      bool
	singleScope bool
	instance    any
}

// ModuleOption represents a declaration within a module.
type ModuleOption func(*ModuleDef)

// NewModule creates a module declaration with the given name and options.
// Modules are identified by name, so two modules of the same application
// must not share a name unless one of them is dynamic.
//
// Example:
//
//	var CatsModule = nestor.NewModule("cats",
//	    nestor.Providers(NewCatsService, nestor.Value("limit", 10)),
//	    nestor.Controllers(NewCatsController),
//	    nestor.Exports(nestor.TokenOf[*CatsService]()),
//	)
//
//	var AppModule = nestor.NewModule("app",
//	    nestor.Imports(CatsModule),
//	)
func NewModule(name string, opts ...ModuleOption) *ModuleDef {
	m := &ModuleDef{name: name}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	return m
}

// Imports adds imported modules.
func Imports(imports ...Import) ModuleOption {
	return func(m *ModuleDef) {
		m.imports = append(m.imports, imports...)
	}
}

// Providers adds providers. Each item is a Provider or a constructor function,
// which is shorthand for Class(constructor).
func Providers(providers ...any) ModuleOption {
	return func(m *ModuleDef) {
		m.providers = append(m.providers, providers...)
	}
}

// Controllers adds controllers. Controllers are declared like providers but are
// never visible to other modules.
func Controllers(controllers ...any) ModuleOption {
	return func(m *ModuleDef) {
		m.controllers = append(m.controllers, controllers...)
	}
}

// Exports makes provider tokens, or imported modules, visible to importers.
func Exports(tokens ...Token) ModuleOption {
	return func(m *ModuleDef) {
		m.exports = append(m.exports, tokens...)
	}
}

// Global makes the module's exports available to every module without importing it.
func Global() ModuleOption {
	return func(m *ModuleDef) {
		m.global = true
	}
}

// SingleScope makes every distinct import path of the module produce its own
// module instance instead of sharing one.
func SingleScope() ModuleOption {
	return func(m *ModuleDef) {
		m.singleScope = true
	}
}

// ModuleInstance sets the constructor of the module's own instance. The
// instance may implement lifecycle hooks, which run after every other
// instance of the module.
func ModuleInstance(constructor any) ModuleOption {
	return func(m *ModuleDef) {
		m.instance = constructor
	}
}

// Name returns the module name.
func (m *ModuleDef) Name() string {
	if m == nil {
		return "<nil>"
	}
	return m.name
}

// IsGlobal reports whether the module was declared Global.
func (m *ModuleDef) IsGlobal() bool {
	return m != nil && m.global
}

func (m *ModuleDef) importName() string {
	return m.Name()
}

// DynamicModule extends a module with metadata computed at runtime, typically
// returned by a ForRoot-style function. Differently configured dynamic modules
// of the same ModuleDef become distinct modules.
type DynamicModule struct {
	Module      *ModuleDef
	Imports     []Import
	Providers   []any
	Controllers []any
	Exports     []Token
	Global      bool
}

func (d *DynamicModule) importName() string {
	if d == nil {
		return "<nil>"
	}
	return d.Module.Name()
}

// deferredModule is a dynamic module that is produced asynchronously.
type deferredModule struct {
	fn func(ctx context.Context) (Import, error)

	once   sync.Once
	result Import
	err    error
}

// Deferred declares an import that is produced by fn when the application is
// scanned. fn runs at most once, even when the import appears several times.
//
// Example:
//
//	nestor.Imports(nestor.Deferred(func(ctx context.Context) (nestor.Import, error) {
//	    opts, err := loadOptions(ctx)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return database.ForRoot(opts), nil
//	}))
func Deferred(fn func(ctx context.Context) (Import, error)) Import {
	return &deferredModule{fn: fn}
}

func (d *deferredModule) importName() string {
	return "Deferred"
}

func (d *deferredModule) await(ctx context.Context) (Import, error) {
	d.once.Do(func() {
		if d.fn == nil {
			d.err = ErrConstructorNil
			return
		}
		d.result, d.err = d.fn(ctx)
	})
	return d.result, d.err
}

// forwardModuleRef defers the evaluation of an import.
type forwardModuleRef struct {
	fn func() Import
}

// ForwardRefModule wraps an import that is not initialized yet, which happens
// when two package-level module variables import each other.
func ForwardRefModule(fn func() Import) Import {
	return &forwardModuleRef{fn: fn}
}

func (f *forwardModuleRef) importName() string {
	return "ForwardRefModule"
}
