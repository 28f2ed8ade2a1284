package nestor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/junioryono/nestor/internal/graph"
	"go.uber.org/zap"
)

// Application is a resolved module graph. It is created by New, which scans
// the graph from the root module and constructs every static instance.
//
// Example:
//
//	app, err := nestor.New(ctx, AppModule)
//	if err != nil {
//	    return err
//	}
//	defer app.Close(ctx)
//
//	if err := app.Init(ctx); err != nil {
//	    return err
//	}
//
//	users, err := nestor.Get[*UsersService](app)
type Application struct {
	container *Container
	root      *Module
	hooks     *hookDispatcher
	logger    *zap.Logger

	mu          sync.Mutex
	initialized bool
}

// New scans the module graph rooted at root and constructs the static
// instances of every module.
func New(ctx context.Context, root Import, opts ...Option) (*Application, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	options := newAppOptions(opts)
	logger := options.logger

	container := newContainer(logger)
	container.injector.onResolved = options.onResolved
	container.injector.onError = options.onError
	if options.globalPrefix != "" {
		container.config.SetGlobalPrefix(options.globalPrefix)
	}

	if err := newScanner(container, logger).Scan(ctx, root); err != nil {
		return nil, err
	}

	rootModule, err := moduleOf(ctx, container, root)
	if err != nil {
		return nil, err
	}

	if err := newInstanceLoader(container, logger).CreateInstancesOfDependencies(ctx); err != nil {
		return nil, err
	}

	logger.Info("application created",
		zap.String("root", rootModule.Name()),
		zap.Int("modules", container.modules.Len()),
	)

	return &Application{
		container: container,
		root:      rootModule,
		hooks:     &hookDispatcher{container: container, logger: logger},
		logger:    logger,
	}, nil
}

// Get returns the static instance registered under token. It searches every
// module unless Strict is given, in which case only the root module is searched.
// Request-scoped and transient providers fail with InvalidClassScopeError.
func (a *Application) Get(token Token, opts ...LookupOption) (any, error) {
	o := newLookupOptions(opts)
	var scope *Module
	if o.isStrict(false) {
		scope = a.root
	}
	return getStatic(a.container, scope, token)
}

// Resolve returns the instance registered under token for a context id. The
// id comes from WithContextID, then from ctx, and defaults to one id fixed for
// the application. Instances are constructed at most once per context id and
// are kept until ReleaseContext is called for it.
func (a *Application) Resolve(ctx context.Context, token Token, opts ...LookupOption) (any, error) {
	o := newLookupOptions(opts)
	var scope *Module
	if o.isStrict(false) {
		scope = a.root
	}
	return resolveDynamic(ctx, a.container, scope, token, o)
}

// Select returns a reference to the module declared by imp.
func (a *Application) Select(imp Import) (*ModuleRef, error) {
	if a.container.closed.Load() {
		return nil, ErrApplicationClosed
	}
	m, err := moduleOf(context.Background(), a.container, imp)
	if err != nil {
		return nil, err
	}
	return newModuleRef(a.container, m), nil
}

// RegisterRequestByContextID makes request the value of RequestToken for id.
func (a *Application) RegisterRequestByContextID(request any, id ContextID) {
	if w, ok := a.container.coreModule.Provider(RequestToken); ok {
		w.setInstanceByContextID(id, request)
	}
}

// ReleaseContext drops the instances created for id and disposes the
// disposable ones in reverse creation order. Resolving for id afterwards
// constructs new instances. Releasing the static context does nothing.
func (a *Application) ReleaseContext(ctx context.Context, id ContextID) error {
	if id.IsStatic() {
		return nil
	}

	a.container.releaseContext(id)
	err := a.container.injector.releaseContext(ctx, id)

	a.logger.Debug("context released", zap.String("context", id.String()))
	return err
}

// Init runs the OnModuleInit hooks, then the OnApplicationBootstrap hooks.
// Calling it again after it succeeded does nothing.
func (a *Application) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.container.closed.Load() {
		return ErrApplicationClosed
	}
	if a.initialized {
		return nil
	}

	if err := a.hooks.callInit(ctx); err != nil {
		return err
	}
	if err := a.hooks.callBootstrap(ctx); err != nil {
		return err
	}

	a.initialized = true
	a.logger.Info("application initialized")
	return nil
}

// Close shuts the application down without a signal. See Shutdown.
func (a *Application) Close(ctx context.Context) error {
	return a.Shutdown(ctx, "")
}

// Shutdown runs the OnModuleDestroy, BeforeApplicationShutdown and
// OnApplicationShutdown hooks, then disposes instances in reverse creation
// order. A failing hook stops the hooks but not the disposal. Calling it on a
// closed application does nothing.
func (a *Application) Shutdown(ctx context.Context, signal string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.container.closed.Load() {
		return nil
	}

	hookErr := a.hooks.callDestroy(ctx)
	if hookErr == nil {
		hookErr = a.hooks.callBeforeShutdown(ctx, signal)
	}
	if hookErr == nil {
		hookErr = a.hooks.callShutdown(ctx, signal)
	}

	a.container.closed.Store(true)
	disposeErr := a.container.injector.dispose(ctx)

	a.logger.Info("application closed", zap.String("signal", signal))
	return errors.Join(hookErr, disposeErr)
}

// Modules returns every module in registration order.
func (a *Application) Modules() []*Module {
	return a.container.Modules()
}

// ApplicationConfig returns the cross-cutting configuration.
func (a *Application) ApplicationConfig() *ApplicationConfig {
	return a.container.ApplicationConfig()
}

// WriteModuleGraph writes the import graph in format "dot" or "text".
func (a *Application) WriteModuleGraph(w io.Writer, format string) error {
	modules := a.container.Modules()
	nodes := make([]graph.ModuleNode, 0, len(modules))
	for _, m := range modules {
		node := graph.ModuleNode{
			Token:  m.token,
			Name:   m.Name(),
			Global: m.global,
		}
		for _, p := range m.Providers() {
			node.Providers = append(node.Providers, p.name)
		}
		for _, c := range m.Controllers() {
			node.Controllers = append(node.Controllers, c.name)
		}
		for _, t := range m.Exports() {
			node.Exports = append(node.Exports, tokenName(t))
		}
		for _, imported := range m.Imports() {
			node.Imports = append(node.Imports, imported.token)
		}
		nodes = append(nodes, node)
	}

	v := graph.NewVisualizer(nodes)
	switch format {
	case "dot":
		return v.WriteDOT(w)
	case "text":
		return v.WriteText(w)
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}
}

func getStatic(c *Container, scope *Module, token Token) (any, error) {
	if c.closed.Load() {
		return nil, ErrApplicationClosed
	}

	w, err := c.find(token, scope)
	if err != nil {
		return nil, err
	}
	if !w.IsStatic() {
		return nil, InvalidClassScopeError{Token: w.name}
	}

	instance, _ := w.staticInstance()
	return instance, nil
}

func resolveDynamic(ctx context.Context, c *Container, scope *Module, token Token, o *lookupOptions) (any, error) {
	if c.closed.Load() {
		return nil, ErrApplicationClosed
	}
	if ctx == nil {
		ctx = context.Background()
	}

	w, err := c.find(token, scope)
	if err != nil {
		return nil, err
	}

	cid := o.resolveContext(ctx, c.defaultContext)
	v, err := c.injector.LoadPerContext(ctx, w, w.host, cid)
	if err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return nil, nil
	}
	return v.Interface(), nil
}

// moduleOf returns the registered module declared by imp.
func moduleOf(ctx context.Context, c *Container, imp Import) (*Module, error) {
	if isNilImport(imp) {
		return nil, ErrRootModuleNil
	}

	factory, err := c.compiler.Compile(ctx, imp, nil)
	if err != nil {
		return nil, err
	}
	if m, ok := c.ModuleByToken(factory.Token); ok {
		return m, nil
	}

	// Single-scope modules are registered under a token that depends on the
	// import path; fall back to the first module with the same declaration.
	for _, m := range c.Modules() {
		if m.def == factory.Type {
			return m, nil
		}
	}
	return nil, UnknownModuleError{Module: factory.Type.Name()}
}
