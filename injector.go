package nestor

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime/debug"
	"sync"
	"time"

	"github.com/junioryono/nestor/internal/graph"
	"github.com/junioryono/nestor/internal/reflection"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// actorKey carries the cell whose construction is running in a context.
type actorKey struct{}

func withActor(ctx context.Context, key cellKey) context.Context {
	return context.WithValue(ctx, actorKey{}, key)
}

func actorFrom(ctx context.Context) (cellKey, bool) {
	key, ok := ctx.Value(actorKey{}).(cellKey)
	return key, ok
}

// Injector constructs instances. It resolves the dependencies of a wrapper in
// the module that hosts it, constructs each cell at most once and records which
// construction waits on which, so that a cycle fails instead of deadlocking.
type Injector struct {
	logger *zap.Logger
	waits  *graph.WaitGraph[cellKey]

	disposables *lifecycleManager
	scopedMu    sync.Mutex
	scoped      map[string]*lifecycleManager // by context id
	onResolved  func(token Token, instance any, duration time.Duration)
	onError     func(token Token, err error)
}

func newInjector(logger *zap.Logger) *Injector {
	return &Injector{
		logger:      logger,
		waits:       graph.NewWaitGraph(func(k cellKey) string { return k.String() }),
		disposables: newLifecycleManager(),
		scoped:      make(map[string]*lifecycleManager),
	}
}

// tracker returns the lifecycle manager of the context a cell belongs to.
func (i *Injector) tracker(contextID string) *lifecycleManager {
	if contextID == "" {
		return i.disposables
	}

	i.scopedMu.Lock()
	defer i.scopedMu.Unlock()

	m, ok := i.scoped[contextID]
	if !ok {
		m = newLifecycleManager()
		i.scoped[contextID] = m
	}
	return m
}

// releaseContext disposes the instances created for cid.
func (i *Injector) releaseContext(ctx context.Context, cid ContextID) error {
	i.scopedMu.Lock()
	m, ok := i.scoped[cid.ID]
	delete(i.scoped, cid.ID)
	i.scopedMu.Unlock()

	if !ok {
		return nil
	}
	return m.dispose(ctx)
}

// dispose disposes the instances of every context still alive, then the
// static ones.
func (i *Injector) dispose(ctx context.Context) error {
	i.scopedMu.Lock()
	scoped := i.scoped
	i.scoped = make(map[string]*lifecycleManager)
	i.scopedMu.Unlock()

	if len(scoped) == 0 {
		return i.disposables.dispose(ctx)
	}

	var errs []error
	for _, m := range scoped {
		errs = append(errs, m.dispose(ctx))
	}
	errs = append(errs, i.disposables.dispose(ctx))
	return errors.Join(errs...)
}

// resolvedHost is the outcome of resolving one dependency.
type resolvedHost struct {
	wrapper *InstanceWrapper
	value   reflect.Value

	// pending is set when the dependency is a forward reference still under
	// construction that has no placeholder. The consumer waits for it.
	pending *instanceCell
}

// resolvedProperty is an injected field value ready to be set.
type resolvedProperty struct {
	field reflection.FieldInfo
	value reflect.Value
}

// LoadPrototype allocates the placeholder of w in the static context.
func (i *Injector) LoadPrototype(w *InstanceWrapper) {
	w.createPrototype(StaticContext)
}

// LoadProvider constructs provider w of module m, then its enhancers.
func (i *Injector) LoadProvider(ctx context.Context, w *InstanceWrapper, m *Module, cid ContextID, inquirer *InstanceWrapper) error {
	if err := i.LoadInstance(ctx, w, m.providers, m, cid, inquirer); err != nil {
		return err
	}
	return i.LoadEnhancersPerContext(ctx, w, m, cid)
}

// LoadInjectable constructs injectable w of module m.
func (i *Injector) LoadInjectable(ctx context.Context, w *InstanceWrapper, m *Module, cid ContextID, inquirer *InstanceWrapper) error {
	return i.LoadInstance(ctx, w, m.injectables, m, cid, inquirer)
}

// LoadController constructs controller w of module m, then its enhancers.
func (i *Injector) LoadController(ctx context.Context, w *InstanceWrapper, m *Module, cid ContextID) error {
	if err := i.LoadInstance(ctx, w, m.controllers, m, cid, w); err != nil {
		return err
	}
	return i.LoadEnhancersPerContext(ctx, w, m, cid)
}

// LoadEnhancersPerContext constructs the enhancers attached to w.
func (i *Injector) LoadEnhancersPerContext(ctx context.Context, w *InstanceWrapper, m *Module, cid ContextID) error {
	for _, token := range w.enhancers {
		enhancer, ok := m.injectables.Get(token)
		if !ok {
			continue
		}
		if err := i.LoadInjectable(ctx, enhancer, m, cid, w); err != nil {
			return err
		}
	}
	return nil
}

// LoadPerContext constructs w for cid, with w as its own inquirer, and returns
// the instance.
func (i *Injector) LoadPerContext(ctx context.Context, w *InstanceWrapper, m *Module, cid ContextID) (reflect.Value, error) {
	collection := m.collectionOf(w)
	if err := i.LoadInstance(ctx, w, collection, m, cid, w); err != nil {
		return reflect.Value{}, err
	}
	if collection != nil && (collection == m.providers || collection == m.controllers) {
		if err := i.LoadEnhancersPerContext(ctx, w, m, cid); err != nil {
			return reflect.Value{}, err
		}
	}

	v, _ := w.lookupCell(cid, inquirerID(w))
	return v, nil
}

// LoadInstance makes sure the cell of w for (cid, inquirer) is resolved.
// Concurrent callers for the same cell wait for the first one.
func (i *Injector) LoadInstance(
	ctx context.Context,
	w *InstanceWrapper,
	collection *orderedmap.OrderedMap[Token, *InstanceWrapper],
	m *Module,
	cid ContextID,
	inquirer *InstanceWrapper,
) error {
	if collection == nil {
		return RuntimeError{Message: fmt.Sprintf("%s is not registered in module %s", w.name, m.Name())}
	}
	if got, ok := collection.Get(w.token); !ok || got != w {
		return RuntimeError{Message: fmt.Sprintf("%s is not registered in module %s", w.name, m.Name())}
	}

	treeStatic := w.isDependencyTreeStatic()
	w.mu.Lock()
	c := w.cell(cid, inquirerID(inquirer), treeStatic)
	key := c.key
	w.mu.Unlock()

	if actor, ok := actorFrom(ctx); ok {
		if err := i.waits.AddEdge(actor, key); err != nil {
			return err
		}
		defer i.waits.RemoveEdge(actor, key)
	}

	w.mu.Lock()
	switch {
	case c.resolved:
		w.mu.Unlock()
		return nil
	case c.err != nil:
		err := c.err
		w.mu.Unlock()
		return err
	case c.pending:
		done := c.done
		w.mu.Unlock()
		return i.wait(ctx, w, c, done)
	}
	c.pending = true
	c.done = make(chan struct{})
	w.mu.Unlock()

	start := time.Now()
	v, err := i.construct(withActor(ctx, key), w, m, cid, inquirer)
	if err != nil {
		i.fail(w, c, err)
		return err
	}
	i.complete(w, c, v, time.Since(start))
	return nil
}

// construct resolves the dependencies of w and invokes it. A wrapper that does
// not belong to cid resolves to no instance once its dependencies are known.
func (i *Injector) construct(ctx context.Context, w *InstanceWrapper, m *Module, cid ContextID, inquirer *InstanceWrapper) (reflect.Value, error) {
	var instance reflect.Value
	err := i.ResolveConstructorParams(ctx, w, m, w.inject, func(args []reflect.Value) error {
		props, err := i.ResolveProperties(ctx, w, m, cid, inquirer)
		if err != nil {
			return err
		}

		v, constructed, err := i.InstantiateClass(ctx, args, w, cid, inquirer)
		if err != nil || !constructed {
			return err
		}
		if err := i.ApplyProperties(w, v, props); err != nil {
			return err
		}
		instance = v
		return nil
	}, cid, inquirer)
	return instance, err
}

// complete publishes v. A placeholder that was handed out receives the fields
// of v, so every holder observes the finished instance.
func (i *Injector) complete(w *InstanceWrapper, c *instanceCell, v reflect.Value, d time.Duration) {
	w.mu.Lock()
	if v.IsValid() && c.placeholder.IsValid() && (c.exposed || w.IsForwardRef()) &&
		v.Type() == c.placeholder.Type() && !v.IsNil() {
		c.placeholder.Elem().Set(v.Elem())
		v = c.placeholder
	}
	c.instance = v
	w.mu.Unlock()

	// Tracked before waiters are released, so dependents are disposed first.
	if v.IsValid() && (w.kind == ClassProvider || w.kind == FactoryProvider) {
		i.tracker(c.key.context).track(v.Interface())
	}

	w.mu.Lock()
	c.resolved = true
	c.pending = false
	close(c.done)
	w.mu.Unlock()

	if !v.IsValid() {
		return
	}

	if ce := i.logger.Check(zap.DebugLevel, "instance created"); ce != nil {
		ce.Write(
			zap.String("token", w.name),
			zap.String("module", w.host.Name()),
			zap.Stringer("scope", w.scope),
			zap.String("context", c.key.context),
			zap.Duration("duration", d),
		)
	}

	if i.onResolved != nil {
		i.onResolved(w.token, v.Interface(), d)
	}
}

// fail records err on the cell. Failures are sticky.
func (i *Injector) fail(w *InstanceWrapper, c *instanceCell, err error) {
	w.mu.Lock()
	c.err = err
	c.pending = false
	close(c.done)
	w.mu.Unlock()

	if i.onError != nil {
		i.onError(w.token, err)
	}
}

// wait blocks until the cell is settled or ctx is done.
func (i *Injector) wait(ctx context.Context, w *InstanceWrapper, c *instanceCell, done chan struct{}) error {
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return c.err
}

// awaitPending waits for a forward-referenced cell, recording the wait.
func (i *Injector) awaitPending(ctx context.Context, w *InstanceWrapper, c *instanceCell) error {
	w.mu.Lock()
	done := c.done
	key := c.key
	w.mu.Unlock()
	if done == nil {
		return nil
	}

	if actor, ok := actorFrom(ctx); ok {
		if err := i.waits.AddEdge(actor, key); err != nil {
			return err
		}
		defer i.waits.RemoveEdge(actor, key)
	}
	return i.wait(ctx, w, c, done)
}

// ResolveConstructorParams resolves the dependencies of w in module m and calls
// onReady with their instances. inject overrides the reflected parameter
// tokens. Dependencies are resolved concurrently.
func (i *Injector) ResolveConstructorParams(
	ctx context.Context,
	w *InstanceWrapper,
	m *Module,
	inject []Token,
	onReady func(args []reflect.Value) error,
	cid ContextID,
	inquirer *InstanceWrapper,
) error {
	if !cid.IsStatic() {
		if deps, ok := w.ctorMetadata(); ok {
			args, err := i.loadCtorMetadata(ctx, w, deps, cid)
			if err != nil {
				return err
			}
			return onReady(args)
		}
	}

	tokens := dependencyTokens(w, inject)
	names := make([]string, len(tokens))
	for idx, t := range tokens {
		names[idx] = dependencyName(t)
	}

	hosts := make([]resolvedHost, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	for idx, param := range tokens {
		g.Go(func() error {
			depCtx := DependencyContext{Index: idx, Dependencies: names}
			host, err := i.ResolveSingleParam(gctx, w, param, depCtx, m, cid)
			if err != nil {
				if w.optional[idx] {
					return nil
				}
				return err
			}
			hosts[idx] = host
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	deferred := false
	for _, host := range hosts {
		if host.pending == nil {
			continue
		}
		deferred = true
		if err := i.awaitPending(ctx, host.wrapper, host.pending); err != nil {
			return err
		}
	}
	if deferred {
		return i.ResolveConstructorParams(ctx, w, m, inject, onReady, cid, inquirer)
	}

	deps := make([]*InstanceWrapper, len(hosts))
	args := make([]reflect.Value, len(hosts))
	for idx, host := range hosts {
		deps[idx] = host.wrapper
		args[idx] = host.value
	}
	w.recordCtorMetadata(deps)

	return onReady(args)
}

// ResolveSingleParam resolves one parameter token of w.
func (i *Injector) ResolveSingleParam(
	ctx context.Context,
	w *InstanceWrapper,
	param Token,
	depCtx DependencyContext,
	m *Module,
	cid ContextID,
) (resolvedHost, error) {
	token, forward := unwrapToken(param)
	if forward {
		w.forwardRef.Store(true)
	}
	if token == nil {
		return resolvedHost{}, UndefinedDependencyError{Owner: w.name, Module: m.Name(), Context: depCtx}
	}
	depCtx.Name = tokenName(token)

	dep, err := i.LookupComponent(m, token, depCtx, w)
	if err != nil {
		return resolvedHost{}, err
	}
	return i.ResolveComponentHost(ctx, m, dep, cid, w, forward)
}

// ResolveComponentHost makes sure dep is available to inquirer in cid. A forward
// reference to a construction in progress yields its placeholder.
func (i *Injector) ResolveComponentHost(
	ctx context.Context,
	m *Module,
	dep *InstanceWrapper,
	cid ContextID,
	inquirer *InstanceWrapper,
	forward bool,
) (resolvedHost, error) {
	treeStatic := dep.isDependencyTreeStatic()

	dep.mu.Lock()
	c := dep.cell(cid, inquirerID(inquirer), treeStatic)
	switch {
	case c.resolved:
		v := c.instance
		dep.mu.Unlock()
		return resolvedHost{wrapper: dep, value: v}, nil
	case c.err != nil:
		err := c.err
		dep.mu.Unlock()
		return resolvedHost{}, err
	case c.pending && (forward || dep.IsForwardRef()):
		if c.placeholder.IsValid() {
			c.exposed = true
			v := c.placeholder
			dep.mu.Unlock()
			return resolvedHost{wrapper: dep, value: v}, nil
		}
		dep.mu.Unlock()
		return resolvedHost{wrapper: dep, pending: c}, nil
	}
	dep.mu.Unlock()

	if err := i.LoadProvider(ctx, dep, dep.host, cid, inquirer); err != nil {
		return resolvedHost{}, err
	}

	dep.mu.Lock()
	v := c.value()
	dep.mu.Unlock()
	return resolvedHost{wrapper: dep, value: v}, nil
}

// loadCtorMetadata resolves recorded dependencies in a non-static context.
func (i *Injector) loadCtorMetadata(ctx context.Context, w *InstanceWrapper, deps []*InstanceWrapper, cid ContextID) ([]reflect.Value, error) {
	args := make([]reflect.Value, len(deps))
	g, gctx := errgroup.WithContext(ctx)
	for idx, dep := range deps {
		if dep == nil {
			continue
		}
		g.Go(func() error {
			v, err := i.loadRecorded(gctx, w, dep, cid)
			if err != nil {
				return err
			}
			args[idx] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return args, nil
}

// loadRecorded resolves one recorded dependency of w for cid.
func (i *Injector) loadRecorded(ctx context.Context, w, dep *InstanceWrapper, cid ContextID) (reflect.Value, error) {
	host, err := i.ResolveComponentHost(ctx, dep.host, dep, cid, w, w.IsForwardRef())
	if err != nil {
		return reflect.Value{}, err
	}
	if host.pending == nil {
		return host.value, nil
	}

	if err := i.awaitPending(ctx, dep, host.pending); err != nil {
		return reflect.Value{}, err
	}
	v, _ := dep.lookupCell(cid, inquirerID(w))
	return v, nil
}

// LookupComponent finds the wrapper for token visible from module m: its own
// providers first, then the exports of its imports.
func (i *Injector) LookupComponent(m *Module, token Token, depCtx DependencyContext, owner *InstanceWrapper) (*InstanceWrapper, error) {
	if w, ok := m.providers.Get(token); ok {
		return w, nil
	}
	return i.LookupComponentInExports(m, token, depCtx, owner)
}

// LookupComponentInExports searches the imports of m and fails with
// UnknownDependenciesError when no imported module exports token.
func (i *Injector) LookupComponentInExports(m *Module, token Token, depCtx DependencyContext, owner *InstanceWrapper) (*InstanceWrapper, error) {
	if w := i.LookupComponentInImports(m, token, make(map[string]bool)); w != nil {
		return w, nil
	}
	return nil, UnknownDependenciesError{Owner: owner.name, Module: m.Name(), Context: depCtx}
}

// LookupComponentInImports walks the imports of m depth first. A module
// matches when it both exports and owns token; otherwise its own imports are
// searched. The first match wins.
func (i *Injector) LookupComponentInImports(m *Module, token Token, visited map[string]bool) *InstanceWrapper {
	for _, related := range m.Imports() {
		if visited[related.id] {
			continue
		}
		visited[related.id] = true

		if related.HasExport(token) {
			if w, ok := related.Provider(token); ok {
				return w
			}
		}
		if w := i.LookupComponentInImports(related, token, visited); w != nil {
			return w
		}
	}
	return nil
}

// ResolveProperties resolves the injected fields of w.
func (i *Injector) ResolveProperties(ctx context.Context, w *InstanceWrapper, m *Module, cid ContextID, inquirer *InstanceWrapper) ([]resolvedProperty, error) {
	if w.kind != ClassProvider || w.info == nil || len(w.info.Fields) == 0 {
		w.recordPropMetadata([]propertyMetadata{})
		return nil, nil
	}

	if !cid.IsStatic() {
		if recorded, ok := w.propMetadata(); ok {
			return i.loadPropertiesMetadata(ctx, w, recorded, cid)
		}
	}

	fields := w.info.Fields
	props := make([]resolvedProperty, len(fields))
	meta := make([]propertyMetadata, len(fields))

	g, gctx := errgroup.WithContext(ctx)
	for idx, field := range fields {
		g.Go(func() error {
			var token Token = field.Type
			if field.Token != "" {
				token = field.Token
			}
			if field.Token == "" && field.Type.Kind() == reflect.Interface && field.Type.NumMethod() == 0 {
				token = nil
			}

			var param Token = token
			if field.Forward && token != nil {
				param = ForwardRef(func() Token { return token })
			}

			depCtx := DependencyContext{Key: field.Name, Index: -1}
			host, err := i.ResolveSingleParam(gctx, w, param, depCtx, m, cid)
			if err != nil {
				if field.Optional {
					props[idx] = resolvedProperty{field: field}
					meta[idx] = propertyMetadata{field: field}
					return nil
				}
				return err
			}

			if host.pending != nil {
				if err := i.awaitPending(gctx, host.wrapper, host.pending); err != nil {
					return err
				}
				host.value, _ = host.wrapper.lookupCell(cid, inquirerID(w))
			}

			props[idx] = resolvedProperty{field: field, value: host.value}
			meta[idx] = propertyMetadata{field: field, wrapper: host.wrapper}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	w.recordPropMetadata(meta)
	return props, nil
}

func (i *Injector) loadPropertiesMetadata(ctx context.Context, w *InstanceWrapper, recorded []propertyMetadata, cid ContextID) ([]resolvedProperty, error) {
	props := make([]resolvedProperty, len(recorded))
	g, gctx := errgroup.WithContext(ctx)
	for idx, meta := range recorded {
		props[idx] = resolvedProperty{field: meta.field}
		if meta.wrapper == nil {
			continue
		}
		g.Go(func() error {
			v, err := i.loadRecorded(gctx, w, meta.wrapper, cid)
			if err != nil {
				return err
			}
			props[idx].value = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return props, nil
}

// ApplyProperties sets the resolved fields on instance.
func (i *Injector) ApplyProperties(w *InstanceWrapper, instance reflect.Value, props []resolvedProperty) error {
	if len(props) == 0 || !instance.IsValid() || instance.Kind() != reflect.Pointer || instance.IsNil() {
		return nil
	}

	target := instance.Elem()
	for _, prop := range props {
		if !prop.value.IsValid() {
			continue
		}
		field := target.FieldByIndex(prop.field.Index)
		v, err := assignable(prop.value, field.Type())
		if err != nil {
			return ConstructorInvocationError{
				Token:       w.name,
				Constructor: w.info.Type,
				Parameters:  parameterTypes(w.info),
				Cause:       fmt.Errorf("field %s: %w", prop.field.Name, err),
			}
		}
		field.Set(v)
	}
	return nil
}

// InstantiateClass invokes the constructor of w with args when w belongs to
// cid. It reports whether an instance was produced.
func (i *Injector) InstantiateClass(ctx context.Context, args []reflect.Value, w *InstanceWrapper, cid ContextID, inquirer *InstanceWrapper) (reflect.Value, bool, error) {
	if !isInContext(w, cid, inquirer) {
		return reflect.Value{}, false, nil
	}

	switch w.kind {
	case ExistingProvider:
		return args[0], true, nil
	case ValueProvider:
		// RequestToken in a context no request was registered for.
		return reflect.Value{}, true, nil
	}

	v, err := i.invoke(ctx, w, args)
	if err != nil {
		return reflect.Value{}, false, err
	}
	return v, true, nil
}

// invoke calls the constructor of w, converting args to its parameter types.
func (i *Injector) invoke(ctx context.Context, w *InstanceWrapper, args []reflect.Value) (result reflect.Value, err error) {
	info := w.info
	in := make([]reflect.Value, 0, len(args)+1)
	if info.TakesContext {
		in = append(in, reflect.ValueOf(&ctx).Elem())
	}
	for idx, param := range info.Parameters {
		v, convErr := assignable(args[idx], param.Type)
		if convErr != nil {
			return reflect.Value{}, ConstructorInvocationError{
				Token:       w.name,
				Constructor: info.Type,
				Parameters:  parameterTypes(info),
				Cause:       fmt.Errorf("parameter %d: %w", idx, convErr),
			}
		}
		in = append(in, v)
	}

	defer func() {
		if r := recover(); r != nil {
			err = ConstructorPanicError{
				Token:       w.name,
				Constructor: info.Type,
				Panic:       r,
				Stack:       debug.Stack(),
			}
		}
	}()

	out := w.fn.Call(in)
	if info.HasErrorReturn && !out[1].IsNil() {
		return reflect.Value{}, ConstructorInvocationError{
			Token:       w.name,
			Constructor: info.Type,
			Parameters:  parameterTypes(info),
			Cause:       out[1].Interface().(error),
		}
	}
	return out[0], nil
}

// isInContext reports whether w gets an instance in cid. In the static context
// only wrappers with a static dependency tree are constructed, and transient
// ones only for a consumer.
func isInContext(w *InstanceWrapper, cid ContextID, inquirer *InstanceWrapper) bool {
	if !cid.IsStatic() {
		return true
	}
	return w.isDependencyTreeStatic() && !(w.IsTransient() && inquirer == nil)
}

// dependencyTokens returns the tokens w depends on, in parameter order. A
// nil entry marks a parameter whose token cannot be determined.
func dependencyTokens(w *InstanceWrapper, inject []Token) []Token {
	if inject != nil {
		return inject
	}
	if w.info == nil {
		return nil
	}

	tokens := make([]Token, len(w.info.Parameters))
	for idx, param := range w.info.Parameters {
		if t, ok := w.selfParams[idx]; ok {
			tokens[idx] = t
			continue
		}
		if param.Type.Kind() == reflect.Interface && param.Type.NumMethod() == 0 {
			continue
		}
		tokens[idx] = param.Type
	}
	return tokens
}

func dependencyName(t Token) string {
	if t == nil {
		return "?"
	}
	token, _ := unwrapToken(t)
	if token == nil {
		return "?"
	}
	return tokenName(token)
}

func inquirerID(w *InstanceWrapper) string {
	if w == nil {
		return ""
	}
	return w.id
}

// assignable converts v to t. An absent value becomes the zero value of t.
func assignable(v reflect.Value, t reflect.Type) (reflect.Value, error) {
	if !v.IsValid() {
		return reflect.Zero(t), nil
	}
	if v.Kind() == reflect.Interface && !v.IsNil() {
		v = v.Elem()
	}
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Type().ConvertibleTo(t) && v.Kind() == t.Kind() {
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", formatType(v.Type()), formatType(t))
}

func parameterTypes(info *reflection.ConstructorInfo) []reflect.Type {
	out := make([]reflect.Type, len(info.Parameters))
	for idx, p := range info.Parameters {
		out[idx] = p.Type
	}
	return out
}
