package nestor

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/junioryono/nestor/internal/reflection"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// cellKey identifies one instance cell in the wait graph.
type cellKey struct {
	wrapper  string
	name     string
	context  string
	inquirer string
}

func (k cellKey) String() string {
	s := k.name
	if k.context != "" {
		s += " [context " + k.context + "]"
	}
	if k.inquirer != "" {
		s += " [inquirer " + k.inquirer + "]"
	}
	return s
}

// instanceCell holds the state of one instance for one (context id, inquirer id) pair.
// Readers always go through the cell, so a placeholder handed out early observes
// the fields merged into it once construction completes.
type instanceCell struct {
	key         cellKey
	instance    reflect.Value
	placeholder reflect.Value
	exposed     bool // placeholder was handed to a consumer
	resolved    bool
	pending     bool
	done        chan struct{}
	err         error
}

// value returns the instance as seen by consumers.
func (c *instanceCell) value() reflect.Value {
	if c.resolved {
		return c.instance
	}
	return c.placeholder
}

// propertyMetadata records the wrapper that satisfied an injected field.
type propertyMetadata struct {
	field   reflection.FieldInfo
	wrapper *InstanceWrapper
}

// InstanceWrapper is the uniform runtime form of a provider, controller or
// injectable. It owns the per-context instance store.
type InstanceWrapper struct {
	id         string
	token      Token
	name       string
	kind       ProviderKind
	scope      Scope
	fn         reflect.Value
	info       *reflection.ConstructorInfo
	inject     []Token
	selfParams map[int]Token
	optional   map[int]bool
	enhancers  []Token
	host       *Module
	forwardRef atomic.Bool

	mu        sync.Mutex
	values    map[ContextID]*instanceCell
	transient map[ContextID]*orderedmap.OrderedMap[string, *instanceCell]

	// Dependencies recorded by the first successful resolution. Non-static
	// contexts reuse them instead of looking tokens up again.
	ctorMeta     []*InstanceWrapper
	ctorRecorded bool
	propMeta     []propertyMetadata
	propRecorded bool
	treeStatic   *bool
}

// newInstanceWrapper turns a provider declaration into a wrapper hosted by module.
func newInstanceWrapper(p Provider, host *Module, analyzer *reflection.Analyzer) (*InstanceWrapper, error) {
	token := p.Token()
	if err := validateToken(token); err != nil {
		return nil, err
	}
	if !p.scope.IsValid() {
		return nil, ScopeError{Value: int(p.scope)}
	}

	w := &InstanceWrapper{
		id:         uuid.NewString(),
		token:      token,
		name:       tokenName(token),
		kind:       p.kind,
		scope:      p.scope,
		selfParams: p.selfParams,
		optional:   p.optional,
		host:       host,
		values:     make(map[ContextID]*instanceCell),
		transient:  make(map[ContextID]*orderedmap.OrderedMap[string, *instanceCell]),
	}

	switch p.kind {
	case ClassProvider, FactoryProvider:
		if p.fn == nil {
			return nil, ErrConstructorNil
		}
		info, err := analyzer.Analyze(p.fn)
		if err != nil {
			return nil, err
		}
		w.fn = reflect.ValueOf(p.fn)
		w.info = info

		if p.inject != nil {
			if len(p.inject) != len(info.Parameters) {
				return nil, fmt.Errorf("%s takes %d dependencies but %d tokens are injected",
					formatType(info.Type), len(info.Parameters), len(p.inject))
			}
			if p.kind == FactoryProvider {
				w.inject = p.inject
			} else {
				w.selfParams = make(map[int]Token, len(p.inject))
				for i, t := range p.inject {
					w.selfParams[i] = t
				}
				for i, t := range p.selfParams {
					w.selfParams[i] = t
				}
			}
		}
		for idx := range w.selfParams {
			if idx < 0 || idx >= len(info.Parameters) {
				return nil, fmt.Errorf("parameter index %d is out of range for %s", idx, formatType(info.Type))
			}
		}

	case ExistingProvider:
		if err := validateToken(p.existing); err != nil {
			return nil, fmt.Errorf("alias target: %w", err)
		}
		w.inject = []Token{p.existing}

	case ValueProvider:
		w.scope = Singleton
		cell := w.newCell(StaticContext, "", false)
		cell.instance = reflect.ValueOf(p.value)
		cell.resolved = true
		w.values[StaticContext] = cell
		w.ctorMeta = []*InstanceWrapper{}
		w.ctorRecorded = true
		w.propRecorded = true
		return w, nil

	default:
		return nil, fmt.Errorf("unknown provider kind %s", p.kind)
	}

	w.values[StaticContext] = w.newCell(StaticContext, "", false)
	return w, nil
}

// newRequestWrapper creates the wrapper of RequestToken. Its instances are set
// per context id by Application.RegisterRequestByContextID.
func newRequestWrapper(host *Module) *InstanceWrapper {
	w := &InstanceWrapper{
		id:        uuid.NewString(),
		token:     RequestToken,
		name:      string(RequestToken),
		kind:      ValueProvider,
		scope:     Request,
		host:      host,
		values:    make(map[ContextID]*instanceCell),
		transient: make(map[ContextID]*orderedmap.OrderedMap[string, *instanceCell]),
		ctorMeta:  []*InstanceWrapper{},

		ctorRecorded: true,
		propRecorded: true,
	}
	cell := w.newCell(StaticContext, "", false)
	cell.resolved = true
	w.values[StaticContext] = cell
	return w
}

// ID returns the unique id of the wrapper, used as inquirer id.
func (w *InstanceWrapper) ID() string { return w.id }

// Token returns the token the wrapper is registered under.
func (w *InstanceWrapper) Token() Token { return w.token }

// Name returns the rendered token.
func (w *InstanceWrapper) Name() string { return w.name }

// Kind returns the provider kind.
func (w *InstanceWrapper) Kind() ProviderKind { return w.kind }

// Scope returns the declared scope.
func (w *InstanceWrapper) Scope() Scope { return w.scope }

// Host returns the module the wrapper belongs to.
func (w *InstanceWrapper) Host() *Module { return w.host }

// IsTransient reports whether the wrapper is transient scoped.
func (w *InstanceWrapper) IsTransient() bool { return w.scope == Transient }

// IsForwardRef reports whether a forward reference was used while resolving the wrapper.
func (w *InstanceWrapper) IsForwardRef() bool { return w.forwardRef.Load() }

func (w *InstanceWrapper) isFactory() bool {
	return w.kind == FactoryProvider || w.kind == ExistingProvider
}

// IsStatic reports whether the wrapper has one shared instance, which is the
// case when neither the wrapper nor its dependency tree is request or
// transient scoped.
func (w *InstanceWrapper) IsStatic() bool {
	return !w.IsTransient() && w.isDependencyTreeStatic()
}

// newCell allocates a cell. A placeholder is allocated for class providers
// returning a pointer to a struct, so that circular consumers can hold it.
// Callers must hold w.mu or own w exclusively.
func (w *InstanceWrapper) newCell(cid ContextID, inquirerID string, prototype bool) *instanceCell {
	c := &instanceCell{
		key: cellKey{wrapper: w.id, name: w.name, context: cid.ID, inquirer: inquirerID},
	}
	if prototype {
		w.attachPlaceholder(c)
	}
	return c
}

func (w *InstanceWrapper) attachPlaceholder(c *instanceCell) {
	if c.placeholder.IsValid() || c.resolved || w.kind != ClassProvider {
		return
	}
	if w.info != nil && reflection.IsStructPointer(w.info.Result) {
		c.placeholder = reflect.New(w.info.Result.Elem())
	}
}

// createPrototype allocates the placeholder of the cell for cid.
func (w *InstanceWrapper) createPrototype(cid ContextID) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if c, ok := w.values[cid]; ok {
		w.attachPlaceholder(c)
	}
}

// cell returns the cell for (cid, inquirerID), creating it when needed.
// treeStatic must be the result of isDependencyTreeStatic, computed before
// locking. Callers must hold w.mu.
func (w *InstanceWrapper) cell(cid ContextID, inquirerID string, treeStatic bool) *instanceCell {
	if w.scope == Transient && inquirerID != "" {
		byInquirer, ok := w.transient[cid]
		if !ok {
			byInquirer = orderedmap.New[string, *instanceCell]()
			w.transient[cid] = byInquirer
		}
		c, ok := byInquirer.Get(inquirerID)
		if !ok {
			c = w.newCell(cid, inquirerID, true)
			byInquirer.Set(inquirerID, c)
		}
		return c
	}

	if c, ok := w.values[cid]; ok {
		return c
	}

	// Non-static context of a wrapper without request-scoped dependencies
	// shares the static instance.
	if treeStatic && w.scope != Transient {
		return w.values[StaticContext]
	}

	c := w.newCell(cid, "", true)
	w.values[cid] = c
	return c
}

// lookupCell returns the cell for (cid, inquirerID) and whether it resolved.
func (w *InstanceWrapper) lookupCell(cid ContextID, inquirerID string) (reflect.Value, bool) {
	treeStatic := w.isDependencyTreeStatic()

	w.mu.Lock()
	defer w.mu.Unlock()

	c := w.cell(cid, inquirerID, treeStatic)
	return c.value(), c.resolved
}

// setInstanceByContextID stores a resolved instance for cid.
func (w *InstanceWrapper) setInstanceByContextID(cid ContextID, instance any) {
	w.mu.Lock()
	defer w.mu.Unlock()

	c, ok := w.values[cid]
	if !ok {
		c = w.newCell(cid, "", false)
		w.values[cid] = c
	}
	c.instance = reflect.ValueOf(instance)
	c.resolved = true
	c.err = nil
}

// releaseContext drops the cells created for cid. The static context is never released.
func (w *InstanceWrapper) releaseContext(cid ContextID) {
	if cid.IsStatic() {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	delete(w.values, cid)
	delete(w.transient, cid)
}

// staticInstance returns the resolved instance of the static context.
func (w *InstanceWrapper) staticInstance() (any, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	c, ok := w.values[StaticContext]
	if !ok || !c.resolved || !c.instance.IsValid() {
		return nil, false
	}
	return c.instance.Interface(), true
}

// staticTransientInstances returns the instances created for consumers in the
// static context, in creation order.
func (w *InstanceWrapper) staticTransientInstances() []any {
	w.mu.Lock()
	defer w.mu.Unlock()

	byInquirer, ok := w.transient[StaticContext]
	if !ok {
		return nil
	}

	var out []any
	for pair := byInquirer.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.resolved && pair.Value.instance.IsValid() {
			out = append(out, pair.Value.instance.Interface())
		}
	}
	return out
}

func (w *InstanceWrapper) recordCtorMetadata(deps []*InstanceWrapper) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.ctorRecorded {
		return
	}
	w.ctorMeta = deps
	w.ctorRecorded = true
}

func (w *InstanceWrapper) recordPropMetadata(props []propertyMetadata) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.propRecorded {
		return
	}
	w.propMeta = props
	w.propRecorded = true
}

func (w *InstanceWrapper) ctorMetadata() ([]*InstanceWrapper, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctorMeta, w.ctorRecorded
}

func (w *InstanceWrapper) propMetadata() ([]propertyMetadata, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.propMeta, w.propRecorded
}

func (w *InstanceWrapper) metadata() ([]*InstanceWrapper, []propertyMetadata, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ctorMeta, w.propMeta, w.ctorRecorded && w.propRecorded
}

// isDependencyTreeStatic reports whether no request-scoped provider is
// reachable through the recorded dependencies of w.
func (w *InstanceWrapper) isDependencyTreeStatic() bool {
	w.mu.Lock()
	cached := w.treeStatic
	w.mu.Unlock()
	if cached != nil {
		return *cached
	}

	complete := true
	static := w.visitTree(make(map[*InstanceWrapper]bool), &complete)
	if complete {
		w.mu.Lock()
		w.treeStatic = &static
		w.mu.Unlock()
	}
	return static
}

func (w *InstanceWrapper) visitTree(visited map[*InstanceWrapper]bool, complete *bool) bool {
	if w.scope == Request {
		return false
	}
	if visited[w] {
		return true
	}
	visited[w] = true

	ctor, props, recorded := w.metadata()
	if !recorded {
		*complete = false
		return true
	}

	for _, dep := range ctor {
		if dep != nil && !dep.visitTree(visited, complete) {
			return false
		}
	}
	for _, prop := range props {
		if prop.wrapper != nil && !prop.wrapper.visitTree(visited, complete) {
			return false
		}
	}
	return true
}
