package nestor

import (
	"fmt"

	"github.com/google/uuid"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// appEnhancerToken is the unique token an application enhancer provider is stored under.
type appEnhancerToken struct {
	kind GlobalEnhancer
	id   string
}

func (t appEnhancerToken) String() string {
	return fmt.Sprintf("%s (%s)", t.kind, t.id)
}

// Module is the runtime form of a module: the wrappers it owns and its import
// and export edges. There is exactly one Module per module token.
type Module struct {
	id        string
	token     string
	def       *ModuleDef
	scope     []*ModuleDef
	global    bool
	container *Container

	providers   *orderedmap.OrderedMap[Token, *InstanceWrapper]
	injectables *orderedmap.OrderedMap[Token, *InstanceWrapper]
	controllers *orderedmap.OrderedMap[Token, *InstanceWrapper]
	exports     *orderedmap.OrderedMap[Token, struct{}]
	imports     *orderedmap.OrderedMap[string, *Module]
}

func newModule(def *ModuleDef, token string, scope []*ModuleDef, container *Container) (*Module, error) {
	m := &Module{
		id:          uuid.NewString(),
		token:       token,
		def:         def,
		scope:       append([]*ModuleDef(nil), scope...),
		global:      def.global,
		container:   container,
		providers:   orderedmap.New[Token, *InstanceWrapper](),
		injectables: orderedmap.New[Token, *InstanceWrapper](),
		controllers: orderedmap.New[Token, *InstanceWrapper](),
		exports:     orderedmap.New[Token, struct{}](),
		imports:     orderedmap.New[string, *Module](),
	}

	if err := m.addCoreProviders(); err != nil {
		return nil, err
	}
	return m, nil
}

// addCoreProviders registers the module's own instance and its ModuleRef.
// The module instance is always the first provider.
func (m *Module) addCoreProviders() error {
	instance := Value(m.def, m.def)
	if m.def.instance != nil {
		instance = Class(m.def.instance, WithToken(m.def))
	}
	if _, err := m.AddProvider(instance); err != nil {
		return err
	}

	_, err := m.AddProvider(Value(TokenOf[*ModuleRef](), newModuleRef(m.container, m)))
	return err
}

// ID returns the unique id of the module.
func (m *Module) ID() string { return m.id }

// Token returns the module token.
func (m *Module) Token() string { return m.token }

// Name returns the module name.
func (m *Module) Name() string { return m.def.Name() }

// Def returns the module declaration.
func (m *Module) Def() *ModuleDef { return m.def }

// IsGlobal reports whether the module exports are visible to every module.
func (m *Module) IsGlobal() bool { return m.global }

// AddProvider registers a provider declaration and returns its token.
// A later provider with the same token replaces an earlier one.
func (m *Module) AddProvider(item any) (Token, error) {
	p, err := toProvider(item)
	if err != nil {
		return nil, RegistrationError{Token: fmt.Sprintf("%T", item), Module: m.Name(), Cause: err}
	}

	if kind, ok := p.token.(GlobalEnhancer); ok {
		return m.addApplicationEnhancer(kind, p)
	}

	w, err := newInstanceWrapper(p, m, m.container.analyzer)
	if err != nil {
		return nil, RegistrationError{Token: tokenName(p.Token()), Module: m.Name(), Cause: err}
	}
	if err := m.addEnhancers(w, p.enhancers); err != nil {
		return nil, err
	}

	m.providers.Set(w.token, w)
	return w.token, nil
}

// addApplicationEnhancer stores a provider registered under an application
// enhancer token as an injectable with a unique token, so several of them can coexist.
func (m *Module) addApplicationEnhancer(kind GlobalEnhancer, p Provider) (Token, error) {
	token := appEnhancerToken{kind: kind, id: uuid.NewString()}
	p.token = token

	w, err := newInstanceWrapper(p, m, m.container.analyzer)
	if err != nil {
		return nil, RegistrationError{Token: string(kind), Module: m.Name(), Cause: err}
	}
	m.injectables.Set(token, w)
	return token, nil
}

// AddInjectable registers an enhancer. An injectable already registered under
// the same token is reused.
func (m *Module) AddInjectable(item any) (*InstanceWrapper, error) {
	p, err := toProvider(item)
	if err != nil {
		return nil, RegistrationError{Token: fmt.Sprintf("%T", item), Module: m.Name(), Cause: err}
	}

	if existing, ok := m.injectables.Get(p.Token()); ok {
		return existing, nil
	}

	w, err := newInstanceWrapper(p, m, m.container.analyzer)
	if err != nil {
		return nil, RegistrationError{Token: tokenName(p.Token()), Module: m.Name(), Cause: err}
	}
	m.injectables.Set(w.token, w)
	return w, nil
}

// AddController registers a controller declaration.
func (m *Module) AddController(item any) error {
	p, err := toProvider(item)
	if err != nil {
		return RegistrationError{Token: fmt.Sprintf("%T", item), Module: m.Name(), Cause: err}
	}

	w, err := newInstanceWrapper(p, m, m.container.analyzer)
	if err != nil {
		return RegistrationError{Token: tokenName(p.Token()), Module: m.Name(), Cause: err}
	}
	if err := m.addEnhancers(w, p.enhancers); err != nil {
		return err
	}

	m.controllers.Set(w.token, w)
	return nil
}

func (m *Module) addEnhancers(owner *InstanceWrapper, enhancers []any) error {
	for _, item := range enhancers {
		enhancer, err := m.AddInjectable(item)
		if err != nil {
			return err
		}
		owner.enhancers = append(owner.enhancers, enhancer.token)
	}
	return nil
}

// AddRelatedModule adds an import edge.
func (m *Module) AddRelatedModule(related *Module) {
	if related == nil || related == m {
		return
	}
	m.imports.Set(related.token, related)
}

// AddExportedProvider makes token visible to importers. The token must be one
// of the module's providers or one of its imported modules.
func (m *Module) AddExportedProvider(token Token) error {
	token, _ = unwrapToken(token)
	if err := validateToken(token); err != nil {
		return RegistrationError{Token: "export", Module: m.Name(), Cause: err}
	}

	exported, err := m.validateExportedProvider(token)
	if err != nil {
		return err
	}
	m.exports.Set(exported, struct{}{})
	return nil
}

func (m *Module) validateExportedProvider(token Token) (Token, error) {
	if _, ok := m.providers.Get(token); ok {
		return token, nil
	}

	var def *ModuleDef
	switch v := token.(type) {
	case *ModuleDef:
		def = v
	case *DynamicModule:
		def = v.Module
	}

	for pair := m.imports.Oldest(); pair != nil; pair = pair.Next() {
		imported := pair.Value
		if def != nil && imported.def == def {
			return imported.def, nil
		}
		if name, ok := token.(string); ok && imported.Name() == name {
			return imported.def, nil
		}
	}

	return nil, UnknownExportError{Token: tokenName(token), Module: m.Name()}
}

// HasProvider reports whether the module owns a provider for token.
func (m *Module) HasProvider(token Token) bool {
	_, ok := m.providers.Get(token)
	return ok
}

// HasExport reports whether the module exports token.
func (m *Module) HasExport(token Token) bool {
	_, ok := m.exports.Get(token)
	return ok
}

// Provider returns the provider wrapper registered under token.
func (m *Module) Provider(token Token) (*InstanceWrapper, bool) {
	return m.providers.Get(token)
}

// Providers returns the provider wrappers in registration order.
func (m *Module) Providers() []*InstanceWrapper {
	return wrappers(m.providers)
}

// Injectables returns the injectable wrappers in registration order.
func (m *Module) Injectables() []*InstanceWrapper {
	return wrappers(m.injectables)
}

// Controllers returns the controller wrappers in registration order.
func (m *Module) Controllers() []*InstanceWrapper {
	return wrappers(m.controllers)
}

// Imports returns the imported modules in registration order.
func (m *Module) Imports() []*Module {
	out := make([]*Module, 0, m.imports.Len())
	for pair := m.imports.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Exports returns the exported tokens in declaration order.
func (m *Module) Exports() []Token {
	out := make([]Token, 0, m.exports.Len())
	for pair := m.exports.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// moduleWrapper returns the wrapper of the module's own instance.
func (m *Module) moduleWrapper() *InstanceWrapper {
	w, _ := m.providers.Get(m.def)
	return w
}

// collectionOf returns the collection w is registered in.
func (m *Module) collectionOf(w *InstanceWrapper) *orderedmap.OrderedMap[Token, *InstanceWrapper] {
	for _, c := range []*orderedmap.OrderedMap[Token, *InstanceWrapper]{m.providers, m.controllers, m.injectables} {
		if got, ok := c.Get(w.token); ok && got == w {
			return c
		}
	}
	return nil
}

func wrappers(c *orderedmap.OrderedMap[Token, *InstanceWrapper]) []*InstanceWrapper {
	out := make([]*InstanceWrapper, 0, c.Len())
	for pair := c.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}
