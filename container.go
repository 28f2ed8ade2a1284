package nestor

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/junioryono/nestor/internal/reflection"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

const coreModuleName = "InternalCoreModule"

// Container is the registry of one application: every module by token, the
// global modules and the application configuration. It is passed explicitly to
// the scanner, the injector and the hook dispatcher.
type Container struct {
	modules         *orderedmap.OrderedMap[string, *Module]
	globalModules   *orderedmap.OrderedMap[string, *Module]
	dynamicMetadata map[string]*DynamicModule
	coreModule      *Module

	compiler *moduleCompiler
	analyzer *reflection.Analyzer
	config   *ApplicationConfig
	injector *Injector
	logger   *zap.Logger

	// defaultContext is used by Resolve calls that name no context id.
	defaultContext ContextID
	closed         atomic.Bool
}

func newContainer(logger *zap.Logger) *Container {
	c := &Container{
		modules:         orderedmap.New[string, *Module](),
		globalModules:   orderedmap.New[string, *Module](),
		dynamicMetadata: make(map[string]*DynamicModule),
		compiler:        &moduleCompiler{},
		analyzer:        reflection.New(),
		config:          &ApplicationConfig{},
		logger:          logger,
		defaultContext:  NewContextID(),
	}
	c.injector = newInjector(logger)
	return c
}

// AddModule compiles imp and registers the module unless a module with the
// same token already exists. It returns the module and whether it was inserted.
func (c *Container) AddModule(ctx context.Context, imp Import, scope []*ModuleDef) (*Module, bool, error) {
	factory, err := c.compiler.Compile(ctx, imp, scope)
	if err != nil {
		return nil, false, err
	}

	if existing, ok := c.modules.Get(factory.Token); ok {
		if existing.def != factory.Type {
			return nil, false, RegistrationError{
				Token:  factory.Type.Name(),
				Module: factory.Type.Name(),
				Cause:  fmt.Errorf("another module is already registered under the name %q", factory.Type.Name()),
			}
		}
		return existing, false, nil
	}

	m, err := newModule(factory.Type, factory.Token, scope, c)
	if err != nil {
		return nil, false, err
	}
	c.modules.Set(factory.Token, m)

	if factory.DynamicMetadata != nil {
		c.dynamicMetadata[factory.Token] = factory.DynamicMetadata
		if factory.DynamicMetadata.Global {
			m.global = true
		}
	}
	if m.global {
		c.globalModules.Set(factory.Token, m)
	}

	c.logger.Debug("module registered",
		zap.String("module", m.Name()),
		zap.String("token", m.token),
		zap.Bool("global", m.global),
	)
	return m, true, nil
}

// createCoreModule registers the global module that provides RequestToken.
func (c *Container) createCoreModule(ctx context.Context) (*Module, error) {
	m, _, err := c.AddModule(ctx, NewModule(coreModuleName, Global()), nil)
	if err != nil {
		return nil, err
	}

	m.providers.Set(RequestToken, newRequestWrapper(m))
	m.exports.Set(RequestToken, struct{}{})
	c.coreModule = m
	return m, nil
}

// Modules returns every module in registration order.
func (c *Container) Modules() []*Module {
	out := make([]*Module, 0, c.modules.Len())
	for pair := c.modules.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// ModuleByToken returns the module registered under token.
func (c *Container) ModuleByToken(token string) (*Module, bool) {
	return c.modules.Get(token)
}

// DynamicMetadata returns the dynamic part of the module registered under token.
func (c *Container) DynamicMetadata(token string) (*DynamicModule, bool) {
	d, ok := c.dynamicMetadata[token]
	return d, ok
}

// ApplicationConfig returns the cross-cutting configuration.
func (c *Container) ApplicationConfig() *ApplicationConfig {
	return c.config
}

// BindGlobalScope makes every global module an import of every other module.
func (c *Container) BindGlobalScope() {
	for pair := c.modules.Oldest(); pair != nil; pair = pair.Next() {
		c.bindGlobalsToImports(pair.Value)
	}
}

func (c *Container) bindGlobalsToImports(m *Module) {
	for pair := c.globalModules.Oldest(); pair != nil; pair = pair.Next() {
		c.bindGlobalModuleToModule(m, pair.Value)
	}
}

func (c *Container) bindGlobalModuleToModule(target, global *Module) {
	if target == global {
		return
	}
	target.AddRelatedModule(global)
}

// find returns the wrapper registered under token. With a scope module only
// that module is searched, otherwise every module in registration order.
func (c *Container) find(token Token, scope *Module) (*InstanceWrapper, error) {
	token, _ = unwrapToken(token)
	if err := validateToken(token); err != nil {
		return nil, err
	}

	modules := c.Modules()
	if scope != nil {
		modules = []*Module{scope}
	}

	for _, m := range modules {
		for _, collection := range []*orderedmap.OrderedMap[Token, *InstanceWrapper]{m.providers, m.controllers, m.injectables} {
			if w, ok := collection.Get(token); ok {
				return w, nil
			}
		}
	}

	name := ""
	if scope != nil {
		name = scope.Name()
	}
	return nil, UnknownElementError{Token: tokenName(token), Module: name}
}

// releaseContext drops the cells of every wrapper for cid.
func (c *Container) releaseContext(cid ContextID) {
	for _, m := range c.Modules() {
		for _, collection := range []*orderedmap.OrderedMap[Token, *InstanceWrapper]{m.providers, m.controllers, m.injectables} {
			for pair := collection.Oldest(); pair != nil; pair = pair.Next() {
				pair.Value.releaseContext(cid)
			}
		}
	}
}
