package testutil

import (
	"github.com/junioryono/nestor"
)

// ModuleBuilder builds module declarations fluently.
type ModuleBuilder struct {
	name string
	opts []nestor.ModuleOption
}

// NewModuleBuilder starts a module named name.
func NewModuleBuilder(name string) *ModuleBuilder {
	return &ModuleBuilder{name: name}
}

// WithImports adds imports.
func (b *ModuleBuilder) WithImports(imports ...nestor.Import) *ModuleBuilder {
	b.opts = append(b.opts, nestor.Imports(imports...))
	return b
}

// WithProviders adds providers.
func (b *ModuleBuilder) WithProviders(providers ...any) *ModuleBuilder {
	b.opts = append(b.opts, nestor.Providers(providers...))
	return b
}

// WithControllers adds controllers.
func (b *ModuleBuilder) WithControllers(controllers ...any) *ModuleBuilder {
	b.opts = append(b.opts, nestor.Controllers(controllers...))
	return b
}

// WithExports adds exported tokens.
func (b *ModuleBuilder) WithExports(tokens ...nestor.Token) *ModuleBuilder {
	b.opts = append(b.opts, nestor.Exports(tokens...))
	return b
}

// Exporting adds providers and exports the token of each of them.
func (b *ModuleBuilder) Exporting(providers ...nestor.Provider) *ModuleBuilder {
	for _, p := range providers {
		b.opts = append(b.opts, nestor.Providers(p), nestor.Exports(p.Token()))
	}
	return b
}

// Global marks the module global.
func (b *ModuleBuilder) Global() *ModuleBuilder {
	b.opts = append(b.opts, nestor.Global())
	return b
}

// Build returns the module declaration.
func (b *ModuleBuilder) Build() *nestor.ModuleDef {
	return nestor.NewModule(b.name, b.opts...)
}
