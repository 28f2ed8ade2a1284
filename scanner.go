package nestor

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// scanner walks the import graph from the root module and fills the container.
type scanner struct {
	container *Container
	logger    *zap.Logger
}

func newScanner(container *Container, logger *zap.Logger) *scanner {
	return &scanner{container: container, logger: logger}
}

// Scan registers every module reachable from root, then the providers,
// controllers, injectables and exports of each module, then binds global modules.
func (s *scanner) Scan(ctx context.Context, root Import) error {
	if isNilImport(root) {
		return ErrRootModuleNil
	}

	if _, err := s.container.createCoreModule(ctx); err != nil {
		return err
	}

	resolved, err := s.container.compiler.unwrap(ctx, root)
	if err != nil {
		return InvalidModuleError{Parent: "root", Index: 0, Cause: err}
	}
	if err := s.scanForModules(ctx, resolved, nil, make(map[Import]bool)); err != nil {
		return err
	}

	if err := s.scanModulesForDependencies(ctx); err != nil {
		return err
	}

	s.container.BindGlobalScope()
	return nil
}

// scanForModules registers imp and, depth first, every module it imports.
// A module whose token is already registered is not descended into again.
// path holds the declarations on the current import chain, which stops cyclic
// imports of single scope modules whose token changes with every level.
func (s *scanner) scanForModules(ctx context.Context, imp Import, scope []*ModuleDef, path map[Import]bool) error {
	m, inserted, err := s.container.AddModule(ctx, imp, scope)
	if err != nil {
		return err
	}
	if !inserted {
		// An equal declaration was scanned through another import.
		return nil
	}

	path[imp] = true
	defer delete(path, imp)

	childScope := append(append([]*ModuleDef(nil), scope...), m.def)
	for i, child := range declaredImports(imp) {
		if isNilImport(child) {
			return UndefinedModuleError{Parent: m.Name(), Index: i, Scope: scopeStack(scope)}
		}

		resolved, err := s.container.compiler.unwrap(ctx, child)
		if err != nil {
			return InvalidModuleError{Parent: m.Name(), Index: i, Cause: err}
		}
		if path[resolved] {
			continue
		}

		if err := s.scanForModules(ctx, resolved, childScope, path); err != nil {
			return err
		}
	}

	return nil
}

// scanModulesForDependencies registers the declarations of every module in
// registration order: imports first, so that exports can be validated.
func (s *scanner) scanModulesForDependencies(ctx context.Context) error {
	for _, m := range s.container.Modules() {
		dynamic, _ := s.container.DynamicMetadata(m.token)

		if err := s.reflectImports(ctx, m, dynamic); err != nil {
			return err
		}
		if err := s.reflectProviders(m, dynamic); err != nil {
			return err
		}
		if err := s.reflectControllers(m, dynamic); err != nil {
			return err
		}
		if err := s.reflectExports(m, dynamic); err != nil {
			return err
		}

		s.logger.Debug("module scanned",
			zap.String("module", m.Name()),
			zap.Int("providers", m.providers.Len()),
			zap.Int("controllers", m.controllers.Len()),
			zap.Int("imports", m.imports.Len()),
		)
	}
	return nil
}

func (s *scanner) reflectImports(ctx context.Context, m *Module, dynamic *DynamicModule) error {
	imports := append(append([]Import(nil), m.def.imports...), dynamicImports(dynamic)...)
	scope := append(append([]*ModuleDef(nil), m.scope...), m.def)

	for i, related := range imports {
		if isNilImport(related) {
			return UndefinedModuleError{Parent: m.Name(), Index: i, Scope: scopeStack(m.scope)}
		}

		relatedModule, err := s.importedModule(ctx, related, scope)
		if err != nil {
			return InvalidModuleError{Parent: m.Name(), Index: i, Cause: err}
		}
		if relatedModule == nil {
			return RuntimeError{Message: fmt.Sprintf("imported module %s of %s was not scanned", related.importName(), m.Name())}
		}
		m.AddRelatedModule(relatedModule)
	}
	return nil
}

// importedModule finds the module registered for related under scope. A single
// scope module imported cyclically was registered by an ancestor on the import
// chain, so shorter scopes are tried until one matches.
func (s *scanner) importedModule(ctx context.Context, related Import, scope []*ModuleDef) (*Module, error) {
	for n := len(scope); n >= 0; n-- {
		factory, err := s.container.compiler.Compile(ctx, related, scope[:n])
		if err != nil {
			return nil, err
		}
		if found, ok := s.container.ModuleByToken(factory.Token); ok {
			return found, nil
		}
		if !factory.Type.singleScope {
			return nil, nil
		}
	}
	return nil, nil
}

func (s *scanner) reflectProviders(m *Module, dynamic *DynamicModule) error {
	providers := m.def.providers
	if dynamic != nil {
		providers = append(append([]any(nil), providers...), dynamic.Providers...)
	}

	for _, item := range providers {
		if _, err := m.AddProvider(item); err != nil {
			return err
		}
	}
	return nil
}

func (s *scanner) reflectControllers(m *Module, dynamic *DynamicModule) error {
	controllers := m.def.controllers
	if dynamic != nil {
		controllers = append(append([]any(nil), controllers...), dynamic.Controllers...)
	}

	for _, item := range controllers {
		if err := m.AddController(item); err != nil {
			return err
		}
	}
	return nil
}

func (s *scanner) reflectExports(m *Module, dynamic *DynamicModule) error {
	exports := m.def.exports
	if dynamic != nil {
		exports = append(append([]Token(nil), exports...), dynamic.Exports...)
	}

	for _, token := range exports {
		if err := m.AddExportedProvider(token); err != nil {
			return err
		}
	}
	return nil
}

// declaredImports returns the static and dynamic imports of a resolved declaration.
func declaredImports(imp Import) []Import {
	switch v := imp.(type) {
	case *ModuleDef:
		return v.imports
	case *DynamicModule:
		return append(append([]Import(nil), v.Module.imports...), v.Imports...)
	default:
		return nil
	}
}

func dynamicImports(dynamic *DynamicModule) []Import {
	if dynamic == nil {
		return nil
	}
	return dynamic.Imports
}
