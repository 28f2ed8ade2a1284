package nestor

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"runtime"

	"github.com/mitchellh/hashstructure/v2"
)

// globalScope is the scope of every module that is not declared SingleScope.
const globalScope = "global"

// ModuleFactory is the compiled form of an import.
type ModuleFactory struct {
	Type            *ModuleDef
	DynamicMetadata *DynamicModule
	Token           string
}

// moduleCompiler turns imports into module factories with a canonical token.
type moduleCompiler struct{}

// opaqueToken is the hashed identity of a module.
type opaqueToken struct {
	Module  string
	Dynamic string
	Scope   []string
}

// Compile awaits deferred imports, unwraps forward references and computes the
// module token. Identical declarations always produce the same token.
func (c *moduleCompiler) Compile(ctx context.Context, imp Import, scope []*ModuleDef) (*ModuleFactory, error) {
	def, dynamic, err := c.extractMetadata(ctx, imp)
	if err != nil {
		return nil, err
	}

	token, err := c.createToken(def, scope, dynamic)
	if err != nil {
		return nil, err
	}

	return &ModuleFactory{Type: def, DynamicMetadata: dynamic, Token: token}, nil
}

func (c *moduleCompiler) extractMetadata(ctx context.Context, imp Import) (*ModuleDef, *DynamicModule, error) {
	imp, err := c.unwrap(ctx, imp)
	if err != nil {
		return nil, nil, err
	}

	switch v := imp.(type) {
	case *ModuleDef:
		if v == nil {
			return nil, nil, fmt.Errorf("module definition is nil")
		}
		return v, nil, nil
	case *DynamicModule:
		if v == nil || v.Module == nil {
			return nil, nil, fmt.Errorf("dynamic module has no Module")
		}
		return v.Module, v, nil
	default:
		return nil, nil, fmt.Errorf("unsupported import %T", imp)
	}
}

// unwrap resolves forward references and deferred modules until a concrete
// module declaration remains.
func (c *moduleCompiler) unwrap(ctx context.Context, imp Import) (Import, error) {
	for {
		switch v := imp.(type) {
		case *forwardModuleRef:
			if v == nil || v.fn == nil {
				return nil, fmt.Errorf("forward module reference has no function")
			}
			imp = v.fn()
		case *deferredModule:
			if v == nil {
				return nil, fmt.Errorf("deferred module is nil")
			}
			resolved, err := v.await(ctx)
			if err != nil {
				return nil, fmt.Errorf("deferred module failed: %w", err)
			}
			imp = resolved
		default:
			if isNilImport(imp) {
				return nil, fmt.Errorf("import resolved to nil")
			}
			return imp, nil
		}
	}
}

func (c *moduleCompiler) createToken(def *ModuleDef, scope []*ModuleDef, dynamic *DynamicModule) (string, error) {
	token := opaqueToken{
		Module:  def.name,
		Dynamic: c.canonicalMetadata(dynamic),
		Scope:   []string{globalScope},
	}
	if def.singleScope {
		token.Scope = scopeStack(scope)
	}

	hash, err := hashstructure.Hash(token, hashstructure.FormatV2, nil)
	if err != nil {
		return "", fmt.Errorf("failed to hash module %s: %w", def.name, err)
	}
	return fmt.Sprintf("%016x", hash), nil
}

// canonicalMetadata serializes the dynamic part of a module so that
// structurally equal configurations produce the same string.
func (c *moduleCompiler) canonicalMetadata(dynamic *DynamicModule) string {
	if dynamic == nil {
		return ""
	}

	meta := map[string]any{
		"global": dynamic.Global,
	}
	if len(dynamic.Imports) > 0 {
		imports := make([]any, len(dynamic.Imports))
		for i, imp := range dynamic.Imports {
			imports[i] = c.importFingerprint(imp)
		}
		meta["imports"] = imports
	}
	if len(dynamic.Providers) > 0 {
		meta["providers"] = declarationFingerprints(dynamic.Providers)
	}
	if len(dynamic.Controllers) > 0 {
		meta["controllers"] = declarationFingerprints(dynamic.Controllers)
	}
	if len(dynamic.Exports) > 0 {
		exports := make([]string, len(dynamic.Exports))
		for i, t := range dynamic.Exports {
			exports[i] = tokenName(t)
		}
		meta["exports"] = exports
	}

	// Map keys are sorted by encoding/json.
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Sprintf("%#v", meta)
	}
	return string(data)
}

func (c *moduleCompiler) importFingerprint(imp Import) any {
	switch v := imp.(type) {
	case *DynamicModule:
		if v == nil {
			return nil
		}
		return map[string]any{"module": v.Module.Name(), "dynamic": c.canonicalMetadata(v)}
	case *deferredModule:
		return fmt.Sprintf("deferred:%p", v)
	case nil:
		return nil
	default:
		return v.importName()
	}
}

func declarationFingerprints(items []any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		p, err := toProvider(item)
		if err != nil {
			out[i] = fmt.Sprintf("%T", item)
			continue
		}
		out[i] = p.fingerprint()
	}
	return out
}

func scopeStack(scope []*ModuleDef) []string {
	names := make([]string, len(scope))
	for i, m := range scope {
		names[i] = m.Name()
	}
	return names
}

// valueFingerprint renders a provided value. JSON is preferred so that equal
// configuration structs compare equal. JSON skips unexported fields, so values
// whose type has any are rendered with %#v as well.
func valueFingerprint(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	if !hasUnexportedFields(reflect.TypeOf(v), make(map[reflect.Type]bool)) {
		return string(data)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return fmt.Sprintf("%s|%#v", data, rv)
}

func hasUnexportedFields(t reflect.Type, seen map[reflect.Type]bool) bool {
	if t == nil || seen[t] {
		return false
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Map:
		return hasUnexportedFields(t.Key(), seen) || hasUnexportedFields(t.Elem(), seen)
	case reflect.Pointer, reflect.Slice, reflect.Array:
		return hasUnexportedFields(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || hasUnexportedFields(f.Type, seen) {
				return true
			}
		}
	}
	return false
}

func funcName(fn any) string {
	val := reflect.ValueOf(fn)
	if val.Kind() != reflect.Func || val.IsNil() {
		return fmt.Sprintf("%T", fn)
	}
	if f := runtime.FuncForPC(val.Pointer()); f != nil {
		return f.Name()
	}
	return val.Type().String()
}

func isNilImport(imp Import) bool {
	if imp == nil {
		return true
	}
	val := reflect.ValueOf(imp)
	return val.Kind() == reflect.Pointer && val.IsNil()
}
