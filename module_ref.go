package nestor

import (
	"context"
	"reflect"
)

// ModuleRef gives a provider access to the container from inside its module.
// Every module provides one under TokenOf[*ModuleRef]().
//
// Lookups through a ModuleRef are strict by default: only the module itself is
// searched. Pass Anywhere to search every module.
type ModuleRef struct {
	container *Container
	module    *Module
}

func newModuleRef(container *Container, module *Module) *ModuleRef {
	return &ModuleRef{container: container, module: module}
}

// Module returns the module the reference belongs to.
func (r *ModuleRef) Module() *Module {
	return r.module
}

// Get returns the static instance registered under token.
func (r *ModuleRef) Get(token Token, opts ...LookupOption) (any, error) {
	o := newLookupOptions(opts)
	return getStatic(r.container, r.scope(o), token)
}

// Resolve constructs or returns the instance registered under token for a
// context id. See Application.Resolve.
func (r *ModuleRef) Resolve(ctx context.Context, token Token, opts ...LookupOption) (any, error) {
	o := newLookupOptions(opts)
	return resolveDynamic(ctx, r.container, r.scope(o), token, o)
}

// Create constructs a new instance with constructor, resolving its
// dependencies in this module. The instance is not registered and every call
// returns a new one. Dependencies are resolved in the static context unless a
// context id is given.
func (r *ModuleRef) Create(ctx context.Context, constructor any, opts ...LookupOption) (any, error) {
	if r.container.closed.Load() {
		return nil, ErrApplicationClosed
	}

	w, err := newInstanceWrapper(Class(constructor), r.module, r.container.analyzer)
	if err != nil {
		return nil, err
	}

	o := newLookupOptions(opts)
	cid := o.resolveContext(ctx, StaticContext)
	injector := r.container.injector

	var instance reflect.Value
	err = injector.ResolveConstructorParams(ctx, w, r.module, nil, func(args []reflect.Value) error {
		props, err := injector.ResolveProperties(ctx, w, r.module, cid, w)
		if err != nil {
			return err
		}
		v, err := injector.invoke(ctx, w, args)
		if err != nil {
			return err
		}
		if err := injector.ApplyProperties(w, v, props); err != nil {
			return err
		}
		instance = v
		return nil
	}, cid, w)
	if err != nil {
		return nil, err
	}

	if !instance.IsValid() {
		return nil, nil
	}
	return instance.Interface(), nil
}

func (r *ModuleRef) scope(o *lookupOptions) *Module {
	if o.isStrict(true) {
		return r.module
	}
	return nil
}
