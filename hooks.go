package nestor

import (
	"context"
	"reflect"

	"go.uber.org/zap"
)

// OnModuleInit is called once the dependencies of the host module are resolved.
type OnModuleInit interface {
	OnModuleInit(ctx context.Context) error
}

// OnApplicationBootstrap is called once every module is initialized.
type OnApplicationBootstrap interface {
	OnApplicationBootstrap(ctx context.Context) error
}

// OnModuleDestroy is called when the application starts shutting down.
type OnModuleDestroy interface {
	OnModuleDestroy(ctx context.Context) error
}

// BeforeApplicationShutdown is called after every OnModuleDestroy hook.
// signal is the value passed to Application.Shutdown.
type BeforeApplicationShutdown interface {
	BeforeApplicationShutdown(ctx context.Context, signal string) error
}

// OnApplicationShutdown is called last, before instances are disposed.
type OnApplicationShutdown interface {
	OnApplicationShutdown(ctx context.Context, signal string) error
}

const (
	hookModuleInit           = "OnModuleInit"
	hookApplicationBootstrap = "OnApplicationBootstrap"
	hookModuleDestroy        = "OnModuleDestroy"
	hookBeforeShutdown       = "BeforeApplicationShutdown"
	hookApplicationShutdown  = "OnApplicationShutdown"
)

// hookTarget is an instance a hook may be called on.
type hookTarget struct {
	token    string
	instance any
}

// hookDispatcher calls lifecycle hooks on static instances.
type hookDispatcher struct {
	container *Container
	logger    *zap.Logger
}

// callInit runs OnModuleInit on every module, last registered first.
func (d *hookDispatcher) callInit(ctx context.Context) error {
	return d.run(ctx, hookModuleInit, true, func(target any) (bool, error) {
		h, ok := target.(OnModuleInit)
		if !ok {
			return false, nil
		}
		return true, h.OnModuleInit(ctx)
	})
}

// callBootstrap runs OnApplicationBootstrap on every module, last registered first.
func (d *hookDispatcher) callBootstrap(ctx context.Context) error {
	return d.run(ctx, hookApplicationBootstrap, true, func(target any) (bool, error) {
		h, ok := target.(OnApplicationBootstrap)
		if !ok {
			return false, nil
		}
		return true, h.OnApplicationBootstrap(ctx)
	})
}

// callDestroy runs OnModuleDestroy on every module in registration order.
func (d *hookDispatcher) callDestroy(ctx context.Context) error {
	return d.run(ctx, hookModuleDestroy, false, func(target any) (bool, error) {
		h, ok := target.(OnModuleDestroy)
		if !ok {
			return false, nil
		}
		return true, h.OnModuleDestroy(ctx)
	})
}

func (d *hookDispatcher) callBeforeShutdown(ctx context.Context, signal string) error {
	return d.run(ctx, hookBeforeShutdown, false, func(target any) (bool, error) {
		h, ok := target.(BeforeApplicationShutdown)
		if !ok {
			return false, nil
		}
		return true, h.BeforeApplicationShutdown(ctx, signal)
	})
}

func (d *hookDispatcher) callShutdown(ctx context.Context, signal string) error {
	return d.run(ctx, hookApplicationShutdown, false, func(target any) (bool, error) {
		h, ok := target.(OnApplicationShutdown)
		if !ok {
			return false, nil
		}
		return true, h.OnApplicationShutdown(ctx, signal)
	})
}

// run calls fn on the hook targets of every module. The first failure stops
// the run. An instance reachable through several tokens is called once.
func (d *hookDispatcher) run(ctx context.Context, hook string, reverse bool, fn func(target any) (bool, error)) error {
	modules := d.container.Modules()
	if reverse {
		for l, r := 0, len(modules)-1; l < r; l, r = l+1, r-1 {
			modules[l], modules[r] = modules[r], modules[l]
		}
	}

	seen := make(map[any]struct{})
	for _, m := range modules {
		for _, target := range hookTargets(m) {
			if err := ctx.Err(); err != nil {
				return err
			}

			if reflect.TypeOf(target.instance).Comparable() {
				if _, ok := seen[target.instance]; ok {
					continue
				}
				seen[target.instance] = struct{}{}
			}

			called, err := fn(target.instance)
			if err != nil {
				d.logger.Error("lifecycle hook failed",
					zap.String("hook", hook),
					zap.String("module", m.Name()),
					zap.String("token", target.token),
					zap.Error(err),
				)
				return HookError{Hook: hook, Module: m.Name(), Token: target.token, Cause: err}
			}
			if called {
				d.logger.Debug("lifecycle hook called",
					zap.String("hook", hook),
					zap.String("module", m.Name()),
					zap.String("token", target.token),
				)
			}
		}
	}
	return nil
}

// hookTargets lists the static instances of m in hook order: controllers,
// non-transient providers and injectables, instances of transient wrappers
// created in the static context, and the module instance last.
func hookTargets(m *Module) []hookTarget {
	moduleWrapper := m.moduleWrapper()
	var targets []hookTarget

	add := func(w *InstanceWrapper) {
		if inst, ok := w.staticInstance(); ok {
			targets = append(targets, hookTarget{token: w.name, instance: inst})
		}
	}

	for _, w := range m.Controllers() {
		if !w.IsTransient() {
			add(w)
		}
	}
	for _, w := range append(m.Providers(), m.Injectables()...) {
		if w != moduleWrapper && !w.IsTransient() {
			add(w)
		}
	}
	for _, w := range append(append(m.Controllers(), m.Providers()...), m.Injectables()...) {
		if !w.IsTransient() {
			continue
		}
		for _, inst := range w.staticTransientInstances() {
			targets = append(targets, hookTarget{token: w.name, instance: inst})
		}
	}
	if moduleWrapper != nil {
		add(moduleWrapper)
	}
	return targets
}
