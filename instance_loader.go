package nestor

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// instanceLoader constructs the static instances of every module.
type instanceLoader struct {
	container *Container
	injector  *Injector
	logger    *zap.Logger
}

func newInstanceLoader(container *Container, logger *zap.Logger) *instanceLoader {
	return &instanceLoader{
		container: container,
		injector:  container.injector,
		logger:    logger,
	}
}

// CreateInstancesOfDependencies allocates the placeholders of every wrapper,
// then constructs modules one after the other in registration order.
func (l *instanceLoader) CreateInstancesOfDependencies(ctx context.Context) error {
	modules := l.container.Modules()
	l.createPrototypes(modules)

	for _, m := range modules {
		if err := l.createInstances(ctx, m); err != nil {
			return err
		}
		l.logger.Info("dependencies initialized", zap.String("module", m.Name()))
	}

	l.applyApplicationEnhancers(modules)
	return nil
}

func (l *instanceLoader) createPrototypes(modules []*Module) {
	for _, m := range modules {
		for _, w := range m.Providers() {
			l.injector.LoadPrototype(w)
		}
		for _, w := range m.Injectables() {
			l.injector.LoadPrototype(w)
		}
		for _, w := range m.Controllers() {
			l.injector.LoadPrototype(w)
		}
	}
}

// createInstances loads the providers of m concurrently, then its injectables
// and controllers.
func (l *instanceLoader) createInstances(ctx context.Context, m *Module) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range m.Providers() {
		g.Go(func() error {
			return l.injector.LoadProvider(gctx, w, m, StaticContext, nil)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, w := range m.Injectables() {
		if err := l.injector.LoadInjectable(ctx, w, m, StaticContext, nil); err != nil {
			return err
		}
	}
	for _, w := range m.Controllers() {
		if err := l.injector.LoadController(ctx, w, m, StaticContext); err != nil {
			return err
		}
	}
	return nil
}

// applyApplicationEnhancers hands the instances of providers registered under
// AppGuard, AppPipe, AppFilter or AppInterceptor to the application config.
func (l *instanceLoader) applyApplicationEnhancers(modules []*Module) {
	config := l.container.ApplicationConfig()
	for _, m := range modules {
		for pair := m.injectables.Oldest(); pair != nil; pair = pair.Next() {
			token, ok := pair.Key.(appEnhancerToken)
			if !ok {
				continue
			}
			instance, ok := pair.Value.staticInstance()
			if !ok {
				continue
			}
			config.addEnhancer(token.kind, instance)
		}
	}
}
