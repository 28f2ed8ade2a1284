package nestor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Option configures an Application.
type Option interface {
	apply(*appOptions)
}

type appOptions struct {
	logger       *zap.Logger
	globalPrefix string
	onResolved   func(token Token, instance any, duration time.Duration)
	onError      func(token Token, err error)
}

type optionFunc func(*appOptions)

func (f optionFunc) apply(o *appOptions) {
	f(o)
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return optionFunc(func(o *appOptions) {
		if logger != nil {
			o.logger = logger
		}
	})
}

// WithGlobalPrefix sets the route prefix stored in the ApplicationConfig.
func WithGlobalPrefix(prefix string) Option {
	return optionFunc(func(o *appOptions) {
		o.globalPrefix = prefix
	})
}

// WithOnResolved registers a callback invoked after each instance is constructed.
// It runs on the constructing goroutine and must not block.
func WithOnResolved(fn func(token Token, instance any, duration time.Duration)) Option {
	return optionFunc(func(o *appOptions) {
		o.onResolved = fn
	})
}

// WithOnError registers a callback invoked when a construction fails.
func WithOnError(fn func(token Token, err error)) Option {
	return optionFunc(func(o *appOptions) {
		o.onError = fn
	})
}

func newAppOptions(opts []Option) *appOptions {
	o := &appOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(o)
		}
	}
	return o
}

// LookupOption configures Get and Resolve.
type LookupOption interface {
	applyLookup(*lookupOptions)
}

type lookupOptions struct {
	strict    *bool
	contextID *ContextID
}

type lookupOptionFunc func(*lookupOptions)

func (f lookupOptionFunc) applyLookup(o *lookupOptions) {
	f(o)
}

// Strict restricts the lookup to the selected module.
func Strict() LookupOption {
	return lookupOptionFunc(func(o *lookupOptions) {
		strict := true
		o.strict = &strict
	})
}

// Anywhere searches every module of the application. It is the default of
// Application and undoes the strict default of ModuleRef.
func Anywhere() LookupOption {
	return lookupOptionFunc(func(o *lookupOptions) {
		strict := false
		o.strict = &strict
	})
}

// WithContextID makes Resolve construct instances for id. Release the id with
// Application.ReleaseContext when done with it.
func WithContextID(id ContextID) LookupOption {
	return lookupOptionFunc(func(o *lookupOptions) {
		o.contextID = &id
	})
}

func newLookupOptions(opts []LookupOption) *lookupOptions {
	o := &lookupOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt.applyLookup(o)
		}
	}
	return o
}

func (o *lookupOptions) isStrict(def bool) bool {
	if o.strict == nil {
		return def
	}
	return *o.strict
}

// resolveContext picks the context id: the option, then the one carried by
// ctx, then fallback.
func (o *lookupOptions) resolveContext(ctx context.Context, fallback ContextID) ContextID {
	if o.contextID != nil {
		return *o.contextID
	}
	if id, ok := ContextIDFromContext(ctx); ok {
		return id
	}
	return fallback
}
