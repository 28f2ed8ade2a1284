package nestor

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// ProviderKind tags how a provider produces its instance.
type ProviderKind int

const (
	// ClassProvider calls a constructor whose parameters are dependencies.
	ClassProvider ProviderKind = iota

	// ValueProvider registers an existing value.
	ValueProvider

	// FactoryProvider calls a factory function with explicitly injected tokens.
	FactoryProvider

	// ExistingProvider aliases another token.
	ExistingProvider
)

// String returns the string representation of the ProviderKind.
func (k ProviderKind) String() string {
	switch k {
	case ClassProvider:
		return "Class"
	case ValueProvider:
		return "Value"
	case FactoryProvider:
		return "Factory"
	case ExistingProvider:
		return "Existing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(k))
	}
}

// GlobalEnhancer tokens register a provider as an application-wide guard, pipe,
// filter or interceptor. Any number of providers may use the same enhancer token.
type GlobalEnhancer string

const (
	AppGuard       GlobalEnhancer = "APP_GUARD"
	AppPipe        GlobalEnhancer = "APP_PIPE"
	AppFilter      GlobalEnhancer = "APP_FILTER"
	AppInterceptor GlobalEnhancer = "APP_INTERCEPTOR"
)

type coreToken string

// RequestToken resolves to the request registered with
// Application.RegisterRequestByContextID for the current context id.
// It is request scoped and available in every module.
const RequestToken coreToken = "REQUEST"

// Provider is a declaration of how a token is satisfied. Providers are created
// with Class, Value, Factory and Existing and are turned into instance
// wrappers once, when the module is scanned.
type Provider struct {
	kind       ProviderKind
	token      Token
	fn         any
	value      any
	existing   Token
	inject     []Token
	selfParams map[int]Token
	optional   map[int]bool
	scope      Scope
	enhancers  []any
}

// Class declares a provider built by calling constructor. The token defaults
// to the constructor's first result type.
//
// Example:
//
//	nestor.Class(NewUserService)
//	nestor.Class(NewUserService, nestor.WithScope(nestor.Request))
func Class(constructor any, opts ...ProviderOption) Provider {
	p := Provider{kind: ClassProvider, fn: constructor}
	return p.with(opts)
}

// Value declares a provider that always resolves to value.
func Value(token Token, value any, opts ...ProviderOption) Provider {
	p := Provider{kind: ValueProvider, token: token, value: value}
	return p.with(opts)
}

// Factory declares a provider built by calling fn. When Inject is used the
// factory parameters are resolved from the given tokens in order; otherwise
// the parameter types are used as tokens. Struct fields of the result are
// never injected.
//
// Example:
//
//	nestor.Factory("connection", func(ctx context.Context, opts *Options) (*sql.DB, error) {
//	    return sql.Open("postgres", opts.DSN)
//	}, nestor.Inject(nestor.TokenOf[*Options]()))
func Factory(token Token, fn any, opts ...ProviderOption) Provider {
	p := Provider{kind: FactoryProvider, token: token, fn: fn}
	return p.with(opts)
}

// Existing declares token as an alias of existing. Both resolve to the same instance.
func Existing(token, existing Token, opts ...ProviderOption) Provider {
	p := Provider{kind: ExistingProvider, token: token, existing: existing}
	return p.with(opts)
}

func (p Provider) with(opts []ProviderOption) Provider {
	for _, opt := range opts {
		if opt != nil {
			opt.applyProviderOption(&p)
		}
	}
	return p
}

// Kind returns the provider kind.
func (p Provider) Kind() ProviderKind {
	return p.kind
}

// Scope returns the declared scope.
func (p Provider) Scope() Scope {
	return p.scope
}

// Token returns the token the provider is registered under.
func (p Provider) Token() Token {
	if p.token != nil {
		return p.token
	}
	if p.kind == ClassProvider && p.fn != nil {
		t := reflect.TypeOf(p.fn)
		if t.Kind() == reflect.Func && t.NumOut() > 0 {
			return t.Out(0)
		}
	}
	return nil
}

func (p Provider) String() string {
	return fmt.Sprintf("%s(%s)", p.kind, tokenName(p.Token()))
}

// fingerprint describes the provider for module token computation.
// Two providers with the same fingerprint are considered structurally equal.
func (p Provider) fingerprint() map[string]any {
	fp := map[string]any{
		"kind":  p.kind.String(),
		"token": tokenName(p.Token()),
		"scope": p.scope.String(),
	}
	if p.fn != nil {
		fp["fn"] = funcName(p.fn)
	}
	if p.kind == ValueProvider {
		fp["value"] = valueFingerprint(p.value)
	}
	if p.existing != nil {
		fp["existing"] = tokenName(p.existing)
	}
	if len(p.inject) > 0 {
		names := make([]string, len(p.inject))
		for i, t := range p.inject {
			names[i] = tokenName(t)
		}
		fp["inject"] = names
	}
	if len(p.selfParams) > 0 {
		keys := make([]string, 0, len(p.selfParams))
		for idx, t := range p.selfParams {
			keys = append(keys, fmt.Sprintf("%d=%s", idx, tokenName(t)))
		}
		sort.Strings(keys)
		fp["params"] = strings.Join(keys, ",")
	}
	return fp
}

// A ProviderOption modifies a provider declaration.
type ProviderOption interface {
	applyProviderOption(*Provider)
}

type providerOptionFunc func(*Provider)

func (f providerOptionFunc) applyProviderOption(p *Provider) {
	f(p)
}

// WithToken registers the provider under token instead of its default token.
func WithToken(token Token) ProviderOption {
	return providerOptionFunc(func(p *Provider) {
		p.token = token
	})
}

// WithScope sets the provider scope. Value providers are always singletons.
func WithScope(scope Scope) ProviderOption {
	return providerOptionFunc(func(p *Provider) {
		p.scope = scope
	})
}

// Inject lists the tokens passed to a factory, in parameter order. On a class
// provider it overrides the token of every parameter.
func Inject(tokens ...Token) ProviderOption {
	return providerOptionFunc(func(p *Provider) {
		p.inject = append([]Token{}, tokens...)
	})
}

// InjectAt overrides the token of the constructor parameter at index.
// Indices do not count a leading context.Context parameter.
func InjectAt(index int, token Token) ProviderOption {
	return providerOptionFunc(func(p *Provider) {
		if p.selfParams == nil {
			p.selfParams = make(map[int]Token)
		}
		p.selfParams[index] = token
	})
}

// Optional marks the parameters at the given indices optional. A missing optional
// dependency resolves to the zero value of the parameter type.
func Optional(indices ...int) ProviderOption {
	return providerOptionFunc(func(p *Provider) {
		if p.optional == nil {
			p.optional = make(map[int]bool)
		}
		for _, idx := range indices {
			p.optional[idx] = true
		}
	})
}

// Enhancers attaches guards, interceptors, pipes or filters to a controller or
// provider. Each enhancer is a constructor or a Provider; it is registered as an
// injectable of the module and loaded with the owner as its consumer.
func Enhancers(enhancers ...any) ProviderOption {
	return providerOptionFunc(func(p *Provider) {
		p.enhancers = append(p.enhancers, enhancers...)
	})
}

// toProvider normalizes a provider declaration. Bare functions are class providers.
func toProvider(item any) (Provider, error) {
	switch v := item.(type) {
	case nil:
		return Provider{}, ErrConstructorNil
	case Provider:
		return v, nil
	case *Provider:
		if v == nil {
			return Provider{}, ErrConstructorNil
		}
		return *v, nil
	}

	if reflect.TypeOf(item).Kind() == reflect.Func {
		return Class(item), nil
	}
	return Provider{}, fmt.Errorf("unsupported provider declaration %T: use a constructor or nestor.Class, Value, Factory or Existing", item)
}
