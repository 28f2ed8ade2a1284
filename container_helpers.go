package nestor

import (
	"context"
	"fmt"
)

// Resolver is implemented by Application and ModuleRef.
type Resolver interface {
	Get(token Token, opts ...LookupOption) (any, error)
	Resolve(ctx context.Context, token Token, opts ...LookupOption) (any, error)
}

var (
	_ Resolver = (*Application)(nil)
	_ Resolver = (*ModuleRef)(nil)
)

// Get is a generic helper that returns the static instance registered under
// the type T.
func Get[T any](r Resolver, opts ...LookupOption) (T, error) {
	return GetToken[T](r, TokenOf[T](), opts...)
}

// GetToken is a generic helper that returns the static instance registered
// under token as a T.
func GetToken[T any](r Resolver, token Token, opts ...LookupOption) (T, error) {
	var zero T

	instance, err := r.Get(token, opts...)
	if err != nil {
		return zero, err
	}
	return assertInstance[T](instance, token)
}

// Resolve is a generic helper that resolves the instance registered under the
// type T for a context id.
func Resolve[T any](ctx context.Context, r Resolver, opts ...LookupOption) (T, error) {
	return ResolveToken[T](ctx, r, TokenOf[T](), opts...)
}

// ResolveToken is a generic helper that resolves the instance registered under
// token as a T.
func ResolveToken[T any](ctx context.Context, r Resolver, token Token, opts ...LookupOption) (T, error) {
	var zero T

	instance, err := r.Resolve(ctx, token, opts...)
	if err != nil {
		return zero, err
	}
	return assertInstance[T](instance, token)
}

// MustGet returns the static instance registered under the type T and panics on error.
func MustGet[T any](r Resolver, opts ...LookupOption) T {
	result, err := Get[T](r, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to get %T: %v", *new(T), err))
	}
	return result
}

// MustResolve resolves the instance registered under the type T and panics on error.
func MustResolve[T any](ctx context.Context, r Resolver, opts ...LookupOption) T {
	result, err := Resolve[T](ctx, r, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to resolve %T: %v", *new(T), err))
	}
	return result
}

func assertInstance[T any](instance any, token Token) (T, error) {
	var zero T
	if instance == nil {
		return zero, nil
	}

	result, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("type assertion failed for %s: expected %T, got %T", tokenName(token), zero, instance)
	}
	return result, nil
}
