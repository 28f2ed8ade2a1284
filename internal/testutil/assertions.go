package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/junioryono/nestor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertGet checks that the static instance of T can be retrieved.
func AssertGet[T any](t *testing.T, r nestor.Resolver, opts ...nestor.LookupOption) T {
	t.Helper()
	instance, err := nestor.Get[T](r, opts...)
	require.NoError(t, err, "failed to get %T", *new(T))
	require.NotNil(t, instance, "instance of %T is nil", *new(T))
	return instance
}

// AssertResolve checks that T can be resolved.
func AssertResolve[T any](t *testing.T, ctx context.Context, r nestor.Resolver, opts ...nestor.LookupOption) T {
	t.Helper()
	instance, err := nestor.Resolve[T](ctx, r, opts...)
	require.NoError(t, err, "failed to resolve %T", *new(T))
	require.NotNil(t, instance, "resolved instance of %T is nil", *new(T))
	return instance
}

// AssertUnknownDependency checks that err reports dependency name missing in module.
func AssertUnknownDependency(t *testing.T, err error, name, module string) {
	t.Helper()
	var unknown nestor.UnknownDependenciesError
	require.True(t, errors.As(err, &unknown), "expected UnknownDependenciesError, got %v", err)
	assert.Equal(t, name, unknown.Context.Name)
	assert.Equal(t, module, unknown.Module)
}

// AssertCircular checks that err is a circular dependency error.
func AssertCircular(t *testing.T, err error) *nestor.CircularDependencyError {
	t.Helper()
	var circular *nestor.CircularDependencyError
	require.True(t, errors.As(err, &circular), "expected CircularDependencyError, got %v", err)
	assert.NotEmpty(t, circular.Path)
	return circular
}
