package nestor

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type errorTestService struct{}

func TestSentinelErrors(t *testing.T) {
	sentinelErrors := []struct {
		err     error
		message string
	}{
		{ErrApplicationClosed, "application has been closed"},
		{ErrRootModuleNil, "root module cannot be nil"},
		{ErrConstructorNil, "constructor cannot be nil"},
		{ErrTokenNil, "token cannot be nil"},
		{ErrTokenNotComparable, "token must be comparable"},
	}

	for _, tt := range sentinelErrors {
		t.Run(tt.message, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.message)
		})
	}
}

func TestDependencyErrors(t *testing.T) {
	t.Run("unknown parameter", func(t *testing.T) {
		err := UnknownDependenciesError{
			Owner:  "*UsersService",
			Module: "UsersModule",
			Context: DependencyContext{
				Name:         "*Database",
				Index:        1,
				Dependencies: []string{"*Config", "*Database"},
			},
		}

		msg := err.Error()
		assert.Contains(t, msg, "cannot resolve dependency *Database of *UsersService(*Config, ?) at index [1] in module UsersModule")
		assert.Contains(t, msg, "Add *Database to the providers of UsersModule")
	})

	t.Run("unknown field", func(t *testing.T) {
		err := UnknownDependenciesError{
			Owner:   "*UsersService",
			Module:  "UsersModule",
			Context: DependencyContext{Key: "Cache", Name: "*Cache", Index: -1},
		}
		assert.Contains(t, err.Error(), "cannot resolve dependency *Cache of *UsersService (field Cache) in module UsersModule")
	})

	t.Run("undefined parameter", func(t *testing.T) {
		err := UndefinedDependencyError{
			Owner:   "*UsersService",
			Module:  "UsersModule",
			Context: DependencyContext{Index: 0, Dependencies: []string{"<nil>"}},
		}

		msg := err.Error()
		assert.Contains(t, msg, "*UsersService(?) at index [0]")
		assert.Contains(t, msg, "nestor.InjectAt(0, token)")
	})
}

func TestModuleErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "undefined module with scope",
			err:      UndefinedModuleError{Parent: "Feature", Index: 2, Scope: []string{"App", "Feature"}},
			contains: "index [2] of module Feature (scope: App -> Feature)",
		},
		{
			name:     "invalid module",
			err:      InvalidModuleError{Parent: "App", Index: 0, Cause: errors.New("import resolved to nil")},
			contains: "invalid import at index [0] of module App: import resolved to nil",
		},
		{
			name:     "unknown export",
			err:      UnknownExportError{Token: "*Cache", Module: "App"},
			contains: "module App cannot export *Cache",
		},
		{
			name:     "unknown module",
			err:      UnknownModuleError{Module: "Stranger"},
			contains: "module Stranger is not part of the application graph",
		},
		{
			name:     "unknown element strict",
			err:      UnknownElementError{Token: "*Cache", Module: "App"},
			contains: "*Cache is not provided by module App",
		},
		{
			name:     "runtime without message",
			err:      RuntimeError{},
			contains: "module graph is incomplete",
		},
		{
			name:     "invalid class scope",
			err:      InvalidClassScopeError{Token: "*RequestContext"},
			contains: "cannot be retrieved with Get",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.err.Error(), tt.contains)
		})
	}
}

func TestConstructorErrors(t *testing.T) {
	cause := errors.New("connection refused")
	ctor := reflect.TypeOf(func(string) (*errorTestService, error) { return nil, nil })

	t.Run("invocation", func(t *testing.T) {
		err := ConstructorInvocationError{
			Token:       "*errorTestService",
			Constructor: ctor,
			Parameters:  []reflect.Type{reflect.TypeOf("")},
			Cause:       cause,
		}
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "failed to construct *errorTestService")
		assert.Contains(t, err.Error(), "[string]")
	})

	t.Run("panic", func(t *testing.T) {
		err := ConstructorPanicError{
			Token:       "*errorTestService",
			Constructor: ctor,
			Panic:       "nil map",
			Stack:       []byte("goroutine 1"),
		}
		msg := err.Error()
		assert.Contains(t, msg, "panicked: nil map")
		assert.Contains(t, msg, "Stack trace:\ngoroutine 1")
	})
}

func TestErrorComposition(t *testing.T) {
	cause := errors.New("boom")

	wrapped := fmt.Errorf("bootstrap: %w", RegistrationError{
		Token:  "*errorTestService",
		Module: "App",
		Cause:  HookError{Hook: hookModuleInit, Module: "App", Token: "*errorTestService", Cause: cause},
	})

	assert.ErrorIs(t, wrapped, cause)

	var regErr RegistrationError
	assert.True(t, errors.As(wrapped, &regErr))
	var hookErr HookError
	assert.True(t, errors.As(wrapped, &hookErr))
	assert.Equal(t, "OnModuleInit", hookErr.Hook)

	disposal := DisposalError{Errors: []error{cause}}
	assert.Equal(t, "disposal failed: boom", disposal.Error())
	assert.ErrorIs(t, disposal, cause)
}

func TestCircularDependencyError(t *testing.T) {
	err := &CircularDependencyError{Node: "*Cats", Path: []string{"*Cats", "*Dogs"}}
	msg := err.Error()
	assert.Contains(t, msg, "*Cats\n      ↓\n    *Dogs")
	assert.Contains(t, msg, "*Cats (cycle)")
	assert.Contains(t, msg, "nestor.ForwardRef")

	self := CircularDependencyError{Node: "*Self"}
	assert.Contains(t, self.Error(), "*Self (cycle)")
}

func TestFormatType(t *testing.T) {
	tests := []struct {
		name     string
		typ      reflect.Type
		contains string
	}{
		{"pointer type", reflect.TypeFor[*errorTestService](), "errorTestService"},
		{"slice type", reflect.TypeFor[[]errorTestService](), "errorTestService"},
		{"map type", reflect.TypeFor[map[string]errorTestService](), "errorTestService"},
		{"interface type", reflect.TypeFor[error](), "error"},
		{"nil type", nil, "<nil>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, formatType(tt.typ), tt.contains)
		})
	}
}

func TestTokenName(t *testing.T) {
	def := NewModule("TokenModule")

	assert.Equal(t, "<nil>", tokenName(nil))
	assert.Equal(t, "CONFIG", tokenName("CONFIG"))
	assert.Equal(t, "TokenModule", tokenName(def))
	assert.Equal(t, "ForwardRef", tokenName(ForwardRef(func() Token { return "x" })))
	assert.Equal(t, "REQUEST", tokenName(RequestToken))
	assert.Equal(t, "42", tokenName(42))
	assert.Contains(t, tokenName(TokenOf[*errorTestService]()), "errorTestService")
}
