package nestor

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/junioryono/nestor/internal/graph"
)

// ========================================
// Core Error Values (Sentinel Errors)
// ========================================
// These are base errors that should be wrapped in typed errors when returned.

var (
	// Application errors.
	ErrApplicationClosed = errors.New("application has been closed")
	ErrRootModuleNil     = errors.New("root module cannot be nil")

	// Registration errors.
	ErrConstructorNil     = errors.New("constructor cannot be nil")
	ErrTokenNil           = errors.New("token cannot be nil")
	ErrTokenNotComparable = errors.New("token must be comparable")
)

var (
	_ error = ScopeError{}
	_ error = UndefinedDependencyError{}
	_ error = UnknownDependenciesError{}
	_ error = RuntimeError{}
	_ error = InvalidClassScopeError{}
	_ error = UnknownExportError{}
	_ error = UndefinedModuleError{}
	_ error = InvalidModuleError{}
	_ error = UnknownElementError{}
	_ error = UnknownModuleError{}
	_ error = RegistrationError{}
	_ error = ConstructorInvocationError{}
	_ error = ConstructorPanicError{}
	_ error = HookError{}
	_ error = DisposalError{}
	_ error = CircularDependencyError{}
)

// ========================================
// Typed Errors for Rich Context
// ========================================

// ScopeError indicates an invalid provider scope value.
type ScopeError struct {
	Value any
}

func (e ScopeError) Error() string {
	return fmt.Sprintf("invalid provider scope: %v", e.Value)
}

// CircularDependencyError is raised when two constructions wait on each other.
type CircularDependencyError = graph.CircularDependencyError

// DependencyContext describes the dependency being resolved when an error occurred.
// It is carried only to produce precise messages.
type DependencyContext struct {
	// Key is the struct field name for field injection, empty for parameters.
	Key string

	// Name is the rendered token of the dependency.
	Name string

	// Index is the parameter index, or -1 for field injection.
	Index int

	// Dependencies are the rendered tokens of every parameter of the owner.
	Dependencies []string
}

func (d DependencyContext) describe(owner string) string {
	if d.Key != "" {
		return fmt.Sprintf("%s.%s", owner, d.Key)
	}

	args := make([]string, len(d.Dependencies))
	for i, dep := range d.Dependencies {
		if i == d.Index {
			args[i] = "?"
			continue
		}
		args[i] = dep
	}
	return fmt.Sprintf("%s(%s)", owner, strings.Join(args, ", "))
}

// UndefinedDependencyError indicates the token of a dependency could not be determined.
type UndefinedDependencyError struct {
	Owner   string
	Module  string
	Context DependencyContext
}

func (e UndefinedDependencyError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("cannot determine the dependency of %s at index [%d] in module %s\n\n",
		e.Context.describe(e.Owner), e.Context.Index, e.Module))

	b.WriteString("To resolve this:\n")
	b.WriteString("  • Give the parameter a concrete type instead of any\n")
	b.WriteString(fmt.Sprintf("  • Declare the token explicitly with nestor.InjectAt(%d, token)\n", e.Context.Index))
	b.WriteString("  • Use nestor.ForwardRef if the token is not yet initialized\n")

	return b.String()
}

// UnknownDependenciesError indicates a token could not be found in the owning module
// or in any module it imports that exports it.
type UnknownDependenciesError struct {
	Owner   string
	Module  string
	Context DependencyContext
}

func (e UnknownDependenciesError) Error() string {
	var b strings.Builder
	if e.Context.Key != "" {
		b.WriteString(fmt.Sprintf("cannot resolve dependency %s of %s (field %s) in module %s\n\n",
			e.Context.Name, e.Owner, e.Context.Key, e.Module))
	} else {
		b.WriteString(fmt.Sprintf("cannot resolve dependency %s of %s at index [%d] in module %s\n\n",
			e.Context.Name, e.Context.describe(e.Owner), e.Context.Index, e.Module))
	}

	b.WriteString("To resolve this:\n")
	b.WriteString(fmt.Sprintf("  • Add %s to the providers of %s\n", e.Context.Name, e.Module))
	b.WriteString(fmt.Sprintf("  • Export %s from the module that provides it and import that module\n", e.Context.Name))
	b.WriteString("  • Mark the dependency optional if it may be absent\n")

	return b.String()
}

// RuntimeError indicates an internal invariant was violated, usually an incomplete scan.
type RuntimeError struct {
	Message string
}

func (e RuntimeError) Error() string {
	if e.Message == "" {
		return "unexpected runtime error: the module graph is incomplete or corrupted"
	}
	return "unexpected runtime error: " + e.Message
}

// InvalidClassScopeError indicates a request-scoped or transient token was requested
// through Get instead of Resolve.
type InvalidClassScopeError struct {
	Token string
}

func (e InvalidClassScopeError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s is marked as a scoped provider and cannot be retrieved with Get\n\n", e.Token))
	b.WriteString("To resolve this:\n")
	b.WriteString("  • Use Resolve with a context id instead\n")
	b.WriteString("  • Change the provider and its dependencies to Singleton scope\n")
	return b.String()
}

// UnknownExportError indicates a module exports a token it neither provides nor imports.
type UnknownExportError struct {
	Token  string
	Module string
}

func (e UnknownExportError) Error() string {
	return fmt.Sprintf("module %s cannot export %s: it is neither a provider nor an imported module", e.Module, e.Token)
}

// UndefinedModuleError indicates a nil import, typically an uninitialized module variable.
type UndefinedModuleError struct {
	Parent string
	Index  int
	Scope  []string
}

func (e UndefinedModuleError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("cannot resolve the import at index [%d] of module %s", e.Index, e.Parent))
	if len(e.Scope) > 0 {
		b.WriteString(fmt.Sprintf(" (scope: %s)", strings.Join(e.Scope, " -> ")))
	}
	b.WriteString("\n\nTo resolve this:\n")
	b.WriteString("  • Check for package-level module variables that reference each other\n")
	b.WriteString("  • Wrap mutually importing modules with nestor.ForwardRefModule\n")
	return b.String()
}

// InvalidModuleError indicates an import that does not resolve to a module definition.
type InvalidModuleError struct {
	Parent string
	Index  int
	Cause  error
}

func (e InvalidModuleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid import at index [%d] of module %s: %v", e.Index, e.Parent, e.Cause)
	}
	return fmt.Sprintf("invalid import at index [%d] of module %s", e.Index, e.Parent)
}

func (e InvalidModuleError) Unwrap() error {
	return e.Cause
}

// UnknownElementError indicates Get or Resolve found no provider for the token.
type UnknownElementError struct {
	Token  string
	Module string // empty unless the lookup was strict
}

func (e UnknownElementError) Error() string {
	if e.Module != "" {
		return fmt.Sprintf("%s is not provided by module %s", e.Token, e.Module)
	}
	return fmt.Sprintf("%s is not provided by any module", e.Token)
}

// UnknownModuleError indicates Select was given a module that is not part of the graph.
type UnknownModuleError struct {
	Module string
}

func (e UnknownModuleError) Error() string {
	return fmt.Sprintf("module %s is not part of the application graph", e.Module)
}

// RegistrationError wraps errors that occur while declarations are turned into wrappers.
type RegistrationError struct {
	Token  string
	Module string
	Cause  error
}

func (e RegistrationError) Error() string {
	return fmt.Sprintf("failed to register %s in module %s: %v", e.Token, e.Module, e.Cause)
}

func (e RegistrationError) Unwrap() error {
	return e.Cause
}

// ConstructorInvocationError for constructor call failures
type ConstructorInvocationError struct {
	Token       string
	Constructor reflect.Type
	Parameters  []reflect.Type
	Cause       error
}

func (e ConstructorInvocationError) Error() string {
	paramStrs := make([]string, len(e.Parameters))
	for i, p := range e.Parameters {
		paramStrs[i] = formatType(p)
	}
	return fmt.Sprintf("failed to construct %s with %s [%s]: %v",
		e.Token, formatType(e.Constructor), strings.Join(paramStrs, ", "), e.Cause)
}

func (e ConstructorInvocationError) Unwrap() error {
	return e.Cause
}

// ConstructorPanicError indicates a constructor panicked during invocation.
// It captures the panic value and stack trace for debugging.
type ConstructorPanicError struct {
	Token       string
	Constructor reflect.Type
	Panic       any
	Stack       []byte
}

func (e ConstructorPanicError) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("constructor %s of %s panicked: %v\n", formatType(e.Constructor), e.Token, e.Panic))

	b.WriteString("\nTo resolve this:\n")
	b.WriteString("  • Check for nil pointer dereferences in your constructor\n")
	b.WriteString("  • Do not read fields of forward-referenced dependencies while constructing\n")
	b.WriteString("  • Move panic-prone initialization to OnModuleInit\n")

	if len(e.Stack) > 0 {
		b.WriteString("\nStack trace:\n")
		b.Write(e.Stack)
	}

	return b.String()
}

// HookError wraps a failing lifecycle hook.
type HookError struct {
	Hook   string
	Module string
	Token  string
	Cause  error
}

func (e HookError) Error() string {
	return fmt.Sprintf("%s hook of %s in module %s failed: %v", e.Hook, e.Token, e.Module, e.Cause)
}

func (e HookError) Unwrap() error {
	return e.Cause
}

// DisposalError aggregates disposal errors
type DisposalError struct {
	Errors []error
}

func (e DisposalError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("disposal failed: %v", e.Errors[0])
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("disposal failed with %d errors:", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
	}
	return sb.String()
}

func (e DisposalError) Unwrap() []error {
	return e.Errors
}

// formatType formats a reflect.Type for error messages.
func formatType(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}

	switch t.Kind() {
	case reflect.Pointer:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "*" + elem.Name()
		}
		return t.String()
	case reflect.Slice:
		elem := t.Elem()
		if elem.PkgPath() != "" && elem.Name() != "" {
			return "[]" + elem.Name()
		}
		return t.String()
	case reflect.Func:
		return t.String()
	default:
		if t.Name() != "" {
			return t.Name()
		}
		return t.String()
	}
}
