package nestor

import (
	"fmt"
	"reflect"
)

// Token identifies a provider inside a module. A token is any comparable value:
// a reflect.Type (the default for class providers), a string, or a custom
// comparable value such as a pointer or a named string type.
type Token = any

// TokenOf returns the token of type T. Constructor parameters of type T are
// resolved with this token.
func TokenOf[T any]() Token {
	return reflect.TypeFor[T]()
}

// forwardReference defers the evaluation of a token. It is a pointer so that
// it stays comparable.
type forwardReference struct {
	fn func() Token
}

// ForwardRef wraps a token that is not available yet, or marks one side of a
// circular dependency. The consumer of a forward reference may receive an
// instance whose fields are populated only after its own construction finished.
//
// Example:
//
//	nestor.Class(NewCatsService, nestor.InjectAt(0, nestor.ForwardRef(func() nestor.Token {
//	    return nestor.TokenOf[*DogsService]()
//	})))
func ForwardRef(fn func() Token) Token {
	return &forwardReference{fn: fn}
}

// unwrapToken returns the real token and whether t was a forward reference.
func unwrapToken(t Token) (Token, bool) {
	if ref, ok := t.(*forwardReference); ok && ref != nil {
		if ref.fn == nil {
			return nil, true
		}
		return ref.fn(), true
	}
	return t, false
}

func validateToken(t Token) error {
	if t == nil {
		return ErrTokenNil
	}
	if !reflect.TypeOf(t).Comparable() {
		return fmt.Errorf("%w: got %T", ErrTokenNotComparable, t)
	}
	return nil
}

// tokenName renders a token for logs and errors.
func tokenName(t Token) string {
	switch v := t.(type) {
	case nil:
		return "<nil>"
	case reflect.Type:
		return formatType(v)
	case string:
		return v
	case *ModuleDef:
		return v.Name()
	case *forwardReference:
		return "ForwardRef"
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
