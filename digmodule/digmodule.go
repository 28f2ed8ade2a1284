// Package digmodule bridges go.uber.org/dig containers and nestor modules.
//
// New wraps values built by a dig container in a module, so code already
// wired with dig can be imported by a nestor application:
//
//	c := dig.New()
//	_ = c.Provide(NewLegacyDatabase)
//
//	var LegacyModule = digmodule.New("LegacyModule", c, reflect.TypeFor[*LegacyDatabase]())
//
// Export goes the other way and makes static nestor instances available to a
// dig container.
package digmodule

import (
	"fmt"
	"reflect"

	"github.com/junioryono/nestor"
	"go.uber.org/dig"
)

var errorType = reflect.TypeFor[error]()

// New returns a module providing and exporting each of types. Every type is
// extracted from c the first time it is needed. The container is not invoked
// when the module is declared.
func New(name string, c *dig.Container, types ...reflect.Type) *nestor.ModuleDef {
	providers := make([]any, 0, len(types))
	exports := make([]nestor.Token, 0, len(types))
	for _, t := range types {
		providers = append(providers, nestor.Factory(t, extractor(c, t).Interface()))
		exports = append(exports, t)
	}

	return nestor.NewModule(name,
		nestor.Providers(providers...),
		nestor.Exports(exports...),
	)
}

// extractor builds a func() (t, error) returning the value of type t from c.
func extractor(c *dig.Container, t reflect.Type) reflect.Value {
	fnType := reflect.FuncOf(nil, []reflect.Type{t, errorType}, false)

	return reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
		var out reflect.Value
		receive := reflect.MakeFunc(reflect.FuncOf([]reflect.Type{t}, nil, false), func(args []reflect.Value) []reflect.Value {
			out = args[0]
			return nil
		})

		if err := c.Invoke(receive.Interface()); err != nil {
			err = fmt.Errorf("failed to extract %v from dig container: %w", t, dig.RootCause(err))
			return []reflect.Value{reflect.Zero(t), reflect.ValueOf(&err).Elem()}
		}
		return []reflect.Value{out, reflect.Zero(errorType)}
	})
}

// Export provides each of types to c, backed by the static instance r holds
// for the type.
func Export(c *dig.Container, r nestor.Resolver, types ...reflect.Type) error {
	for _, t := range types {
		fnType := reflect.FuncOf(nil, []reflect.Type{t, errorType}, false)
		fn := reflect.MakeFunc(fnType, func([]reflect.Value) []reflect.Value {
			instance, err := r.Get(t)
			if err != nil {
				return []reflect.Value{reflect.Zero(t), reflect.ValueOf(&err).Elem()}
			}
			if instance == nil {
				return []reflect.Value{reflect.Zero(t), reflect.Zero(errorType)}
			}
			return []reflect.Value{reflect.ValueOf(instance), reflect.Zero(errorType)}
		})

		if err := c.Provide(fn.Interface()); err != nil {
			return fmt.Errorf("failed to export %v to dig container: %w", t, err)
		}
	}
	return nil
}
