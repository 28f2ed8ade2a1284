package nestor

import (
	"context"
	"fmt"
	"reflect"
	"sync"
)

// lifecycleManager keeps the disposable instances created by the injector.
type lifecycleManager struct {
	mu          sync.Mutex
	disposables []any
	seen        map[any]struct{}
}

func newLifecycleManager() *lifecycleManager {
	return &lifecycleManager{
		seen: make(map[any]struct{}),
	}
}

// track records instance if it is disposable. An instance is tracked once even
// when it is reachable through several tokens.
func (m *lifecycleManager) track(instance any) {
	switch instance.(type) {
	case Disposable, DisposableWithContext:
	default:
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if reflect.TypeOf(instance).Comparable() {
		if _, ok := m.seen[instance]; ok {
			return
		}
		m.seen[instance] = struct{}{}
	}
	m.disposables = append(m.disposables, instance)
}

// dispose closes every tracked instance in reverse order and collects the failures.
func (m *lifecycleManager) dispose(ctx context.Context) error {
	m.mu.Lock()
	disposables := m.disposables
	m.disposables = nil
	m.seen = make(map[any]struct{})
	m.mu.Unlock()

	var errs []error
	for i := len(disposables) - 1; i >= 0; i-- {
		var err error
		switch d := disposables[i].(type) {
		case DisposableWithContext:
			err = d.Close(ctx)
		case Disposable:
			err = d.Close()
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("close %T: %w", disposables[i], err))
		}
	}

	if len(errs) > 0 {
		return DisposalError{Errors: errs}
	}
	return nil
}

// len returns the number of tracked instances.
func (m *lifecycleManager) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.disposables)
}
