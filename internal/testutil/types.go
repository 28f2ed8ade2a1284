package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrAlreadyDisposed is returned by test disposables closed twice.
var ErrAlreadyDisposed = errors.New("already disposed")

// Recorder collects events in the order they happen. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Record appends an event.
func (r *Recorder) Record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf(format, args...))
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// Reset forgets every event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// TestDatabase is a provider holding a resource.
type TestDatabase struct {
	ID   string
	Name string

	recorder *Recorder
	mu       sync.Mutex
	closed   bool
	closeErr error
}

// NewTestDatabase creates a database that records its disposal in recorder.
func NewTestDatabase(name string, recorder *Recorder) *TestDatabase {
	return &TestDatabase{ID: uuid.NewString(), Name: name, recorder: recorder}
}

// FailClose makes Close return err.
func (d *TestDatabase) FailClose(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeErr = err
}

// Close implements nestor.Disposable.
func (d *TestDatabase) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrAlreadyDisposed
	}
	d.closed = true
	if d.recorder != nil {
		d.recorder.Record("close %s", d.Name)
	}
	return d.closeErr
}

// IsClosed reports whether Close was called.
func (d *TestDatabase) IsClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// TestContextDisposable implements nestor.DisposableWithContext.
type TestContextDisposable struct {
	ID string

	mu  sync.Mutex
	ctx context.Context
}

// NewTestContextDisposable creates a context-aware disposable.
func NewTestContextDisposable() *TestContextDisposable {
	return &TestContextDisposable{ID: uuid.NewString()}
}

// Close records the context it was closed with.
func (d *TestContextDisposable) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ctx != nil {
		return ErrAlreadyDisposed
	}
	d.ctx = ctx
	return nil
}

// ClosedWith returns the context passed to Close, or nil.
func (d *TestContextDisposable) ClosedWith() context.Context {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ctx
}

// HookRecorder implements every lifecycle hook and records each call.
type HookRecorder struct {
	Name     string
	recorder *Recorder
	fail     map[string]error
}

// NewHookRecorder creates a hook implementation named name.
func NewHookRecorder(name string, recorder *Recorder) *HookRecorder {
	return &HookRecorder{Name: name, recorder: recorder, fail: make(map[string]error)}
}

// FailOn makes the named hook return err.
func (h *HookRecorder) FailOn(hook string, err error) *HookRecorder {
	h.fail[hook] = err
	return h
}

func (h *HookRecorder) record(hook string) error {
	h.recorder.Record("%s %s", hook, h.Name)
	return h.fail[hook]
}

func (h *HookRecorder) OnModuleInit(context.Context) error { return h.record("init") }

func (h *HookRecorder) OnApplicationBootstrap(context.Context) error {
	return h.record("bootstrap")
}

func (h *HookRecorder) OnModuleDestroy(context.Context) error { return h.record("destroy") }

func (h *HookRecorder) BeforeApplicationShutdown(_ context.Context, signal string) error {
	return h.record("before-shutdown" + signalSuffix(signal))
}

func (h *HookRecorder) OnApplicationShutdown(_ context.Context, signal string) error {
	return h.record("shutdown" + signalSuffix(signal))
}

func signalSuffix(signal string) string {
	if signal == "" {
		return ""
	}
	return "(" + signal + ")"
}
