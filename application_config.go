package nestor

import "sync"

// ApplicationConfig holds cross-cutting configuration consumed by transport
// layers: the global route prefix and the application-wide enhancers.
// Providers registered under AppGuard, AppPipe, AppFilter or AppInterceptor
// are added here once they are constructed.
type ApplicationConfig struct {
	mu           sync.RWMutex
	globalPrefix string
	pipes        []any
	guards       []any
	filters      []any
	interceptors []any
}

// SetGlobalPrefix sets the prefix transport layers put before every route.
func (c *ApplicationConfig) SetGlobalPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalPrefix = prefix
}

// GlobalPrefix returns the global route prefix.
func (c *ApplicationConfig) GlobalPrefix() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.globalPrefix
}

// UseGlobalPipes appends application-wide pipes.
func (c *ApplicationConfig) UseGlobalPipes(pipes ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pipes = append(c.pipes, pipes...)
}

// UseGlobalGuards appends application-wide guards.
func (c *ApplicationConfig) UseGlobalGuards(guards ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.guards = append(c.guards, guards...)
}

// UseGlobalFilters appends application-wide exception filters.
func (c *ApplicationConfig) UseGlobalFilters(filters ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters = append(c.filters, filters...)
}

// UseGlobalInterceptors appends application-wide interceptors.
func (c *ApplicationConfig) UseGlobalInterceptors(interceptors ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interceptors = append(c.interceptors, interceptors...)
}

// GlobalPipes returns a copy of the application-wide pipes.
func (c *ApplicationConfig) GlobalPipes() []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]any(nil), c.pipes...)
}

// GlobalGuards returns a copy of the application-wide guards.
func (c *ApplicationConfig) GlobalGuards() []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]any(nil), c.guards...)
}

// GlobalFilters returns a copy of the application-wide filters.
func (c *ApplicationConfig) GlobalFilters() []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]any(nil), c.filters...)
}

// GlobalInterceptors returns a copy of the application-wide interceptors.
func (c *ApplicationConfig) GlobalInterceptors() []any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]any(nil), c.interceptors...)
}

func (c *ApplicationConfig) addEnhancer(kind GlobalEnhancer, instance any) {
	switch kind {
	case AppGuard:
		c.UseGlobalGuards(instance)
	case AppPipe:
		c.UseGlobalPipes(instance)
	case AppFilter:
		c.UseGlobalFilters(instance)
	case AppInterceptor:
		c.UseGlobalInterceptors(instance)
	}
}
