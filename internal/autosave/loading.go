package autosave

import "sync"

// LoadingScope marks a bulk population of the view. While any scope is
// open the cache drops change notifications.
type LoadingScope struct {
	c    *Cache
	once sync.Once
}

// BeginLoading opens a loading scope. Scopes nest; the cache goes back to
// live mode when the last one ends.
func (c *Cache) BeginLoading() *LoadingScope {
	c.mu.Lock()
	c.loading++
	c.mu.Unlock()
	return &LoadingScope{c: c}
}

// End closes the scope. Calling it more than once is a no-op.
func (s *LoadingScope) End() {
	s.once.Do(func() {
		s.c.mu.Lock()
		if s.c.loading > 0 {
			s.c.loading--
		}
		s.c.mu.Unlock()
	})
}

// WithLoading runs fn inside a loading scope. The scope is closed even if
// fn panics.
func (c *Cache) WithLoading(fn func()) {
	scope := c.BeginLoading()
	defer scope.End()
	fn()
}
