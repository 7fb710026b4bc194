package entity

// Lazy caches a value that is loaded on first use. Unlike an empty check on
// the value itself, it tells "never loaded" apart from "loaded and empty".
type Lazy[T any] struct {
	value  T
	loaded bool
}

// Get returns the cached value, calling load the first time. A failed load
// leaves the cache empty so the next Get retries.
func (l *Lazy[T]) Get(load func() (T, error)) (T, error) {
	if l.loaded {
		return l.value, nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	l.value, l.loaded = v, true
	return v, nil
}

// Set stores v as the cached value.
func (l *Lazy[T]) Set(v T) {
	l.value, l.loaded = v, true
}

// Peek returns the cached value without loading.
func (l *Lazy[T]) Peek() (T, bool) {
	return l.value, l.loaded
}

// Reset drops the cached value.
func (l *Lazy[T]) Reset() {
	var zero T
	l.value, l.loaded = zero, false
}
