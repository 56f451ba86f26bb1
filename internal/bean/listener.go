package bean

// ListenerFunc receives the new value, the previous value and the
// property name.
type ListenerFunc func(newValue, oldValue any, name string)

// Listener is a registered callback. Its identity is the pointer, which
// is what makes AddListener idempotent and RemoveListener precise.
type Listener struct {
	fn ListenerFunc
}

// NewListener wraps fn in a Listener.
func NewListener(fn ListenerFunc) *Listener {
	return &Listener{fn: fn}
}

// On is shorthand for a listener that ignores its arguments.
func On(fn func()) *Listener {
	return NewListener(func(any, any, string) { fn() })
}
