package forms

import "sync"

// Field tracks one input: its value, whether the user has left it and
// whether the value passes check. Errors are shown only once touched.
type Field struct {
	check func(string) bool

	mu      sync.Mutex
	value   string
	touched bool
}

// NewField creates an empty, untouched field validated by check.
func NewField(check func(string) bool) *Field {
	return &Field{check: check}
}

// Change sets the value, as on every keystroke.
func (f *Field) Change(value string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.value = value
}

// Blur marks the field as touched, as when focus leaves it.
func (f *Field) Blur() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.touched = true
}

// Reset clears the value and the touched mark.
func (f *Field) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.value = ""
	f.touched = false
}

// Value returns the current value.
func (f *Field) Value() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.value
}

// Touched reports whether the field has been blurred since the last reset.
func (f *Field) Touched() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.touched
}

// Valid reports whether the current value passes the check.
func (f *Field) Valid() bool {
	return f.check(f.Value())
}

// HasError reports whether the field is touched and invalid.
func (f *Field) HasError() bool {
	return f.Touched() && !f.Valid()
}
