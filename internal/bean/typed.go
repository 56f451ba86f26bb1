package bean

// Typed accessors return the zero value when the stored value has a
// different type. They panic on unknown names, which can only come from a
// typo in the caller.

func (s *Store) mustGet(name string) any {
	v, err := s.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Bool returns a boolean property.
func (s *Store) Bool(name string) bool {
	b, _ := s.mustGet(name).(bool)
	return b
}

// Float returns a numeric property.
func (s *Store) Float(name string) float64 {
	f, _ := s.mustGet(name).(float64)
	return f
}

// String returns a string property.
func (s *Store) String(name string) string {
	str, _ := s.mustGet(name).(string)
	return str
}

// Map returns an object property, or nil.
func (s *Store) Map(name string) map[string]any {
	m, _ := s.mustGet(name).(map[string]any)
	return m
}

// Slice returns an array property, or nil.
func (s *Store) Slice(name string) []any {
	a, _ := s.mustGet(name).([]any)
	return a
}

// IsNil reports whether a property currently holds nil.
func (s *Store) IsNil(name string) bool {
	return s.mustGet(name) == nil
}
