package wire

// Field is one name/value pair of an argument block.
type Field struct {
	Name  string
	Value Value
}

// Fields is an ordered field mapping. The zero value is ready to use.
type Fields []Field

// With returns f extended by name: v.
func (f Fields) With(name string, v Value) Fields {
	return append(f, Field{Name: name, Value: v})
}

// Get returns the first value bound to name.
func (f Fields) Get(name string) (Value, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Set returns the number of fields that hold a value other than Unset.
func (f Fields) Set() int {
	n := 0
	for _, field := range f {
		if field.Value != Unset && field.Value != nil {
			n++
		}
	}
	return n
}
