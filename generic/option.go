package generic

type Option[T any] struct {
	Value    T
	hasValue bool
}

// Some constructs an Option[T] that has a value.
func Some[T any](value T) Option[T] {
	return Option[T]{Value: value, hasValue: true}
}

// None constructs an Option[T] that does not have a value.
func None[T any]() Option[T] {
	return Option[T]{}
}

// NewOption is the inverse of Get, wrapping the common (value, ok) return convention.
func NewOption[T any](value T, ok bool) Option[T] {
	if ok {
		return Some(value)
	}
	return None[T]()
}

// Get returns the contained value and whether there was one, like a map lookup.
func (o Option[T]) Get() (T, bool) {
	return o.Value, o.hasValue
}

// Expect returns the contained value, or panics with the supplied error message if there is no value.
func (o Option[T]) Expect(msg string) T {
	if !o.hasValue {
		panic(msg)
	}
	return o.Value
}

func (o *Option[T]) IsNone() bool {
	return !o.hasValue
}

func (o *Option[T]) IsSome() bool {
	return o.hasValue
}

// Unwrap returns the contained value, or panics if there is no value.
func (o Option[T]) Unwrap() T {
	return o.Expect("tried to Unwrap() a None")
}

func (o Option[T]) UnwrapOr(other T) T {
	if o.hasValue {
		return o.Value
	}
	return other
}

// UnwrapOrDefault returns the contained value, or the "zero value" for T if there is no value.
func (o Option[T]) UnwrapOrDefault() T {
	var other T
	return o.UnwrapOr(other)
}
