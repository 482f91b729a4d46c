package generic

type Set[T any] interface {
	Add(item T) bool
	Clear()
	Contains(items ...T) bool
	Clone() Set[T]
	Count() int
	Remove(item T) bool
	ToSlice() []T
}

func NewSet[T comparable](items ...T) Set[T] {
	res := make(set[T])
	for _, item := range items {
		res.Add(item)
	}
	return &res
}

type set[T comparable] map[T]Void

func (s *set[T]) Add(item T) bool {
	if _, found := (*s)[item]; found {
		return false
	}
	(*s)[item] = NewVoid()
	return true
}

func (s *set[T]) Clear() {
	*s = make(set[T])
}

func (s *set[T]) Clone() Set[T] {
	res := make(set[T], len(*s))
	for item := range *s {
		res.Add(item)
	}
	return &res
}

func (s *set[T]) Contains(items ...T) bool {
	for _, item := range items {
		if _, found := (*s)[item]; !found {
			return false
		}
	}
	return true
}

func (s *set[T]) Count() int {
	return len(*s)
}

func (s *set[T]) Remove(item T) bool {
	if _, found := (*s)[item]; !found {
		return false
	}
	delete(*s, item)
	return true
}

// ToSlice returns the items in no particular order.
func (s *set[T]) ToSlice() []T {
	slice := make([]T, 0, s.Count())
	for item := range *s {
		slice = append(slice, item)
	}
	return slice
}

// NewOrderedSet creates a Set whose ToSlice() returns items in the order they were first added.
//
// Items are compared with ==, so for interface types the dynamic values must be comparable (adding a non-comparable
// value panics, just like using it as a map key).
func NewOrderedSet[T comparable](items ...T) Set[T] {
	s := &orderedSet[T]{index: make(map[T]int)}
	for _, item := range items {
		s.Add(item)
	}
	return s
}

type orderedSet[T comparable] struct {
	items []T
	index map[T]int
}

func (s *orderedSet[T]) Add(item T) bool {
	if _, found := s.index[item]; found {
		return false
	}
	s.index[item] = len(s.items)
	s.items = append(s.items, item)
	return true
}

func (s *orderedSet[T]) Clear() {
	s.items = nil
	s.index = make(map[T]int)
}

func (s *orderedSet[T]) Clone() Set[T] {
	return NewOrderedSet(s.items...)
}

func (s *orderedSet[T]) Contains(items ...T) bool {
	for _, item := range items {
		if _, found := s.index[item]; !found {
			return false
		}
	}
	return true
}

func (s *orderedSet[T]) Count() int {
	return len(s.items)
}

func (s *orderedSet[T]) Remove(item T) bool {
	i, found := s.index[item]
	if !found {
		return false
	}
	delete(s.index, item)
	s.items = append(s.items[:i], s.items[i+1:]...)
	// Everything after the removed item shifted down by one
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j]] = j
	}
	return true
}

// ToSlice returns a copy of the items in insertion order.
func (s *orderedSet[T]) ToSlice() []T {
	slice := make([]T, len(s.items))
	copy(slice, s.items)
	return slice
}
