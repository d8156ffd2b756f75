package reader

// List is a cursor over a slice of items. The cursor wraps at both ends and
// is -1 while nothing is selected; movement on an empty list is a no-op.
type List[T any] struct {
	items []T
	index int
}

func NewList[T any](items []T) *List[T] {
	return &List[T]{items: items, index: -1}
}

func (l *List[T]) Items() []T {
	return l.items
}

func (l *List[T]) Len() int {
	return len(l.items)
}

func (l *List[T]) Index() int {
	return l.index
}

func (l *List[T]) Select(i int) {
	if i < 0 || i >= len(l.items) {
		return
	}
	l.index = i
}

func (l *List[T]) Unselect() {
	l.index = -1
}

func (l *List[T]) Selected() (T, bool) {
	if l.index < 0 || l.index >= len(l.items) {
		var zero T
		return zero, false
	}
	return l.items[l.index], true
}

func (l *List[T]) Next() {
	if len(l.items) == 0 {
		return
	}
	if l.index < 0 || l.index >= len(l.items)-1 {
		l.index = 0
		return
	}
	l.index++
}

func (l *List[T]) Prev() {
	if len(l.items) == 0 {
		return
	}
	if l.index < 0 {
		l.index = 0
		return
	}
	if l.index == 0 {
		l.index = len(l.items) - 1
		return
	}
	l.index--
}
