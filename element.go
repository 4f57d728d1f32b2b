package respool

import "time"

// element pairs a factory-supplied item with its lifecycle timestamps. Pool
// keeps the item-keyed back-reference to its element in its active map.
type element[T any] struct {
	item      T
	createdAt time.Time

	idledAt    time.Time
	hasIdledAt bool
}

func newElement[T any](item T, now time.Time) *element[T] {
	return &element[T]{
		item:      item,
		createdAt: now,
	}
}

func (e *element[T]) markIdle(now time.Time) {
	e.idledAt = now
	e.hasIdledAt = true
}

func (e *element[T]) markActive() {
	e.idledAt = time.Time{}
	e.hasIdledAt = false
}
