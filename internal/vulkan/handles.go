package vulkan

// table maps the opaque ids handed to the rendering packages back to driver
// objects. All tables of one device draw ids from the same counter so an id
// is never valid in two tables.
type table[H ~uint64, T any] struct {
	next    *uint64
	entries map[H]T
}

func newTable[H ~uint64, T any](next *uint64) *table[H, T] {
	return &table[H, T]{next: next, entries: map[H]T{}}
}

func (t *table[H, T]) add(value T) H {
	*t.next++
	handle := H(*t.next)
	t.entries[handle] = value
	return handle
}

// get returns the zero value for unknown handles, including the zero handle.
func (t *table[H, T]) get(handle H) T {
	return t.entries[handle]
}

func (t *table[H, T]) lookup(handle H) (T, bool) {
	value, ok := t.entries[handle]
	return value, ok
}

func (t *table[H, T]) remove(handle H) (T, bool) {
	value, ok := t.entries[handle]
	if ok {
		delete(t.entries, handle)
	}
	return value, ok
}

func (t *table[H, T]) len() int { return len(t.entries) }

func getAll[H ~uint64, T any](t *table[H, T], handles []H) []T {
	out := make([]T, len(handles))
	for i, handle := range handles {
		out[i] = t.get(handle)
	}
	return out
}
