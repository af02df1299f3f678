package codec

import "iter"

// List is an ordered sequence of values.
type List struct {
	items []string
}

// NewList creates a list holding the given values in order.
func NewList(values ...string) *List {
	l := &List{items: make([]string, 0, len(values))}
	l.items = append(l.items, values...)
	return l
}

// DecodeList decodes a list blob. An empty blob yields an empty list.
func DecodeList(blob []byte) (*List, error) {
	l := NewList()
	for tok := range tokens(blob) {
		v, err := unescape(tok)
		if err != nil {
			return nil, err
		}
		l.items = append(l.items, v)
	}
	return l, nil
}

// Encode returns the blob representation of the list.
func (l *List) Encode() []byte {
	var out []byte
	for _, v := range l.items {
		out = appendEscaped(out, v)
		out = append(out, ElementSep)
	}
	return out
}

// Len returns the number of values.
func (l *List) Len() int { return len(l.items) }

// PushFront inserts v before the first value.
func (l *List) PushFront(v string) Status {
	l.items = append(l.items, "")
	copy(l.items[1:], l.items)
	l.items[0] = v
	return StatusOK
}

// PushBack appends v after the last value.
func (l *List) PushBack(v string) Status {
	l.items = append(l.items, v)
	return StatusOK
}

// PopFront removes and returns the first value.
func (l *List) PopFront() (string, Status) {
	if len(l.items) == 0 {
		return "", StatusNotFound
	}
	v := l.items[0]
	l.items = l.items[1:]
	return v, StatusOK
}

// PopBack removes and returns the last value.
func (l *List) PopBack() (string, Status) {
	if len(l.items) == 0 {
		return "", StatusNotFound
	}
	v := l.items[len(l.items)-1]
	l.items = l.items[:len(l.items)-1]
	return v, StatusOK
}

// Index returns the value at position i. Negative positions count from the
// end (-1 is the last value).
func (l *List) Index(i int) (string, Status) {
	if i < 0 {
		i += len(l.items)
	}
	if i < 0 || i >= len(l.items) {
		return "", StatusInvalid
	}
	return l.items[i], StatusOK
}

// Remove deletes every occurrence of v and returns how many were removed.
func (l *List) Remove(v string) (int, Status) {
	kept := l.items[:0]
	removed := 0
	for _, item := range l.items {
		if item == v {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	l.items = kept
	if removed == 0 {
		return 0, StatusNotFound
	}
	return removed, StatusOK
}

// Exists reports whether v is part of the list.
func (l *List) Exists(v string) bool {
	return l.Count(v) > 0
}

// Count returns the number of occurrences of v.
func (l *List) Count(v string) int {
	n := 0
	for _, item := range l.items {
		if item == v {
			n++
		}
	}
	return n
}

// Values returns a copy of all values in order.
func (l *List) Values() []string {
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}

// All iterates over the values in order.
func (l *List) All() iter.Seq[string] {
	return func(yield func(string) bool) {
		for _, v := range l.items {
			if !yield(v) {
				return
			}
		}
	}
}
