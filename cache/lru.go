package cache

import (
	"time"

	"github.com/always-cache/webfetch/pkg/message"
)

// handle addresses an entry in the arena. Links between entries are
// handles rather than pointers.
type handle int

const nilHandle handle = -1

type entry struct {
	key       string
	result    message.Result
	expiresAt time.Time
	prev      handle
	next      handle
}

// lruList is a doubly linked list of entries, most recently used first,
// stored in a slice arena and paired with a key index. The list and the
// index are only ever changed together.
type lruList struct {
	arena []entry
	free  []handle
	index map[string]handle
	head  handle
	tail  handle
}

func newLRUList(capacity int) *lruList {
	return &lruList{
		arena: make([]entry, 0, capacity),
		index: make(map[string]handle, capacity),
		head:  nilHandle,
		tail:  nilHandle,
	}
}

func (l *lruList) len() int {
	return len(l.index)
}

func (l *lruList) get(key string) (handle, bool) {
	h, ok := l.index[key]
	return h, ok
}

func (l *lruList) at(h handle) *entry {
	return &l.arena[h]
}

// add stores a new entry at the front and indexes it.
func (l *lruList) add(e entry) handle {
	var h handle
	if n := len(l.free); n > 0 {
		h = l.free[n-1]
		l.free = l.free[:n-1]
		l.arena[h] = e
	} else {
		h = handle(len(l.arena))
		l.arena = append(l.arena, e)
	}
	l.pushFront(h)
	l.index[e.key] = h
	return h
}

// remove unlinks and unindexes the entry at h and recycles its slot.
func (l *lruList) remove(h handle) {
	l.unlink(h)
	delete(l.index, l.arena[h].key)
	l.arena[h] = entry{prev: nilHandle, next: nilHandle}
	l.free = append(l.free, h)
}

func (l *lruList) moveToFront(h handle) {
	if l.head == h {
		return
	}
	l.unlink(h)
	l.pushFront(h)
}

// back returns the least recently used entry.
func (l *lruList) back() handle {
	return l.tail
}

func (l *lruList) pushFront(h handle) {
	e := &l.arena[h]
	e.prev = nilHandle
	e.next = l.head
	if l.head != nilHandle {
		l.arena[l.head].prev = h
	}
	l.head = h
	if l.tail == nilHandle {
		l.tail = h
	}
}

func (l *lruList) unlink(h handle) {
	e := &l.arena[h]
	if e.prev != nilHandle {
		l.arena[e.prev].next = e.next
	} else {
		l.head = e.next
	}
	if e.next != nilHandle {
		l.arena[e.next].prev = e.prev
	} else {
		l.tail = e.prev
	}
	e.prev = nilHandle
	e.next = nilHandle
}

// keys returns the keys from most to least recently used.
func (l *lruList) keys() []string {
	keys := make([]string, 0, l.len())
	for h := l.head; h != nilHandle; h = l.arena[h].next {
		keys = append(keys, l.arena[h].key)
	}
	return keys
}
