package server

import "golang.org/x/exp/slices"

// IDQueue hands out small integer ids. Released ids go to the back of the
// queue so a freshly freed id is not immediately reused.
type IDQueue struct {
	free []uint8
	used map[uint8]bool
}

// NewIDQueue returns a queue of the ids min..max inclusive. Zero is never a
// valid id.
func NewIDQueue(min, max uint8) *IDQueue {
	q := &IDQueue{used: make(map[uint8]bool)}
	for id := int(min); id <= int(max); id++ {
		if id > 0 {
			q.free = append(q.free, uint8(id))
		}
	}
	return q
}

// Reserve marks id as taken.
func (q *IDQueue) Reserve(id uint8) {
	if i := slices.Index(q.free, id); i >= 0 {
		q.free = slices.Delete(q.free, i, i+1)
	}
	q.used[id] = true
}

// Release returns id to the queue.
func (q *IDQueue) Release(id uint8) {
	if !q.used[id] {
		return
	}
	delete(q.used, id)
	q.free = append(q.free, id)
}

// TakeNext reserves and returns the next free id, or 0 if none are left.
func (q *IDQueue) TakeNext() uint8 {
	if len(q.free) == 0 {
		return 0
	}
	id := q.free[0]
	q.free = q.free[1:]
	q.used[id] = true
	return id
}

func (q *IDQueue) IsUsed(id uint8) bool { return q.used[id] }
