package notify

import "sync"

// Queue holds pending toasts, newest first. A positive limit caps its length;
// the oldest toasts are dropped first.
type Queue struct {
	mu     sync.Mutex
	toasts []Toast
	limit  int
}

func NewQueue(limit int) *Queue {
	return &Queue{limit: limit}
}

// Push inserts t at the head.
func (q *Queue) Push(t Toast) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.toasts = append([]Toast{t}, q.toasts...)
	if q.limit > 0 && len(q.toasts) > q.limit {
		q.toasts = q.toasts[:q.limit]
	}
}

// Remove drops the toast with the given id and reports whether it was there.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, t := range q.toasts {
		if t.ID == id {
			q.toasts = append(q.toasts[:i], q.toasts[i+1:]...)
			return true
		}
	}
	return false
}

func (q *Queue) List() []Toast {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Toast, len(q.toasts))
	for i, t := range q.toasts {
		t.Changes = append([]string(nil), t.Changes...)
		out[i] = t
	}
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.toasts)
}
