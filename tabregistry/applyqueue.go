package tabregistry

import "sync"

// applyJob is the latest count to show for a tab.
type applyJob struct {
	tabID string
	count int
}

// applyQueue holds at most one pending job per tab. A newer job for a tab
// replaces the queued one in place, keeping the tab's original position.
type applyQueue struct {
	mu      sync.Mutex
	pending map[string]applyJob
	order   []string
	wake    chan struct{}
}

func newApplyQueue() *applyQueue {
	return &applyQueue{
		pending: make(map[string]applyJob),
		wake:    make(chan struct{}, 1),
	}
}

func (q *applyQueue) push(j applyJob) {
	q.mu.Lock()
	if _, ok := q.pending[j.tabID]; !ok {
		q.order = append(q.order, j.tabID)
	}
	q.pending[j.tabID] = j
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// drop discards any pending job for tabID. Its slot in order is skipped
// lazily by pop.
func (q *applyQueue) drop(tabID string) {
	q.mu.Lock()
	delete(q.pending, tabID)
	q.mu.Unlock()
}

func (q *applyQueue) pop() (applyJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.order) > 0 {
		id := q.order[0]
		q.order = q.order[1:]
		if j, ok := q.pending[id]; ok {
			delete(q.pending, id)
			return j, true
		}
	}
	return applyJob{}, false
}

func (q *applyQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
