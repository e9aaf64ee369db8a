package mailbox

import "sync"

// legacyRegistry orders waiters that may claim generic no-id records. Only
// the oldest registered waiter is eligible, so a legacy record is never
// claimed by two in-process waiters and never by a newer one first.
type legacyRegistry struct {
	mu    sync.Mutex
	queue []string
}

func (r *legacyRegistry) register(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.queue {
		if existing == id {
			return
		}
	}
	r.queue = append(r.queue, id)
}

func (r *legacyRegistry) release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.queue {
		if existing == id {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

func (r *legacyRegistry) isHead(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue) > 0 && r.queue[0] == id
}

func (r *legacyRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}
