package tp

import "time"

// armReaper starts the single reaper timer if it is not already
// pending. Must be called with r.mu held.
func (r *Reassembler) armReaper() {
	if r.stopped || r.timer != nil {
		return
	}
	r.timer = time.AfterFunc(r.staleTimeout, r.sweep)
}

// sweep drops every reassembly state older than StaleTimeout and
// re-arms itself if any state remains.
func (r *Reassembler) sweep() {
	r.mu.Lock()
	now := time.Now()
	evicted := 0
	for k, st := range r.entries {
		if now.Sub(st.creation) >= r.staleTimeout {
			delete(r.entries, k)
			evicted++
		}
	}
	r.timer = nil
	if len(r.entries) > 0 && !r.stopped {
		r.timer = time.AfterFunc(r.staleTimeout, r.sweep)
	}
	cb := r.onMetrics
	r.mu.Unlock()

	if evicted > 0 {
		reaperEvictions.Add(float64(evicted))
		if cb != nil {
			cb(evicted)
		}
	}
}

// Stop cancels the reaper timer, if armed, without running its
// callback, and marks the reassembler as shut down so no further
// sweeps are scheduled.
func (r *Reassembler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Len reports the number of in-flight reassembly states, primarily for
// tests.
func (r *Reassembler) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
