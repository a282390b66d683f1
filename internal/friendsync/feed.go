package friendsync

import "sync"

// maxBacklog bounds the snapshots held for a subscriber that stops reading.
const maxBacklog = 32

// feed delivers snapshots in order without ever blocking the publisher. A subscriber
// that falls maxBacklog behind skips to the latest snapshot, keeping an undelivered
// cache snapshot and the newest sync outcome.
type feed struct {
	mu     sync.Mutex
	queue  []Snapshot
	notify chan struct{}
	out    chan Snapshot
	done   chan struct{}
	once   sync.Once
}

func newFeed() *feed {
	f := &feed{
		notify: make(chan struct{}, 1),
		out:    make(chan Snapshot),
		done:   make(chan struct{}),
	}
	go f.run()
	return f
}

func (f *feed) publish(s Snapshot) {
	f.mu.Lock()
	if len(f.queue) >= maxBacklog {
		f.queue = collapse(f.queue)
	}
	f.queue = append(f.queue, s)
	f.mu.Unlock()

	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// collapse drops superseded local snapshots. Every snapshot is a full copy, so the
// next one published stands in for them.
func collapse(queue []Snapshot) []Snapshot {
	var first, outcome *Snapshot
	if queue[0].Phase == PhaseCache {
		first = &queue[0]
	}
	for i := len(queue) - 1; i >= 0; i-- {
		if p := queue[i].Phase; p == PhaseReconciled || p == PhaseSyncFailed {
			outcome = &queue[i]
			break
		}
	}
	kept := make([]Snapshot, 0, 2)
	if first != nil {
		kept = append(kept, *first)
	}
	if outcome != nil {
		kept = append(kept, *outcome)
	}
	return kept
}

func (f *feed) close() {
	f.once.Do(func() { close(f.done) })
}

func (f *feed) run() {
	defer close(f.out)
	for {
		f.mu.Lock()
		if len(f.queue) == 0 {
			f.mu.Unlock()
			select {
			case <-f.notify:
				continue
			case <-f.done:
				return
			}
		}
		next := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()

		select {
		case f.out <- next:
		case <-f.done:
			return
		}
	}
}
