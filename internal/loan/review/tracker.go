package review

import (
	"sort"
	"strings"
	"sync"
)

const (
	TargetStatus   = "status"
	TargetPriority = "priority"
)

// Tracker serialises mutations on the same (application, target) pair and
// lets callers see which targets are busy. Different targets never block
// each other.
type Tracker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	mu   sync.Mutex
	refs int
}

func NewTracker() *Tracker {
	return &Tracker{slots: make(map[string]*slot)}
}

func trackerKey(appID, target string) string {
	return appID + "/" + target
}

// Acquire blocks until target is free and returns the release func.
func (t *Tracker) Acquire(appID, target string) func() {
	key := trackerKey(appID, target)

	t.mu.Lock()
	s, ok := t.slots[key]
	if !ok {
		s = &slot{}
		t.slots[key] = s
	}
	s.refs++
	t.mu.Unlock()

	s.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Unlock()
			t.mu.Lock()
			s.refs--
			if s.refs == 0 {
				delete(t.slots, key)
			}
			t.mu.Unlock()
		})
	}
}

// Pending lists the targets of appID with a mutation in flight or queued.
func (t *Tracker) Pending(appID string) []string {
	prefix := appID + "/"

	t.mu.Lock()
	defer t.mu.Unlock()

	out := []string{}
	for key := range t.slots {
		if strings.HasPrefix(key, prefix) {
			out = append(out, strings.TrimPrefix(key, prefix))
		}
	}
	sort.Strings(out)
	return out
}
