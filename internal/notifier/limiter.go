package notifier

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// limiters holds the global and per-group dispatch rate limiters (§4.4) plus
// the forbidden-destination cooldown tracker.
type limiters struct {
	mu       sync.Mutex
	global   *rate.Limiter
	perGroup map[int64]*rate.Limiter
	cooldown map[int64]time.Time

	perGroupRPS float64
	cooldownDur time.Duration
}

func newLimiters(globalRPS, perGroupRPS float64, cooldown time.Duration) *limiters {
	return &limiters{
		global:      rate.NewLimiter(rate.Limit(globalRPS), int(globalRPS)+1),
		perGroup:    make(map[int64]*rate.Limiter),
		cooldown:    make(map[int64]time.Time),
		perGroupRPS: perGroupRPS,
		cooldownDur: cooldown,
	}
}

func (l *limiters) groupLimiter(groupID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.perGroup[groupID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.perGroupRPS), int(l.perGroupRPS)+1)
		l.perGroup[groupID] = lim
	}
	return lim
}

// inCooldown reports whether groupID's forbidden cooldown is still active.
func (l *limiters) inCooldown(groupID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.cooldown[groupID]
	if !ok {
		return false
	}
	if time.Now().After(until) {
		delete(l.cooldown, groupID)
		return false
	}
	return true
}

func (l *limiters) setForbidden(groupID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cooldown[groupID] = time.Now().Add(l.cooldownDur)
}

// boundedSet is a per-key fixed-capacity membership set with FIFO eviction,
// the in-memory "already sent" dedup layer (§4.4 step 3).
type boundedSet struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]struct{}
}

func newBoundedSet(capacity int) *boundedSet {
	return &boundedSet{capacity: capacity, seen: make(map[string]struct{}, capacity)}
}

// addIfNew reports true if key was not already present, recording it.
func (b *boundedSet) addIfNew(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.seen[key]; ok {
		return false
	}
	if len(b.order) >= b.capacity {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.seen, oldest)
	}
	b.order = append(b.order, key)
	b.seen[key] = struct{}{}
	return true
}

// perGroupSets holds one boundedSet per group key, lazily created.
type perGroupSets struct {
	mu       sync.Mutex
	capacity int
	sets     map[int64]*boundedSet
}

func newPerGroupSets(capacity int) *perGroupSets {
	return &perGroupSets{capacity: capacity, sets: make(map[int64]*boundedSet)}
}

func (p *perGroupSets) forGroup(groupID int64) *boundedSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sets[groupID]
	if !ok {
		s = newBoundedSet(p.capacity)
		p.sets[groupID] = s
	}
	return s
}
