// Package flood throttles how many track requests a sender may make per minute.
package flood

import (
	"sync"
	"time"
)

const (
	// window is the sliding window over which requests are counted.
	window = time.Minute
	// sweepInterval is how often idle senders are forgotten.
	sweepInterval = 10 * time.Minute
	// idleTimeout is how long a sender may stay quiet before being forgotten.
	idleTimeout = 10 * time.Minute
)

// Gate limits requests per sender per chat using a sliding one-minute window.
// A Gate with a non-positive limit admits everything and starts no goroutine.
type Gate struct {
	limit   int
	now     func() time.Time
	senders map[string]*sender
	mutex   sync.Mutex
	stop    chan struct{}
	once    sync.Once
}

type sender struct {
	requests []time.Time
	lastSeen time.Time
}

// New creates a gate admitting at most limitPerMinute requests per sender.
func New(limitPerMinute int) *Gate {
	g := &Gate{
		limit:   limitPerMinute,
		now:     time.Now,
		senders: make(map[string]*sender),
		stop:    make(chan struct{}),
	}

	if g.Enabled() {
		go g.sweepLoop()
	}

	return g
}

// Enabled reports whether the gate limits anything.
func (g *Gate) Enabled() bool {
	return g.limit > 0
}

// Stop ends the background sweep. It is safe to call more than once.
func (g *Gate) Stop() {
	g.once.Do(func() { close(g.stop) })
}

// Allow records a request from userID in chatID and reports whether it is admitted.
// Rejected requests do not count against the window.
func (g *Gate) Allow(chatID, userID string) bool {
	if !g.Enabled() {
		return true
	}

	key := chatID + ":" + userID
	now := g.now()

	g.mutex.Lock()
	defer g.mutex.Unlock()

	s, ok := g.senders[key]
	if !ok {
		s = &sender{requests: make([]time.Time, 0, g.limit)}
		g.senders[key] = s
	}
	s.lastSeen = now

	cutoff := now.Add(-window)
	kept := s.requests[:0]
	for _, ts := range s.requests {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	s.requests = kept

	if len(s.requests) >= g.limit {
		return false
	}

	s.requests = append(s.requests, now)
	return true
}

func (g *Gate) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			g.sweep()
		case <-g.stop:
			return
		}
	}
}

func (g *Gate) sweep() {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	cutoff := g.now().Add(-idleTimeout)
	for key, s := range g.senders {
		if s.lastSeen.Before(cutoff) {
			delete(g.senders, key)
		}
	}
}

// Stats describes the gate for logging.
type Stats struct {
	ActiveSenders  int `json:"active_senders"`
	LimitPerMinute int `json:"limit_per_minute"`
	WindowSeconds  int `json:"window_seconds"`
}

// GetStats returns a snapshot of the gate.
func (g *Gate) GetStats() Stats {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	return Stats{
		ActiveSenders:  len(g.senders),
		LimitPerMinute: g.limit,
		WindowSeconds:  int(window.Seconds()),
	}
}
