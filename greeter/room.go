package greeter

import (
	"sort"
	"sync"
	"time"

	"github.com/onnwee/greeter/irc"
)

// Default timing values.
const (
	DefaultWaitTime = 60 * time.Second
	DefaultMinWake  = time.Second
)

// Newcomer is a nick seen joining a room that has not been around for the
// room's wait time yet.
type Newcomer struct {
	Nick     string
	Key      string
	JoinedAt time.Time
}

// Age is how long the newcomer has been pending at now.
func (n Newcomer) Age(now time.Time) time.Duration { return now.Sub(n.JoinedAt) }

// RoomConfig configures a Room.
type RoomConfig struct {
	Name     string
	Admins   []string
	WaitTime time.Duration
	// MinWake floors TimeToNextEvent so an overdue room never causes a busy loop.
	MinWake time.Duration
	Now     func() time.Time
}

// Room tracks newcomers and known nicks for one channel.
//
// A nick moves from unseen to pending on Admit, and from pending to known on
// Graduate or to gone on Remove. Known keys are never re-admitted; a gone key
// may be admitted again later.
type Room struct {
	mu      sync.Mutex
	name    string
	admins  []string
	wait    time.Duration
	minWake time.Duration
	now     func() time.Time
	known   map[string]struct{}
	pending []Newcomer
}

// NewRoom returns an empty room.
func NewRoom(cfg RoomConfig) *Room {
	r := &Room{
		name:    cfg.Name,
		admins:  append([]string(nil), cfg.Admins...),
		wait:    cfg.WaitTime,
		minWake: cfg.MinWake,
		now:     cfg.Now,
		known:   make(map[string]struct{}),
	}
	if r.wait < 0 {
		r.wait = DefaultWaitTime
	}
	if r.minWake <= 0 {
		r.minWake = DefaultMinWake
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Name is the channel name.
func (r *Room) Name() string { return r.name }

// Admins returns the nicks allowed to change the wait time, in configured order.
func (r *Room) Admins() []string { return append([]string(nil), r.admins...) }

// IsAdmin reports whether nick is on the admin list.
func (r *Room) IsAdmin(nick string) bool {
	for _, a := range r.admins {
		if a == nick {
			return true
		}
	}
	return false
}

// WaitTime is the current grace period.
func (r *Room) WaitTime() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.wait
}

// Learn marks nicks as known without going through the pending state. Used
// when seeding from the store.
func (r *Room) Learn(nicks ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range nicks {
		r.known[irc.Canonicalize(n)] = struct{}{}
	}
}

// IsKnown reports whether nick's key has graduated.
func (r *Room) IsKnown(nick string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.known[irc.Canonicalize(nick)]
	return ok
}

// IsPending reports whether a newcomer with nick's key is waiting.
func (r *Room) IsPending(nick string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.indexByKey(irc.Canonicalize(nick)) >= 0
}

func (r *Room) indexByKey(key string) int {
	for i, n := range r.pending {
		if n.Key == key {
			return i
		}
	}
	return -1
}

// Admit starts the wait for nick. It is a no-op returning false when the key
// is already known or pending.
func (r *Room) Admit(nick string) bool {
	key := irc.Canonicalize(nick)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.known[key]; ok {
		return false
	}
	if r.indexByKey(key) >= 0 {
		return false
	}
	r.pending = append(r.pending, Newcomer{Nick: nick, Key: key, JoinedAt: r.now()})
	return true
}

// Rename follows a nick change of a pending newcomer. The original join time is
// kept. If the new nick's key is already known, or another pending entry holds
// it, the renamed entry is dropped so a key is never both known and pending or
// pending twice.
func (r *Room) Rename(oldNick, newNick string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := -1
	for i, n := range r.pending {
		if n.Nick == oldNick {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	key := irc.Canonicalize(newNick)
	_, known := r.known[key]
	if other := r.indexByKey(key); known || (other >= 0 && other != idx) {
		r.pending = append(r.pending[:idx], r.pending[idx+1:]...)
		return true
	}
	r.pending[idx].Nick = newNick
	r.pending[idx].Key = key
	return true
}

// Remove forgets a pending newcomer whose key matches nick's.
func (r *Room) Remove(nick string) bool {
	key := irc.Canonicalize(nick)
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexByKey(key)
	if idx < 0 {
		return false
	}
	r.pending = append(r.pending[:idx], r.pending[idx+1:]...)
	return true
}

// DueForGraduation returns, in join order, the newcomers pending for longer
// than the wait time at now. It does not modify the room.
func (r *Room) DueForGraduation(now time.Time) []Newcomer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Newcomer
	for _, n := range r.pending {
		if n.Age(now) > r.wait {
			due = append(due, n)
		}
	}
	return due
}

// Graduate moves n from pending to known. It returns false when n is no longer pending.
func (r *Room) Graduate(n Newcomer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.indexByKey(n.Key)
	if idx < 0 {
		return false
	}
	r.pending = append(r.pending[:idx], r.pending[idx+1:]...)
	r.known[n.Key] = struct{}{}
	return true
}

// TimeToNextEvent is how long until the oldest newcomer is due, or the full wait
// time when nobody is pending, never less than the room's minimum wake interval.
func (r *Room) TimeToNextEvent(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := r.wait
	var oldest time.Duration
	for _, n := range r.pending {
		if age := n.Age(now); age > oldest {
			oldest = age
		}
	}
	d -= oldest
	if d < r.minWake {
		d = r.minWake
	}
	return d
}

// SetWaitTime changes the grace period if requestedBy is an admin.
func (r *Room) SetWaitTime(requestedBy string, d time.Duration) bool {
	if !r.IsAdmin(requestedBy) {
		return false
	}
	r.mu.Lock()
	r.wait = d
	r.mu.Unlock()
	return true
}

// Pending returns a copy of the pending newcomers in join order.
func (r *Room) Pending() []Newcomer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Newcomer(nil), r.pending...)
}

// KnownKeys returns the known keys sorted.
func (r *Room) KnownKeys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.known))
	for k := range r.known {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RoomStatus is a point-in-time view of a room for status reporting.
type RoomStatus struct {
	Name            string   `json:"name"`
	Pending         []string `json:"pending"`
	Known           int      `json:"known"`
	WaitTimeSeconds float64  `json:"wait_time_seconds"`
	Admins          []string `json:"admins"`
}

// Snapshot returns the room's status.
func (r *Room) Snapshot() RoomStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	pending := make([]string, 0, len(r.pending))
	for _, n := range r.pending {
		pending = append(pending, n.Nick)
	}
	return RoomStatus{
		Name:            r.name,
		Pending:         pending,
		Known:           len(r.known),
		WaitTimeSeconds: r.wait.Seconds(),
		Admins:          append([]string(nil), r.admins...),
	}
}
