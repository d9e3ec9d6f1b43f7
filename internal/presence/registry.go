// Package presence tracks which users hold live realtime connections.
//
// A user is online iff at least one connection is registered for it. Every
// online/offline transition is reported to the registry's listeners exactly
// once, inside the same critical section that mutated the state, so no
// listener can observe a transition out of order with the registry itself.
package presence

import (
	"sort"
	"sync"
	"time"

	"duochat/backend/internal/models"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

// Change describes an online/offline transition of one user.
type Change struct {
	UserID     string
	Online     bool
	LastActive time.Time
}

// Status converts the change into its wire snapshot.
func (c Change) Status() models.UserStatus {
	return snapshot(c.UserID, c.Online, c.LastActive)
}

// Listener is called for every transition while the registry lock is held.
// It must not block and must not call back into the registry.
type Listener func(Change)

// TimeProvider abstracts the clock so tests can drive last-activity timestamps.
type TimeProvider interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type entry struct {
	conns      map[string]struct{}
	lastActive time.Time
}

// Registry is the process-wide presence state. Create one at start-up and
// hand it to the session manager; Close it at shutdown.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*entry // user -> entry
	owners    map[string]string // connection -> user
	listeners []Listener
	clock     TimeProvider
}

// NewRegistry creates an empty registry. A nil clock uses the wall clock.
func NewRegistry(clock TimeProvider) *Registry {
	if clock == nil {
		clock = realClock{}
	}
	return &Registry{
		entries: make(map[string]*entry),
		owners:  make(map[string]string),
		clock:   clock,
	}
}

// Subscribe adds a transition listener.
func (r *Registry) Subscribe(l Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Connect registers connID for userID and reports whether this was the
// user's first live connection.
func (r *Registry) Connect(userID, connID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[connID]; ok {
		if owner == userID {
			r.touchLocked(userID)
			return false
		}
		// A connection id never changes owner; treat a reuse as a fresh link.
		r.disconnectLocked(connID)
	}

	e := r.entryLocked(userID)
	wasOnline := len(e.conns) > 0
	e.conns[connID] = struct{}{}
	r.owners[connID] = userID
	r.touchLocked(userID)

	if wasOnline {
		return false
	}
	logrus.WithFields(logrus.Fields{
		"function": "Connect",
		"user_id":  userID,
		"conn_id":  connID,
	}).Info("User is online")
	r.notifyLocked(Change{UserID: userID, Online: true, LastActive: e.lastActive})
	return true
}

// Disconnect removes connID from whichever user owns it. It returns the owner
// and whether the user has just gone offline. Unknown connections are a no-op.
func (r *Registry) Disconnect(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.disconnectLocked(connID)
}

func (r *Registry) disconnectLocked(connID string) (string, bool) {
	userID, ok := r.owners[connID]
	if !ok {
		return "", false
	}
	delete(r.owners, connID)

	e := r.entries[userID]
	delete(e.conns, connID)
	r.touchLocked(userID)
	if len(e.conns) > 0 {
		return userID, false
	}

	logrus.WithFields(logrus.Fields{
		"function": "Disconnect",
		"user_id":  userID,
		"conn_id":  connID,
	}).Info("User is offline")
	r.notifyLocked(Change{UserID: userID, Online: false, LastActive: e.lastActive})
	return userID, true
}

// IsOnline reports whether the user has at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	return ok && len(e.conns) > 0
}

// LastActive returns the user's last-activity time, if the user was ever seen.
func (r *Registry) LastActive(userID string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return time.Time{}, false
	}
	return e.lastActive, true
}

// Touch records activity without changing connection membership.
func (r *Registry) Touch(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.touchLocked(userID)
}

// Connections returns the ids of the user's live connections.
func (r *Registry) Connections(userID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[userID]
	if !ok {
		return nil
	}
	return lo.Keys(e.conns)
}

// Status returns the snapshot of a single user.
func (r *Registry) Status(userID string) models.UserStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusLocked(userID)
}

// StatusOf returns snapshots for users, in the order given.
func (r *Registry) StatusOf(userIDs []string) []models.UserStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Map(userIDs, func(id string, _ int) models.UserStatus {
		return r.statusLocked(id)
	})
}

// OnlineUsers returns every online user except the ones listed in exclude, sorted.
func (r *Registry) OnlineUsers(exclude ...string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	online := lo.Filter(lo.Keys(r.entries), func(id string, _ int) bool {
		return len(r.entries[id].conns) > 0 && !lo.Contains(exclude, id)
	})
	sort.Strings(online)
	return online
}

// Close drops all state and listeners. Transitions are not reported.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = make(map[string]*entry)
	r.owners = make(map[string]string)
	r.listeners = nil
}

func (r *Registry) entryLocked(userID string) *entry {
	e, ok := r.entries[userID]
	if !ok {
		e = &entry{conns: make(map[string]struct{})}
		r.entries[userID] = e
	}
	return e
}

// touchLocked keeps lastActive monotonically non-decreasing.
func (r *Registry) touchLocked(userID string) {
	e := r.entryLocked(userID)
	if now := r.clock.Now(); now.After(e.lastActive) {
		e.lastActive = now
	}
}

func (r *Registry) statusLocked(userID string) models.UserStatus {
	e, ok := r.entries[userID]
	if !ok {
		return snapshot(userID, false, time.Time{})
	}
	return snapshot(userID, len(e.conns) > 0, e.lastActive)
}

func (r *Registry) notifyLocked(c Change) {
	for _, l := range r.listeners {
		l(c)
	}
}

func snapshot(userID string, online bool, lastActive time.Time) models.UserStatus {
	s := models.UserStatus{UserID: userID, Status: models.StatusOffline}
	if online {
		s.Status = models.StatusOnline
	}
	if !lastActive.IsZero() {
		s.LastActive = lo.ToPtr(lastActive.UnixMilli())
	}
	return s
}
