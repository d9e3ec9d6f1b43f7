package presence_test

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"duochat/backend/internal/models"
	"duochat/backend/internal/presence"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockTimeProvider advances one second on every call.
type MockTimeProvider struct {
	mu      sync.Mutex
	current time.Time
}

func (m *MockTimeProvider) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.current.Add(time.Second)
	return m.current
}

type recorder struct {
	mu      sync.Mutex
	changes []presence.Change
}

func (r *recorder) listen(c presence.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []presence.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]presence.Change(nil), r.changes...)
}

func newRegistry() (*presence.Registry, *recorder) {
	reg := presence.NewRegistry(&MockTimeProvider{current: time.Unix(1_700_000_000, 0)})
	rec := &recorder{}
	reg.Subscribe(rec.listen)
	return reg, rec
}

func TestRegistry_MultiConnectionScenario(t *testing.T) {
	reg, rec := newRegistry()

	assert.True(t, reg.Connect("A", "c1"), "first connection goes online")
	assert.True(t, reg.IsOnline("A"))
	require.Len(t, rec.all(), 1)
	assert.True(t, rec.all()[0].Online)

	assert.False(t, reg.Connect("A", "c2"), "second connection is not a transition")
	assert.True(t, reg.IsOnline("A"))
	assert.Len(t, rec.all(), 1, "no duplicate online broadcast")

	user, offline := reg.Disconnect("c1")
	assert.Equal(t, "A", user)
	assert.False(t, offline)
	assert.True(t, reg.IsOnline("A"), "c2 remains")
	assert.Len(t, rec.all(), 1)

	user, offline = reg.Disconnect("c2")
	assert.Equal(t, "A", user)
	assert.True(t, offline)
	assert.False(t, reg.IsOnline("A"))
	changes := rec.all()
	require.Len(t, changes, 2)
	assert.False(t, changes[1].Online, "exactly one offline broadcast")
	assert.Equal(t, "A", changes[1].UserID)
}

func TestRegistry_DisconnectUnknownIsNoop(t *testing.T) {
	reg, rec := newRegistry()

	user, offline := reg.Disconnect("ghost")
	assert.Empty(t, user)
	assert.False(t, offline)

	reg.Connect("A", "c1")
	reg.Disconnect("c1")
	_, offline = reg.Disconnect("c1")
	assert.False(t, offline, "a second disconnect of the same connection reports nothing")
	assert.Len(t, rec.all(), 2)
}

func TestRegistry_ReconnectSameConnectionIsIdempotent(t *testing.T) {
	reg, rec := newRegistry()

	assert.True(t, reg.Connect("A", "c1"))
	assert.False(t, reg.Connect("A", "c1"))
	assert.Len(t, reg.Connections("A"), 1)

	_, offline := reg.Disconnect("c1")
	assert.True(t, offline)
	assert.Len(t, rec.all(), 2)
}

func TestRegistry_LastActiveIsMonotonic(t *testing.T) {
	reg, _ := newRegistry()

	_, seen := reg.LastActive("A")
	assert.False(t, seen)

	reg.Connect("A", "c1")
	first, seen := reg.LastActive("A")
	require.True(t, seen)

	reg.Touch("A")
	second, _ := reg.LastActive("A")
	assert.True(t, second.After(first))

	reg.Disconnect("c1")
	third, _ := reg.LastActive("A")
	assert.True(t, third.After(second), "disconnect counts as activity")
}

func TestRegistry_TouchDoesNotChangeMembership(t *testing.T) {
	reg, rec := newRegistry()

	reg.Touch("B")
	assert.False(t, reg.IsOnline("B"))
	_, seen := reg.LastActive("B")
	assert.True(t, seen)
	assert.Empty(t, rec.all())
}

func TestRegistry_StatusOf(t *testing.T) {
	reg, _ := newRegistry()
	reg.Connect("A", "c1")
	reg.Touch("B")

	statuses := reg.StatusOf([]string{"A", "B", "C"})
	require.Len(t, statuses, 3)

	assert.Equal(t, models.StatusOnline, statuses[0].Status)
	assert.NotNil(t, statuses[0].LastActive)
	assert.Equal(t, models.StatusOffline, statuses[1].Status)
	assert.NotNil(t, statuses[1].LastActive)
	assert.Equal(t, "C", statuses[2].UserID)
	assert.Equal(t, models.StatusOffline, statuses[2].Status)
	assert.Nil(t, statuses[2].LastActive, "never seen users have no last activity")
}

func TestRegistry_OnlineUsers(t *testing.T) {
	reg, _ := newRegistry()
	reg.Connect("carol", "c3")
	reg.Connect("alice", "c1")
	reg.Connect("bob", "c2")
	reg.Disconnect("c2")

	assert.Equal(t, []string{"alice", "carol"}, reg.OnlineUsers())
	assert.Equal(t, []string{"carol"}, reg.OnlineUsers("alice"))
}

func TestRegistry_ConnectionIdReusedByAnotherUser(t *testing.T) {
	reg, rec := newRegistry()
	reg.Connect("A", "c1")

	assert.True(t, reg.Connect("B", "c1"))
	assert.False(t, reg.IsOnline("A"))
	assert.True(t, reg.IsOnline("B"))
	assert.Len(t, rec.all(), 3, "A online, A offline, B online")
}

// TestRegistry_InvariantUnderRandomSequences checks that online == non-empty
// connection set after arbitrary connect/disconnect sequences, and that
// transitions alternate per user.
func TestRegistry_InvariantUnderRandomSequences(t *testing.T) {
	reg, rec := newRegistry()
	rng := rand.New(rand.NewSource(42))
	users := []string{"u1", "u2", "u3"}
	model := map[string]map[string]bool{}
	for _, u := range users {
		model[u] = map[string]bool{}
	}

	for i := 0; i < 2000; i++ {
		u := users[rng.Intn(len(users))]
		conn := fmt.Sprintf("%s-c%d", u, rng.Intn(4))
		if rng.Intn(2) == 0 {
			reg.Connect(u, conn)
			model[u][conn] = true
		} else {
			reg.Disconnect(conn)
			delete(model[u], conn)
		}
		for _, uu := range users {
			require.Equal(t, len(model[uu]) > 0, reg.IsOnline(uu), "step %d user %s", i, uu)
		}
	}

	last := map[string]bool{}
	for _, c := range rec.all() {
		prev, seen := last[c.UserID]
		if seen {
			require.NotEqual(t, prev, c.Online, "transitions alternate for %s", c.UserID)
		} else {
			require.True(t, c.Online, "first transition is online")
		}
		last[c.UserID] = c.Online
	}
}

func TestRegistry_ConcurrentConnectDisconnect(t *testing.T) {
	reg, rec := newRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			reg.Connect("A", conn)
			reg.Touch("A")
			reg.Disconnect(conn)
		}(i)
	}
	wg.Wait()

	assert.False(t, reg.IsOnline("A"))
	changes := rec.all()
	require.NotEmpty(t, changes)
	assert.Equal(t, len(changes)%2, 0, "every online has a matching offline")
	assert.False(t, changes[len(changes)-1].Online)
}

func TestRegistry_Close(t *testing.T) {
	reg, rec := newRegistry()
	reg.Connect("A", "c1")
	reg.Close()

	assert.False(t, reg.IsOnline("A"))
	reg.Connect("A", "c2")
	assert.Len(t, rec.all(), 1, "listeners are dropped on close")
}
