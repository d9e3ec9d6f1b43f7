package chathub

import (
	"duochat/backend/internal/models"

	"github.com/sirupsen/logrus"
)

// Rooms holds the subscriber set of every room. It is owned by the hub
// goroutine and is not safe for concurrent use.
type Rooms struct {
	members map[string]map[string]Client   // room -> conn id -> client
	joined  map[string]map[string]struct{} // conn id -> rooms
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]map[string]Client),
		joined:  make(map[string]map[string]struct{}),
	}
}

// Join subscribes c to roomID and reports whether it was not subscribed yet.
func (r *Rooms) Join(roomID string, c Client) bool {
	set, ok := r.members[roomID]
	if !ok {
		set = make(map[string]Client)
		r.members[roomID] = set
	}
	if _, already := set[c.GetConnID()]; already {
		return false
	}
	set[c.GetConnID()] = c

	rooms, ok := r.joined[c.GetConnID()]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[c.GetConnID()] = rooms
	}
	rooms[roomID] = struct{}{}
	return true
}

// Leave unsubscribes c from roomID and reports whether it was subscribed.
func (r *Rooms) Leave(roomID string, c Client) bool {
	set, ok := r.members[roomID]
	if !ok {
		return false
	}
	if _, in := set[c.GetConnID()]; !in {
		return false
	}
	delete(set, c.GetConnID())
	if len(set) == 0 {
		delete(r.members, roomID)
	}
	if rooms, ok := r.joined[c.GetConnID()]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.joined, c.GetConnID())
		}
	}
	return true
}

// LeaveAll unsubscribes c from every room and returns the rooms it left.
func (r *Rooms) LeaveAll(c Client) []string {
	var left []string
	for roomID := range r.joined[c.GetConnID()] {
		left = append(left, roomID)
	}
	for _, roomID := range left {
		r.Leave(roomID, c)
	}
	return left
}

// Broadcast delivers ev to every subscriber of roomID except the connection
// exceptConnID and returns how many subscribers received it.
func (r *Rooms) Broadcast(roomID string, ev models.Event, exceptConnID string) int {
	n := 0
	for connID, c := range r.members[roomID] {
		if connID == exceptConnID {
			continue
		}
		if deliver(c, ev) {
			n++
		}
	}
	return n
}

// deliver never blocks the hub: a client whose buffer is full loses the event.
func deliver(c Client, ev models.Event) bool {
	select {
	case c.GetSendChannel() <- ev:
		return true
	default:
		logrus.WithFields(logrus.Fields{
			"function": "deliver",
			"conn_id":  c.GetConnID(),
			"user_id":  c.GetUserID(),
			"event":    ev.Name,
		}).Warn("Client send buffer full, dropping event")
		return false
	}
}
