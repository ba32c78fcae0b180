package websocket

import "sort"

// Presence maps a user to the ids of their open sockets. A user key exists
// only while its set is non-empty. Presence is not safe for concurrent use;
// the Hub serializes access under its own lock.
type Presence struct {
	users map[string]map[string]struct{}
}

func NewPresence() *Presence {
	return &Presence{users: make(map[string]map[string]struct{})}
}

// Register adds socketID to the user's set and reports whether the user
// was offline before the call.
func (p *Presence) Register(userID, socketID string) bool {
	sockets, ok := p.users[userID]
	if !ok {
		sockets = make(map[string]struct{})
		p.users[userID] = sockets
	}
	sockets[socketID] = struct{}{}
	return !ok
}

// Unregister removes socketID and reports whether that left the user offline.
// Unknown pairs are ignored.
func (p *Presence) Unregister(userID, socketID string) bool {
	sockets, ok := p.users[userID]
	if !ok {
		return false
	}
	if _, ok := sockets[socketID]; !ok {
		return false
	}
	delete(sockets, socketID)
	if len(sockets) == 0 {
		delete(p.users, userID)
		return true
	}
	return false
}

func (p *Presence) IsUserOnline(userID string) bool {
	_, ok := p.users[userID]
	return ok
}

func (p *Presence) SocketCount(userID string) int {
	return len(p.users[userID])
}

// OnlineUsers returns the online user ids in sorted order.
func (p *Presence) OnlineUsers() []string {
	out := make([]string, 0, len(p.users))
	for userID := range p.users {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}
