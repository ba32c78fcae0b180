package websocket

const (
	RoomKindProject = "project"
	RoomKindChannel = "channel"
)

// RoomKey builds the "<kind>:<id>" name of a shared room. Personal rooms
// are keyed by the bare user id and never go through RoomKey.
func RoomKey(kind, id string) string {
	return kind + ":" + id
}

// rooms is the room -> sockets index. Guarded by Hub.mu.
type rooms map[string]map[*Client]struct{}

func (r rooms) join(key string, c *Client) {
	members, ok := r[key]
	if !ok {
		members = make(map[*Client]struct{})
		r[key] = members
	}
	members[c] = struct{}{}
	c.rooms[key] = struct{}{}
}

func (r rooms) leave(key string, c *Client) {
	delete(c.rooms, key)
	members, ok := r[key]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r, key)
	}
}

func (r rooms) leaveAll(c *Client) {
	for key := range c.rooms {
		r.leave(key, c)
	}
}

// recipients snapshots the sockets of a room, skipping those owned by excludeUserID.
func (r rooms) recipients(key, excludeUserID string) []*Client {
	members := r[key]
	out := make([]*Client, 0, len(members))
	for c := range members {
		if excludeUserID != "" && c.userID == excludeUserID {
			continue
		}
		out = append(out, c)
	}
	return out
}
