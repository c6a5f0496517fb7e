package registry

import "sort"

type set map[string]struct{}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Rooms tracks which connections are subscribed to which room. A room exists
// only while it has at least one member. Not safe for concurrent use.
type Rooms struct {
	members map[string]set // room id → connection ids
	byConn  map[string]set // connection id → room ids
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[string]set),
		byConn:  make(map[string]set),
	}
}

// Join adds connID to roomID and reports whether membership changed.
func (r *Rooms) Join(roomID, connID string) bool {
	m, ok := r.members[roomID]
	if !ok {
		m = make(set)
		r.members[roomID] = m
	}
	if _, ok := m[connID]; ok {
		return false
	}
	m[connID] = struct{}{}
	rs, ok := r.byConn[connID]
	if !ok {
		rs = make(set)
		r.byConn[connID] = rs
	}
	rs[roomID] = struct{}{}
	return true
}

// Leave removes connID from roomID and reports whether membership changed.
// The room is dropped once its last member leaves.
func (r *Rooms) Leave(roomID, connID string) bool {
	m, ok := r.members[roomID]
	if !ok {
		return false
	}
	if _, ok := m[connID]; !ok {
		return false
	}
	delete(m, connID)
	if len(m) == 0 {
		delete(r.members, roomID)
	}
	if rs, ok := r.byConn[connID]; ok {
		delete(rs, roomID)
		if len(rs) == 0 {
			delete(r.byConn, connID)
		}
	}
	return true
}

// LeaveAll removes connID from every room and returns the rooms it left,
// sorted.
func (r *Rooms) LeaveAll(connID string) []string {
	left := r.RoomsOf(connID)
	for _, roomID := range left {
		r.Leave(roomID, connID)
	}
	return left
}

func (r *Rooms) RoomsOf(connID string) []string {
	return r.byConn[connID].sorted()
}

// Members returns the connection ids joined to roomID, sorted.
func (r *Rooms) Members(roomID string) []string {
	return r.members[roomID].sorted()
}

func (r *Rooms) IsMember(roomID, connID string) bool {
	_, ok := r.members[roomID][connID]
	return ok
}

func (r *Rooms) Exists(roomID string) bool {
	_, ok := r.members[roomID]
	return ok
}

func (r *Rooms) Size(roomID string) int { return len(r.members[roomID]) }

// Len is the number of non-empty rooms.
func (r *Rooms) Len() int { return len(r.members) }

func (r *Rooms) clear() {
	r.members = make(map[string]set)
	r.byConn = make(map[string]set)
}
