package relay

import (
	"time"

	"parley/internal/core/domain"
)

// CallState is the negotiation state of one call room.
type CallState int

const (
	CallEmpty CallState = iota
	CallWaiting
	CallActive
	CallEnded
)

func (s CallState) String() string {
	switch s {
	case CallWaiting:
		return "waiting"
	case CallActive:
		return "active"
	case CallEnded:
		return "ended"
	default:
		return "empty"
	}
}

type peer struct {
	connID string
	userID string
}

type call struct {
	state     CallState
	peers     []peer
	users     []string // both participants, fixed when the call goes active
	startedAt time.Time
}

func (c *call) index(connID string) int {
	for i, p := range c.peers {
		if p.connID == connID {
			return i
		}
	}
	return -1
}

func (c *call) connIDs() []string {
	out := make([]string, 0, len(c.peers))
	for _, p := range c.peers {
		out = append(out, p.connID)
	}
	return out
}

// JoinResult describes the effect of a join on a call room.
type JoinResult struct {
	State  CallState
	Joined bool
	// Notify is the connection that must receive peer:joined, if any.
	Notify string
	Record *domain.CallRecord
}

// LeaveResult describes the effect of a leave on a call room.
type LeaveResult struct {
	State     CallState
	Left      bool
	Remaining []string
	Record    *domain.CallRecord
}

// Broker runs the two party state machine Empty → Waiting → Active → Ended
// for every call room. Like the registry it is owned by the relay loop.
type Broker struct {
	calls map[string]*call
	now   func() time.Time
}

func NewBroker() *Broker {
	return &Broker{
		calls: make(map[string]*call),
		now:   time.Now,
	}
}

// Join adds connID to the call. The first joiner waits, the second activates
// the call and the first joiner is reported in Notify. Joining a full call
// fails with domain.ErrCallFull, joining an ended one with domain.ErrCallEnded.
// A connection joining twice is a no-op.
func (b *Broker) Join(roomID, connID, userID string) (JoinResult, error) {
	c, ok := b.calls[roomID]
	if !ok {
		c = &call{state: CallEmpty}
		b.calls[roomID] = c
	}
	if c.index(connID) >= 0 {
		return JoinResult{State: c.state}, nil
	}
	switch c.state {
	case CallEmpty:
		c.peers = append(c.peers, peer{connID: connID, userID: userID})
		c.state = CallWaiting
		return JoinResult{State: c.state, Joined: true}, nil
	case CallWaiting:
		first := c.peers[0]
		c.peers = append(c.peers, peer{connID: connID, userID: userID})
		c.state = CallActive
		c.users = []string{first.userID, userID}
		c.startedAt = b.now()
		return JoinResult{
			State:  c.state,
			Joined: true,
			Notify: first.connID,
			Record: &domain.CallRecord{
				Kind:         domain.CallStarted,
				RoomID:       roomID,
				Participants: c.users,
				At:           c.startedAt,
			},
		}, nil
	case CallActive:
		return JoinResult{State: c.state}, domain.ErrCallFull
	default:
		return JoinResult{State: c.state}, domain.ErrCallEnded
	}
}

// Leave removes connID from the call. Leaving an active call ends it; the
// room is forgotten once nobody is left.
func (b *Broker) Leave(roomID, connID string) LeaveResult {
	c, ok := b.calls[roomID]
	if !ok {
		return LeaveResult{State: CallEmpty}
	}
	i := c.index(connID)
	if i < 0 {
		return LeaveResult{State: c.state, Remaining: c.connIDs()}
	}
	c.peers = append(c.peers[:i], c.peers[i+1:]...)

	res := LeaveResult{Left: true}
	switch c.state {
	case CallWaiting:
		c.state = CallEmpty
	case CallActive:
		c.state = CallEnded
		res.Record = &domain.CallRecord{
			Kind:         domain.CallEnded,
			RoomID:       roomID,
			Participants: c.users,
			At:           b.now(),
		}
	}
	if len(c.peers) == 0 {
		delete(b.calls, roomID)
		res.State = CallEmpty
	} else {
		res.State = c.state
	}
	res.Remaining = c.connIDs()
	return res
}

func (b *Broker) Has(roomID string) bool {
	_, ok := b.calls[roomID]
	return ok
}

func (b *Broker) State(roomID string) CallState {
	if c, ok := b.calls[roomID]; ok {
		return c.state
	}
	return CallEmpty
}

// Len is the number of call rooms with at least one participant.
func (b *Broker) Len() int { return len(b.calls) }

func (b *Broker) clear() {
	b.calls = make(map[string]*call)
}
