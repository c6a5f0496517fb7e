package registry

import "sort"

// Presence maps each online user to the connection that registered last.
// It is not safe for concurrent use; the relay loop owns it.
type Presence struct {
	byUser map[string]string
}

func NewPresence() *Presence {
	return &Presence{byUser: make(map[string]string)}
}

// Register inserts or overwrites the mapping for userID.
func (p *Presence) Register(userID, connID string) {
	p.byUser[userID] = connID
}

// Unregister removes userID only while it still maps to connID, so a stale
// disconnect cannot evict a newer registration. It reports whether an entry
// was removed.
func (p *Presence) Unregister(userID, connID string) bool {
	if cur, ok := p.byUser[userID]; !ok || cur != connID {
		return false
	}
	delete(p.byUser, userID)
	return true
}

func (p *Presence) Resolve(userID string) (string, bool) {
	connID, ok := p.byUser[userID]
	return connID, ok
}

// Snapshot returns the online user ids in sorted order, never nil.
func (p *Presence) Snapshot() []string {
	out := make([]string, 0, len(p.byUser))
	for userID := range p.byUser {
		out = append(out, userID)
	}
	sort.Strings(out)
	return out
}

func (p *Presence) Len() int { return len(p.byUser) }

func (p *Presence) clear() {
	p.byUser = make(map[string]string)
}
