package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"parley/internal/core/contracts"
	"parley/internal/core/domain"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memUsers struct {
	byID map[string]*domain.User
}

func newMemUsers(users ...domain.User) *memUsers {
	m := &memUsers{byID: map[string]*domain.User{}}
	for i := range users {
		u := users[i]
		m.byID[u.ID] = &u
	}
	return m
}

func (m *memUsers) CreateUser(_ context.Context, u *domain.User) error {
	for _, other := range m.byID {
		if other.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *memUsers) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *memUsers) ListUsers(_ context.Context, excludeID string) ([]domain.User, error) {
	out := []domain.User{}
	for _, u := range m.byID {
		if u.ID != excludeID {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memUsers) UpdateProfilePic(_ context.Context, id, pic string) (*domain.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.ProfilePic = pic
	cp := *u
	return &cp, nil
}

type memMessages struct {
	msgs    []*domain.Message
	failNew error
}

func (m *memMessages) CreateMessage(_ context.Context, msg *domain.Message) error {
	if m.failNew != nil {
		return m.failNew
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	m.msgs = append(m.msgs, &cp)
	return nil
}

func (m *memMessages) GetMessageByID(_ context.Context, id string) (*domain.Message, error) {
	for _, msg := range m.msgs {
		if msg.ID == id {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (m *memMessages) ListDirect(_ context.Context, a, b string) ([]domain.Message, error) {
	out := []domain.Message{}
	for _, msg := range m.msgs {
		if (msg.SenderID == a && msg.ReceiverID == b) || (msg.SenderID == b && msg.ReceiverID == a) {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memMessages) ListGroup(_ context.Context, groupID string) ([]domain.Message, error) {
	out := []domain.Message{}
	for _, msg := range m.msgs {
		if msg.GroupID == groupID {
			out = append(out, *msg)
		}
	}
	return out, nil
}

func (m *memMessages) SoftDelete(_ context.Context, id string) (*domain.Message, error) {
	for _, msg := range m.msgs {
		if msg.ID == id {
			msg.SoftDelete()
			cp := *msg
			return &cp, nil
		}
	}
	return nil, domain.ErrMessageNotFound
}

func (m *memMessages) SearchDirect(ctx context.Context, a, b, query string, limit int) ([]domain.Message, error) {
	all, _ := m.ListDirect(ctx, a, b)
	out := []domain.Message{}
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		if all[i].Text == query {
			out = append(out, all[i])
		}
	}
	return out, nil
}

func (m *memMessages) DeleteGroupMessages(_ context.Context, groupID string) error {
	kept := m.msgs[:0]
	for _, msg := range m.msgs {
		if msg.GroupID != groupID {
			kept = append(kept, msg)
		}
	}
	m.msgs = kept
	return nil
}

type memGroups struct {
	users   *memUsers
	groups  map[string]*domain.Group
	members map[string][]string
}

func newMemGroups(users *memUsers) *memGroups {
	return &memGroups{users: users, groups: map[string]*domain.Group{}, members: map[string][]string{}}
}

func (m *memGroups) CreateGroup(_ context.Context, g *domain.Group, memberIDs []string) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	cp := *g
	m.groups[g.ID] = &cp
	m.members[g.ID] = append([]string(nil), memberIDs...)
	return nil
}

func (m *memGroups) GetGroupByID(ctx context.Context, id string) (*domain.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, domain.ErrGroupNotFound
	}
	cp := *g
	cp.Users = []domain.User{}
	for _, uid := range m.members[id] {
		u, err := m.users.GetUserByID(ctx, uid)
		if err != nil {
			return nil, err
		}
		cp.Users = append(cp.Users, *u)
	}
	return &cp, nil
}

func (m *memGroups) ListGroupsForUser(ctx context.Context, userID string) ([]domain.Group, error) {
	out := []domain.Group{}
	for id, members := range m.members {
		for _, uid := range members {
			if uid == userID {
				g, _ := m.GetGroupByID(ctx, id)
				out = append(out, *g)
			}
		}
	}
	return out, nil
}

func (m *memGroups) AddMember(_ context.Context, groupID, userID string) error {
	for _, uid := range m.members[groupID] {
		if uid == userID {
			return domain.ErrAlreadyMember
		}
	}
	m.members[groupID] = append(m.members[groupID], userID)
	return nil
}

func (m *memGroups) RemoveMember(_ context.Context, groupID, userID string) error {
	members := m.members[groupID]
	for i, uid := range members {
		if uid == userID {
			m.members[groupID] = append(members[:i:i], members[i+1:]...)
			return nil
		}
	}
	return domain.ErrNotMember
}

func (m *memGroups) DeleteGroup(_ context.Context, id string) error {
	if _, ok := m.groups[id]; !ok {
		return domain.ErrGroupNotFound
	}
	delete(m.groups, id)
	delete(m.members, id)
	return nil
}

type passTx struct{ calls int }

func (p *passTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	p.calls++
	return fn(ctx)
}

type pushed struct {
	To    string
	Event domain.Outbound
}

type recNotifier struct {
	mu     sync.Mutex
	users  []pushed
	rooms  []pushed
	online map[string]bool
	err    error
}

func (n *recNotifier) PushToUser(_ context.Context, userID string, ev domain.Outbound) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, pushed{userID, ev})
	return n.err
}

func (n *recNotifier) BroadcastRoom(_ context.Context, roomID string, ev domain.Outbound) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rooms = append(n.rooms, pushed{roomID, ev})
	return n.err
}

func (n *recNotifier) OnlineUsers(context.Context) ([]string, error) {
	out := []string{}
	for id, ok := range n.online {
		if ok {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (n *recNotifier) IsOnline(_ context.Context, userID string) (bool, error) {
	return n.online[userID], nil
}

type memPresence struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

func newMemPresence() *memPresence {
	return &memPresence{seen: map[string]time.Time{}}
}

func (p *memPresence) Touch(_ context.Context, userID string, at time.Time) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen[userID] = at
	return nil
}

func (p *memPresence) LastSeen(_ context.Context, userID string) (time.Time, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	at, ok := p.seen[userID]
	return at, ok, nil
}

func (p *memPresence) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}

type memCalls struct {
	saved []domain.CallRecord
}

func (m *memCalls) SaveCallRecord(_ context.Context, rec domain.CallRecord) error {
	m.saved = append(m.saved, rec)
	return nil
}

func (m *memCalls) ListCallsForUser(_ context.Context, userID string, limit int) ([]domain.CallSession, error) {
	out := []domain.CallSession{}
	for _, rec := range m.saved {
		for _, p := range rec.Participants {
			if p == userID && len(out) < limit {
				out = append(out, domain.CallSession{RoomID: rec.RoomID, Participants: rec.Participants, StartedAt: rec.At})
			}
		}
	}
	return out, nil
}

type fakeClient struct {
	id, user string
	mu       sync.Mutex
	frames   [][]byte
}

func (c *fakeClient) ID() string     { return c.id }
func (c *fakeClient) UserID() string { return c.user }
func (c *fakeClient) Close()         {}

func (c *fakeClient) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, data)
	return nil
}

type recRelay struct {
	connected    []string
	disconnected []string
	handled      []domain.Inbound
	err          error
}

func (r *recRelay) Connect(_ context.Context, c contracts.Client) error {
	r.connected = append(r.connected, c.ID())
	return r.err
}

func (r *recRelay) Disconnect(_ context.Context, c contracts.Client) error {
	r.disconnected = append(r.disconnected, c.ID())
	return r.err
}

func (r *recRelay) Handle(_ context.Context, _ contracts.Client, in domain.Inbound) error {
	r.handled = append(r.handled, in)
	return r.err
}

type stubResolver struct {
	kind domain.RoomKind
	err  error
}

func (s stubResolver) ResolveRoom(context.Context, string) (domain.RoomKind, error) {
	return s.kind, s.err
}
