package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/app/registry"
	"parley/internal/core/domain"
)

type recClient struct {
	id, user string

	mu     sync.Mutex
	frames []domain.Frame
}

func newClient(id, user string) *recClient { return &recClient{id: id, user: user} }

func (c *recClient) ID() string     { return c.id }
func (c *recClient) UserID() string { return c.user }
func (c *recClient) Close()         {}

func (c *recClient) Send(_ context.Context, data []byte) error {
	var f domain.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

func (c *recClient) received(event string) []domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Frame
	for _, f := range c.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (c *recClient) all() []domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Frame(nil), c.frames...)
}

func (c *recClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type recJournal struct {
	mu   sync.Mutex
	recs []domain.CallRecord
}

func (j *recJournal) Record(_ context.Context, rec domain.CallRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.recs = append(j.recs, rec)
	return nil
}

func (j *recJournal) kinds() []domain.CallEventKind {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []domain.CallEventKind
	for _, r := range j.recs {
		out = append(out, r.Kind)
	}
	return out
}

type harness struct {
	t       *testing.T
	relay   *Relay
	journal *recJournal
	cancel  context.CancelFunc
	stopped chan struct{}
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	j := &recJournal{}
	r := NewRelay(log, registry.NewRegistry(log), j, 64)
	ctx, cancel := context.WithCancel(context.Background())
	h := &harness{t: t, relay: r, journal: j, cancel: cancel, stopped: make(chan struct{})}
	go func() {
		defer close(h.stopped)
		_ = r.Run(ctx)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.stopped
}

// flush waits until every operation queued so far has run.
func (h *harness) flush() {
	h.t.Helper()
	_, err := h.relay.OnlineUsers(context.Background())
	require.NoError(h.t, err)
}

func (h *harness) connect(cs ...*recClient) {
	h.t.Helper()
	for _, c := range cs {
		require.NoError(h.t, h.relay.Connect(context.Background(), c))
	}
	h.flush()
}

func (h *harness) handle(c *recClient, in domain.Inbound) {
	h.t.Helper()
	require.NoError(h.t, h.relay.Handle(context.Background(), c, in))
	h.flush()
}

func lastSnapshot(t *testing.T, c *recClient) []string {
	t.Helper()
	frames := c.received(domain.EventOnlineUsers)
	require.NotEmpty(t, frames)
	var users []string
	require.NoError(t, json.Unmarshal(frames[len(frames)-1].Data, &users))
	return users
}

func TestRelay_PresenceSnapshotTracksOpenConnections(t *testing.T) {
	h := newHarness(t)
	alice, bob, carol := newClient("c1", "alice"), newClient("c2", "bob"), newClient("c3", "carol")

	h.connect(alice, bob, carol)
	assert.Equal(t, []string{"alice", "bob", "carol"}, lastSnapshot(t, alice))

	require.NoError(t, h.relay.Disconnect(context.Background(), bob))
	h.flush()

	assert.Equal(t, []string{"alice", "carol"}, lastSnapshot(t, alice))
	assert.Equal(t, []string{"alice", "carol"}, lastSnapshot(t, carol))
	online, err := h.relay.OnlineUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "carol"}, online)
}

func TestRelay_ConnectBroadcastsSnapshot(t *testing.T) {
	h := newHarness(t)
	alice := newClient("c1", "alice")
	h.connect(alice)

	frames := alice.received(domain.EventOnlineUsers)
	require.Len(t, frames, 1)
	assert.JSONEq(t, `["alice"]`, string(frames[0].Data))

	online, err := h.relay.OnlineUsers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, online)
}

func TestRelay_StaleDisconnectKeepsNewerConnection(t *testing.T) {
	h := newHarness(t)
	old, fresh := newClient("c1", "alice"), newClient("c2", "alice")
	h.connect(old, fresh)

	require.NoError(t, h.relay.Disconnect(context.Background(), old))
	h.flush()

	online, err := h.relay.IsOnline(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, online)

	fresh.reset()
	require.NoError(t, h.relay.PushToUser(context.Background(), "alice", domain.TypingStarted{From: "bob"}))
	h.flush()
	assert.Len(t, fresh.received(domain.EventTypingStart), 1)
}

func TestRelay_JoinTwiceSameMembership(t *testing.T) {
	h := newHarness(t)
	alice := newClient("c1", "alice")
	h.connect(alice)

	h.handle(alice, domain.JoinRoom{RoomID: "g1", Kind: domain.RoomGroup})
	once, err := h.relay.RoomMembers(context.Background(), "g1")
	require.NoError(t, err)

	h.handle(alice, domain.JoinRoom{RoomID: "g1", Kind: domain.RoomGroup})
	twice, err := h.relay.RoomMembers(context.Background(), "g1")
	require.NoError(t, err)

	assert.Equal(t, []string{"c1"}, once)
	assert.Equal(t, once, twice)
}

func TestRelay_DirectPushSkippedWhileOffline(t *testing.T) {
	h := newHarness(t)
	alice := newClient("c1", "alice")
	h.connect(alice)
	alice.reset()

	msg := domain.NewMessage{Message: domain.Message{ID: "m1", SenderID: "alice", ReceiverID: "bob", Text: "hi"}}
	require.NoError(t, h.relay.PushToUser(context.Background(), "bob", msg))
	h.flush()
	assert.Empty(t, alice.all())

	bob := newClient("c2", "bob")
	h.connect(bob)
	assert.Contains(t, lastSnapshot(t, alice), "bob")
	assert.Empty(t, bob.received(domain.EventNewMessage))

	require.NoError(t, h.relay.PushToUser(context.Background(), "bob", msg))
	h.flush()
	got := bob.received(domain.EventNewMessage)
	require.Len(t, got, 1)
	assert.Contains(t, string(got[0].Data), `"text":"hi"`)
}

func TestRelay_GroupBroadcastReachesAllSessions(t *testing.T) {
	h := newHarness(t)
	laptop, phone, bob := newClient("c1", "alice"), newClient("c2", "alice"), newClient("c3", "bob")
	h.connect(laptop, phone, bob)
	for _, c := range []*recClient{laptop, phone, bob} {
		h.handle(c, domain.JoinRoom{RoomID: "g1", Kind: domain.RoomGroup})
	}

	msg := domain.GroupMessage{Message: domain.Message{ID: "m1", SenderID: "alice", GroupID: "g1", Text: "hello"}}
	require.NoError(t, h.relay.BroadcastRoom(context.Background(), "g1", msg))
	h.flush()

	for _, c := range []*recClient{laptop, phone, bob} {
		assert.Len(t, c.received(domain.EventGroupMessage), 1, c.id)
	}
}

func TestRelay_TypingIsDirectedAndNeverEchoed(t *testing.T) {
	h := newHarness(t)
	alice, bob := newClient("c1", "alice"), newClient("c2", "bob")
	h.connect(alice, bob)
	alice.reset()
	bob.reset()

	h.handle(alice, domain.TypingStart{To: "bob"})
	h.handle(alice, domain.TypingStart{To: "alice"})
	h.handle(alice, domain.TypingStop{To: "bob"})
	h.handle(alice, domain.TypingStart{To: "nobody"})

	assert.Empty(t, alice.all())
	started := bob.received(domain.EventTypingStart)
	require.Len(t, started, 1)
	assert.JSONEq(t, `{"from":"alice"}`, string(started[0].Data))
	assert.Len(t, bob.received(domain.EventTypingStop), 1)
}

func TestRelay_SecondJoinNotifiesFirstJoinerOnce(t *testing.T) {
	h := newHarness(t)
	alice, bob := newClient("c1", "alice"), newClient("c2", "bob")
	h.connect(alice, bob)

	h.handle(alice, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	assert.Empty(t, alice.received(domain.EventPeerJoined))

	h.handle(bob, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	h.handle(bob, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})

	assert.Len(t, alice.received(domain.EventPeerJoined), 1)
	assert.Empty(t, bob.received(domain.EventPeerJoined))
	state, err := h.relay.CallState(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, CallActive, state)
}

func TestRelay_ThirdJoinerGetsCallFull(t *testing.T) {
	h := newHarness(t)
	alice, bob, carol := newClient("c1", "alice"), newClient("c2", "bob"), newClient("c3", "carol")
	h.connect(alice, bob, carol)

	for _, c := range []*recClient{alice, bob, carol} {
		h.handle(c, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	}

	errs := carol.received(domain.EventError)
	require.Len(t, errs, 1)
	var ev domain.ErrorEvent
	require.NoError(t, json.Unmarshal(errs[0].Data, &ev))
	assert.Equal(t, domain.CodeCallFull, ev.Code)

	members, err := h.relay.RoomMembers(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, members)
}

func TestRelay_SignalingForwardedVerbatim(t *testing.T) {
	h := newHarness(t)
	alice, bob := newClient("c1", "alice"), newClient("c2", "bob")
	h.connect(alice, bob)
	h.handle(alice, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	h.handle(bob, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})

	h.handle(alice, domain.Offer{RoomID: "call-1", Offer: json.RawMessage(`{"type":"offer","sdp":"garbage"}`)})
	h.handle(bob, domain.Answer{RoomID: "call-1", Answer: json.RawMessage(`{"type":"answer","sdp":"x"}`)})

	offers := bob.received(domain.EventOffer)
	require.Len(t, offers, 1)
	assert.JSONEq(t, `{"roomId":"call-1","offer":{"type":"offer","sdp":"garbage"}}`, string(offers[0].Data))
	assert.Empty(t, alice.received(domain.EventOffer))

	answers := alice.received(domain.EventAnswer)
	require.Len(t, answers, 1)
	assert.JSONEq(t, `{"roomId":"call-1","answer":{"type":"answer","sdp":"x"}}`, string(answers[0].Data))
}

func TestRelay_ICEFromNonMemberReachesRoom(t *testing.T) {
	h := newHarness(t)
	a, b, c := newClient("c1", "alice"), newClient("c2", "bob"), newClient("c3", "carol")
	h.connect(a, b, c)
	h.handle(a, domain.JoinRoom{RoomID: "g1", Kind: domain.RoomGroup})
	h.handle(b, domain.JoinRoom{RoomID: "g1", Kind: domain.RoomGroup})

	h.handle(c, domain.ICECandidate{RoomID: "g1", Candidate: json.RawMessage(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host"}`)})
	h.handle(c, domain.ICECandidate{RoomID: "nowhere", Candidate: json.RawMessage(`{}`)})

	for _, member := range []*recClient{a, b} {
		got := member.received(domain.EventICE)
		require.Len(t, got, 1, member.id)
		assert.JSONEq(t, `{"roomId":"g1","candidate":{"candidate":"candidate:1 1 udp 1 10.0.0.1 9 typ host"}}`, string(got[0].Data))
	}
	assert.Empty(t, c.received(domain.EventICE))
}

func TestRelay_EndCallRemovesSender(t *testing.T) {
	h := newHarness(t)
	alice, bob := newClient("c1", "alice"), newClient("c2", "bob")
	h.connect(alice, bob)
	h.handle(alice, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	h.handle(bob, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})

	h.handle(alice, domain.EndCall{RoomID: "call-1"})
	assert.Len(t, bob.received(domain.EventEnd), 1)
	assert.Empty(t, alice.received(domain.EventEnd))

	alice.reset()
	h.handle(bob, domain.ICECandidate{RoomID: "call-1", Candidate: json.RawMessage(`{}`)})
	assert.Empty(t, alice.received(domain.EventICE))

	state, err := h.relay.CallState(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, CallEnded, state)

	h.handle(bob, domain.EndCall{RoomID: "call-1"})
	state, err = h.relay.CallState(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, CallEmpty, state)

	assert.Eventually(t, func() bool {
		return len(h.journal.kinds()) == 2
	}, time.Second, 10*time.Millisecond)
	assert.ElementsMatch(t, []domain.CallEventKind{domain.CallStarted, domain.CallEnded}, h.journal.kinds())
}

func TestRelay_DisconnectEndsActiveCall(t *testing.T) {
	h := newHarness(t)
	alice, bob := newClient("c1", "alice"), newClient("c2", "bob")
	h.connect(alice, bob)
	h.handle(alice, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	h.handle(bob, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})

	require.NoError(t, h.relay.Disconnect(context.Background(), bob))
	h.flush()

	ends := alice.received(domain.EventEnd)
	require.Len(t, ends, 1)
	assert.JSONEq(t, `{"roomId":"call-1"}`, string(ends[0].Data))
	assert.Equal(t, []string{"alice"}, lastSnapshot(t, alice))
}

func TestRelay_EndedCallRefusesRejoinUntilEmpty(t *testing.T) {
	h := newHarness(t)
	alice, bob := newClient("c1", "alice"), newClient("c2", "bob")
	h.connect(alice, bob)
	h.handle(alice, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	h.handle(bob, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	require.NoError(t, h.relay.Disconnect(context.Background(), bob))
	h.flush()

	// alice never sent leave-room, so the ended call still holds her
	again := newClient("c3", "bob")
	h.connect(again)
	h.handle(again, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	errs := again.received(domain.EventError)
	require.Len(t, errs, 1)
	var ev domain.ErrorEvent
	require.NoError(t, json.Unmarshal(errs[0].Data, &ev))
	assert.Equal(t, domain.CodeCallEnded, ev.Code)
	assert.Len(t, alice.received(domain.EventPeerJoined), 1)

	h.handle(alice, domain.LeaveRoom{RoomID: "call-1"})
	h.handle(again, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	state, err := h.relay.CallState(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, CallWaiting, state)
}

func TestRelay_LeaveWaitingCallIsSilent(t *testing.T) {
	h := newHarness(t)
	alice := newClient("c1", "alice")
	h.connect(alice)
	h.handle(alice, domain.JoinRoom{RoomID: "call-1", Kind: domain.RoomCall})
	h.handle(alice, domain.LeaveRoom{RoomID: "call-1"})

	assert.Empty(t, alice.received(domain.EventEnd))
	state, err := h.relay.CallState(context.Background(), "call-1")
	require.NoError(t, err)
	assert.Equal(t, CallEmpty, state)
	h.flush()
	assert.Empty(t, h.journal.kinds())
}

func TestRelay_UnregisteredConnectionIgnored(t *testing.T) {
	h := newHarness(t)
	ghost := newClient("c9", "ghost")

	h.handle(ghost, domain.JoinRoom{RoomID: "g1", Kind: domain.RoomGroup})

	members, err := h.relay.RoomMembers(context.Background(), "g1")
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestRelay_StoppedRejectsOperations(t *testing.T) {
	h := newHarness(t)
	h.stop()

	err := h.relay.Connect(context.Background(), newClient("c1", "alice"))
	assert.ErrorIs(t, err, ErrRelayStopped)
	_, err = h.relay.OnlineUsers(context.Background())
	assert.ErrorIs(t, err, ErrRelayStopped)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, domain.CodeCallFull, ErrorCode(domain.ErrCallFull))
	assert.Equal(t, domain.CodeCallEnded, ErrorCode(domain.ErrCallEnded))
	assert.Equal(t, domain.CodeBadFrame, ErrorCode(domain.ErrUnknownEvent))
	assert.Equal(t, domain.CodeUnavailable, ErrorCode(ErrRelayStopped))
}
